package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pinjaman/hybrid"
)

// Status is the ledger ordinal of a position.
type Status uint8

const (
	StatusPayoutPending Status = iota
	StatusActive
	StatusRepayRequested
	StatusClosed
	StatusLiquidated
)

var statusKeys = [...]string{
	"payout_pending",
	"active",
	"repay_requested",
	"closed",
	"liquidated",
}

func (s Status) Key() string {
	if int(s) < len(statusKeys) {
		return statusKeys[s]
	}
	return "unknown"
}

func (s Status) String() string {
	return strings.ToUpper(s.Key())
}

func StatusFromOrdinal(n uint64) (Status, error) {
	if n >= uint64(len(statusKeys)) {
		return 0, fmt.Errorf("unknown position status %d", n)
	}
	return Status(n), nil
}

// CanTransitionTo follows the ledger state machine. Only liquidation leaves
// the forward path, and only from ACTIVE or REPAY_REQUESTED.
func (s Status) CanTransitionTo(next Status) bool {
	switch next {
	case StatusLiquidated:
		return s == StatusActive || s == StatusRepayRequested
	case StatusActive:
		return s == StatusPayoutPending
	case StatusRepayRequested:
		return s == StatusActive
	case StatusClosed:
		return s == StatusRepayRequested
	default:
		return false
	}
}

func (s Status) CanRequestRepay() bool { return s == StatusActive }
func (s Status) CanWithdraw() bool     { return s == StatusClosed }

func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusLiquidated
}

// Position mirrors the ledger record. The application never mutates it.
type Position struct {
	ID               uint64
	Owner            common.Address
	Token            pinjaman.Token
	TokenAddress     common.Address
	CollateralAmount *big.Int
	Principal        *big.Int
	AprBps           uint64
	OpenedAt         time.Time
	Status           Status
	OffchainRefHash  common.Hash
	RepayRefHash     common.Hash
}

func (p Position) IsOwnedBy(addr string) bool {
	return strings.EqualFold(p.Owner.Hex(), addr)
}

// CheckViewer denies display to a viewer other than the owner; an empty viewer is anonymous.
func (p Position) CheckViewer(viewer string) error {
	if viewer == "" || p.IsOwnedBy(viewer) {
		return nil
	}
	return OwnershipMismatchError{}
}

// CollateralReleased reports whether the loan manager has zeroed the
// collateral. The contract emits no withdraw event, so a zero amount on a
// CLOSED position is the only on-chain record of a completed withdraw.
func (p Position) CollateralReleased() bool {
	return p.CollateralAmount == nil || p.CollateralAmount.Sign() == 0
}

// PendingTx is the handle returned by a ledger write before inclusion.
type PendingTx struct {
	Hash common.Hash
}

type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Success     bool
	PositionID  *uint64
}

type PositionSummary struct {
	ID        uint64 `json:"id"`
	Status    string `json:"status"`
	Principal string `json:"principalIdr"`
	Token     string `json:"token"`
}

type PositionView struct {
	ID                  uint64 `json:"id"`
	Owner               string `json:"owner"`
	Token               string `json:"token"`
	CollateralAmount    string `json:"collateralAmount"`
	Principal           string `json:"principalIdr"`
	DebtNow             string `json:"debtNowIdr"`
	CollateralValue     string `json:"collateralValueIdr"`
	LtvBps              uint64 `json:"ltvBps"`
	LtvPercent          string `json:"ltvPercent"`
	Tier                string `json:"tier"`
	LiquidationEligible bool   `json:"liquidationEligible"`
	Status              string `json:"status"`
	CanRequestRepay     bool   `json:"canRequestRepay"`
	CanWithdraw         bool   `json:"canWithdraw"`
}

type Quote struct {
	Token           string `json:"token"`
	CollateralValue string `json:"collateralValueIdr"`
	MaxBorrow       string `json:"maxBorrowIdr"`
	Requested       string `json:"requestedIdr,omitempty"`
	EstimatedDebt   string `json:"estimatedDebtIdr,omitempty"`
	LtvBps          uint64 `json:"ltvBps"`
	LtvPercent      string `json:"ltvPercent"`
	Tier            string `json:"tier"`
}

type Rates struct {
	EthUsd    string    `json:"ethUsd"`
	UsdIdr    string    `json:"usdIdrRate"`
	UpdatedAt time.Time `json:"usdIdrUpdatedAt"`
	Stale     bool      `json:"isStale"`
}
