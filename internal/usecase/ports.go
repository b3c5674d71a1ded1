package usecase

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

// ReadOptions controls the advisory read cache. Fresh bypasses it; every
// write path reads fresh.
type ReadOptions struct {
	Fresh bool
}

// LedgerReader covers the contract's view functions.
type LedgerReader interface {
	CollateralValue(ctx context.Context, amount *big.Int, token pinjaman.Token) (*big.Int, error)
	MaxBorrow(ctx context.Context, amount *big.Int, token pinjaman.Token) (*big.Int, error)
	DebtNow(ctx context.Context, positionID uint64) (*big.Int, error)
	CollateralValueOf(ctx context.Context, positionID uint64) (*big.Int, error)
	LtvNow(ctx context.Context, positionID uint64) (uint64, error)
	PositionOf(ctx context.Context, positionID uint64, opts ReadOptions) (domain.Position, error)
	UserPositions(ctx context.Context, owner common.Address) ([]uint64, error)
	EthUsdPrice(ctx context.Context) (*big.Int, error)
	UsdIdrRate(ctx context.Context) (*big.Int, error)
	UsdIdrUpdatedAt(ctx context.Context) (time.Time, error)
	IsPriceStale(ctx context.Context) (bool, error)
	Balance(ctx context.Context, owner common.Address, token pinjaman.Token) (*big.Int, error)
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// LedgerWriter covers state-changing calls. Each returns once the transaction
// is broadcast; WaitReceipt blocks until inclusion.
type LedgerWriter interface {
	Approve(ctx context.Context, amount *big.Int) (domain.PendingTx, error)
	OpenPositionNative(ctx context.Context, requested *big.Int, ref common.Hash, value *big.Int) (domain.PendingTx, error)
	OpenPositionStable(ctx context.Context, amount, requested *big.Int, ref common.Hash) (domain.PendingTx, error)
	RequestRepay(ctx context.Context, positionID uint64, ref common.Hash) (domain.PendingTx, error)
	WithdrawCollateral(ctx context.Context, positionID uint64) (domain.PendingTx, error)
	WaitReceipt(ctx context.Context, tx domain.PendingTx) (domain.Receipt, error)
}

type LedgerGateway interface {
	LedgerReader
	LedgerWriter
}

// DraftRepository is the durable bank-details store.
type DraftRepository interface {
	Insert(ctx context.Context, draft domain.BankDetails) error
	Get(ctx context.Context, draftID string) (domain.BankDetails, error)
	ListPending(ctx context.Context, createdBefore time.Time) ([]domain.BankDetails, error)
	MarkBound(ctx context.Context, draftID string, positionID uint64) error
	MarkOrphaned(ctx context.Context, draftID string) error
}

// DraftGateway submits a signed bank-details draft to the draft store.
type DraftGateway interface {
	SubmitBankDetails(ctx context.Context, submission pinjaman.BankDetailsSubmission) error
}

// RepayReferenceStore records (positionId, timestamp, hash, txHash) tuples.
// The tuple is saved before the ledger call and the tx hash attached once the
// transaction is sent.
type RepayReferenceStore interface {
	SaveRepayReference(ctx context.Context, ref domain.RepayReference) error
	AttachRepayTx(ctx context.Context, hash, txHash string) error
}

type RepayReferenceRepository interface {
	RepayReferenceStore
	FindByHash(ctx context.Context, hash string) (domain.RepayReference, error)
}

// WalletSigner asks the wallet to sign an attestation. It may block for as
// long as the user takes and fails when the user declines.
type WalletSigner interface {
	Address() common.Address
	SignMessage(ctx context.Context, message string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, channel string, event pinjaman.Event) error
}

// Cache is an advisory shared cache for display reads.
type Cache interface {
	Get(ctx context.Context, key string, out any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}
