package pinjaman

import (
	"fmt"
	"time"
)

// Token is the collateral asset symbol as shown to the borrower and signed in the attestation.
type Token string

const (
	TokenNative Token = "ETH"
	TokenStable Token = "USDC"
)

func (t Token) Valid() bool {
	return t == TokenNative || t == TokenStable
}

func ParseToken(s string) (Token, error) {
	t := Token(s)
	if !t.Valid() {
		return "", fmt.Errorf("unsupported token %q", s)
	}
	return t, nil
}

// LoanDraft is the client-side loan request before it is bound to a position.
type LoanDraft struct {
	DraftID          string
	Token            Token
	CollateralAmount string
	RequestedAmount  string
	Address          string
	RecipientName    string
	BankName         string
	AccountNumber    string
	Timestamp        string
	ChainID          int64
}

func (d LoanDraft) MessageFields() MessageFields {
	return MessageFields{
		Address:          d.Address,
		Token:            string(d.Token),
		CollateralAmount: d.CollateralAmount,
		RequestedAmount:  d.RequestedAmount,
		DraftID:          d.DraftID,
		Timestamp:        d.Timestamp,
		ChainID:          d.ChainID,
	}
}

// BankDetailsSubmission is the body of POST /api/bank-details.
type BankDetailsSubmission struct {
	DraftID          string `json:"draftId"`
	ReferenceHash    string `json:"offchainRefHash"`
	Address          string `json:"address"`
	Token            string `json:"token"`
	CollateralAmount string `json:"collateralAmount"`
	RequestedAmount  string `json:"requestedIdr"`
	Timestamp        string `json:"timestamp"`
	ChainID          int64  `json:"chainId"`
	RecipientName    string `json:"recipientName"`
	BankName         string `json:"bankName"`
	AccountNumber    string `json:"accountNumber"`
	Signature        string `json:"signature"`
	Message          string `json:"message"`
}

func (s BankDetailsSubmission) MessageFields() MessageFields {
	return MessageFields{
		Address:          s.Address,
		Token:            s.Token,
		CollateralAmount: s.CollateralAmount,
		RequestedAmount:  s.RequestedAmount,
		DraftID:          s.DraftID,
		Timestamp:        s.Timestamp,
		ChainID:          s.ChainID,
	}
}

type SubmitResponse struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

const (
	EventDraftAccepted   = "draft.accepted"
	EventDraftBound      = "draft.bound"
	EventDraftOrphaned   = "draft.orphaned"
	EventRepayRequested  = "position.repay_requested"
	EventCollateralFreed = "position.collateral_withdrawn"
)

// Event is published to a wallet's realtime channel.
type Event struct {
	Type       string    `json:"type"`
	Wallet     string    `json:"wallet"`
	DraftID    string    `json:"draftId,omitempty"`
	PositionID *uint64   `json:"positionId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
