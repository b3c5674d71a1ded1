package domain

import (
	"time"
)

type DraftStatus string

const (
	DraftPending  DraftStatus = "pending"
	DraftBound    DraftStatus = "bound"
	DraftOrphaned DraftStatus = "orphaned"
)

// BankDetails is the stored off-chain half of a loan request, keyed by draft id.
type BankDetails struct {
	DraftID       string      `json:"draftId"`
	ReferenceHash string      `json:"offchainRefHash"`
	WalletAddress string      `json:"walletAddress"`
	RecipientName string      `json:"recipientName"`
	BankName      string      `json:"bankName"`
	AccountNumber string      `json:"accountNumber"`
	Status        DraftStatus `json:"status"`
	PositionID    *uint64     `json:"positionId,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// RepayReference keeps the inputs of a repay reference hash so it can be recomputed.
type RepayReference struct {
	PositionID      uint64    `json:"positionId"`
	TimestampMillis int64     `json:"timestampMillis"`
	Hash            string    `json:"hash"`
	TxHash          string    `json:"txHash,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
