package models

import (
	"time"
)

type BankDetails struct {
	DraftID       string    `json:"draftId" gorm:"primaryKey;type:text"`
	ReferenceHash string    `json:"offchainRefHash" gorm:"type:char(66);not null;uniqueIndex"`
	WalletAddress string    `json:"walletAddress" gorm:"type:char(42);not null;index"`
	RecipientName string    `json:"recipientName" gorm:"type:text;not null"`
	BankName      string    `json:"bankName" gorm:"type:text;not null"`
	AccountNumber string    `json:"accountNumber" gorm:"type:text;not null"`
	Status        string    `json:"status" gorm:"type:text;not null;default:'pending';index"`
	PositionID    *int64    `json:"positionId" gorm:"index"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate         time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

func (BankDetails) TableName() string { return "bank_details" }

type RepayReference struct {
	Hash            string    `json:"hash" gorm:"primaryKey;type:char(66)"`
	PositionID      int64     `json:"positionId" gorm:"not null;index"`
	TimestampMillis int64     `json:"timestampMillis" gorm:"not null"`
	TxHash          string    `json:"txHash" gorm:"type:text"`
	CDate           time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
