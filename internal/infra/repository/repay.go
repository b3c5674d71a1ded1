package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pinjaman/hybrid/internal/domain"
	"github.com/pinjaman/hybrid/internal/infra/database/models"
)

type RepayReferenceRepository struct {
	db *gorm.DB
}

func NewRepayReferenceRepository(db *gorm.DB) *RepayReferenceRepository {
	return &RepayReferenceRepository{db: db}
}

func (r *RepayReferenceRepository) SaveRepayReference(ctx context.Context, ref domain.RepayReference) error {
	record := models.RepayReference{
		Hash:            ref.Hash,
		PositionID:      int64(ref.PositionID),
		TimestampMillis: ref.TimestampMillis,
		TxHash:          ref.TxHash,
	}
	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ConflictError{Resource: "repay reference " + ref.Hash}
	}
	return err
}

// AttachRepayTx sets the tx hash of a stored reference. Repeating the same tx
// hash is a no-op; replacing a different one is a conflict.
func (r *RepayReferenceRepository) AttachRepayTx(ctx context.Context, hash, txHash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.RepayReference{}).
		Where("hash = ? AND (tx_hash = '' OR tx_hash IS NULL OR tx_hash = ?)", hash, txHash).
		Update("tx_hash", txHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindByHash(ctx, hash); err != nil {
		return err
	}
	return domain.ConflictError{Resource: "repay reference " + hash}
}

func (r *RepayReferenceRepository) FindByHash(ctx context.Context, hash string) (domain.RepayReference, error) {
	var record models.RepayReference
	err := r.db.WithContext(ctx).Where("hash = ?", hash).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RepayReference{}, domain.NotFoundError{Resource: "repay reference " + hash}
	}
	if err != nil {
		return domain.RepayReference{}, err
	}
	return domain.RepayReference{
		PositionID:      uint64(record.PositionID),
		TimestampMillis: record.TimestampMillis,
		Hash:            record.Hash,
		TxHash:          record.TxHash,
		CreatedAt:       record.CDate,
	}, nil
}
