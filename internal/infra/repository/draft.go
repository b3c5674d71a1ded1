package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pinjaman/hybrid/internal/domain"
	"github.com/pinjaman/hybrid/internal/infra/database/models"
)

type DraftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

func draftFromModel(m models.BankDetails) domain.BankDetails {
	d := domain.BankDetails{
		DraftID:       m.DraftID,
		ReferenceHash: m.ReferenceHash,
		WalletAddress: m.WalletAddress,
		RecipientName: m.RecipientName,
		BankName:      m.BankName,
		AccountNumber: m.AccountNumber,
		Status:        domain.DraftStatus(m.Status),
		CreatedAt:     m.CDate,
	}
	if m.PositionID != nil {
		id := uint64(*m.PositionID)
		d.PositionID = &id
	}
	return d
}

// Insert stores a draft once; a second insert of the same draft id or
// reference hash is a ConflictError.
func (r *DraftRepository) Insert(ctx context.Context, draft domain.BankDetails) error {
	status := draft.Status
	if status == "" {
		status = domain.DraftPending
	}
	record := models.BankDetails{
		DraftID:       draft.DraftID,
		ReferenceHash: draft.ReferenceHash,
		WalletAddress: draft.WalletAddress,
		RecipientName: draft.RecipientName,
		BankName:      draft.BankName,
		AccountNumber: draft.AccountNumber,
		Status:        string(status),
	}
	if !draft.CreatedAt.IsZero() {
		record.CDate = draft.CreatedAt
	}

	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ConflictError{Resource: "draft " + draft.DraftID}
	}
	return err
}

func (r *DraftRepository) Get(ctx context.Context, draftID string) (domain.BankDetails, error) {
	var record models.BankDetails
	err := r.db.WithContext(ctx).Where("draft_id = ?", draftID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.BankDetails{}, domain.NotFoundError{Resource: "draft " + draftID}
	}
	if err != nil {
		return domain.BankDetails{}, err
	}
	return draftFromModel(record), nil
}

func (r *DraftRepository) ListPending(ctx context.Context, createdBefore time.Time) ([]domain.BankDetails, error) {
	var records []models.BankDetails
	err := r.db.WithContext(ctx).
		Where("status = ? AND c_date <= ?", string(domain.DraftPending), createdBefore).
		Order("c_date ASC").
		Limit(500).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	drafts := make([]domain.BankDetails, len(records))
	for i, record := range records {
		drafts[i] = draftFromModel(record)
	}
	return drafts, nil
}

// MarkBound and MarkOrphaned only move pending drafts; a bound draft is final.
func (r *DraftRepository) MarkBound(ctx context.Context, draftID string, positionID uint64) error {
	id := int64(positionID)
	return r.transition(ctx, draftID, map[string]any{
		"status":      string(domain.DraftBound),
		"position_id": id,
	})
}

func (r *DraftRepository) MarkOrphaned(ctx context.Context, draftID string) error {
	return r.transition(ctx, draftID, map[string]any{
		"status": string(domain.DraftOrphaned),
	})
}

func (r *DraftRepository) transition(ctx context.Context, draftID string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.BankDetails{}).
		Where("draft_id = ? AND status = ?", draftID, string(domain.DraftPending)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "pending draft " + draftID}
	}
	return nil
}
