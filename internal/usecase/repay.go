package usecase

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

// RepayReferenceUsecase keeps (positionId, timestamp, hash) tuples so a repay
// reference seen on the ledger can be traced back to its inputs.
type RepayReferenceUsecase struct {
	repo RepayReferenceRepository
}

func NewRepayReferenceUsecase(repo RepayReferenceRepository) *RepayReferenceUsecase {
	return &RepayReferenceUsecase{repo: repo}
}

func (uc *RepayReferenceUsecase) Record(ctx context.Context, ref domain.RepayReference) error {
	ctx, span := tracer.Start(ctx, "RepayReference.Usecase.Record")
	defer span.End()

	if ref.TimestampMillis <= 0 {
		return domain.ValidationError{Field: "timestampMillis", Reason: "is required"}
	}
	if !pinjaman.IsReferenceHash(ref.Hash) {
		return domain.ValidationError{Field: "hash", Reason: "must be 0x followed by 64 hex digits"}
	}
	expected := pinjaman.RepayReference(ref.PositionID, ref.TimestampMillis).Hex()
	if !strings.EqualFold(expected, ref.Hash) {
		err := domain.BindingMismatchError{Subject: "repay reference"}
		span.RecordError(err)
		return err
	}
	ref.Hash = strings.ToLower(ref.Hash)

	if err := uc.repo.SaveRepayReference(ctx, ref); err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrConflict) {
			return err
		}
		return pkgerrors.Wrap(err, "failed to store repay reference")
	}
	return nil
}

// AttachTx records the ledger transaction that carried the reference.
func (uc *RepayReferenceUsecase) AttachTx(ctx context.Context, hash, txHash string) error {
	ctx, span := tracer.Start(ctx, "RepayReference.Usecase.AttachTx")
	defer span.End()

	if !pinjaman.IsReferenceHash(hash) {
		return domain.ValidationError{Field: "hash", Reason: "must be 0x followed by 64 hex digits"}
	}
	if !pinjaman.IsReferenceHash(txHash) {
		return domain.ValidationError{Field: "txHash", Reason: "must be 0x followed by 64 hex digits"}
	}

	err := uc.repo.AttachRepayTx(ctx, strings.ToLower(hash), strings.ToLower(txHash))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return pkgerrors.Wrap(err, "failed to attach repay transaction")
	}
	return nil
}

// Lookup returns the stored tuple for hash after checking it still recomputes.
func (uc *RepayReferenceUsecase) Lookup(ctx context.Context, hash string) (domain.RepayReference, error) {
	ctx, span := tracer.Start(ctx, "RepayReference.Usecase.Lookup")
	defer span.End()

	if !pinjaman.IsReferenceHash(hash) {
		return domain.RepayReference{}, domain.ValidationError{Field: "hash", Reason: "must be 0x followed by 64 hex digits"}
	}
	ref, err := uc.repo.FindByHash(ctx, strings.ToLower(hash))
	if err != nil {
		span.RecordError(err)
		return domain.RepayReference{}, err
	}
	if !strings.EqualFold(pinjaman.RepayReference(ref.PositionID, ref.TimestampMillis).Hex(), ref.Hash) {
		return domain.RepayReference{}, domain.BindingMismatchError{Subject: "stored repay reference"}
	}
	return ref, nil
}
