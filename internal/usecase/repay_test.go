package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

func TestRepayReferenceRecordAndLookup(t *testing.T) {
	store := &mockRefStore{}
	uc := NewRepayReferenceUsecase(store)

	hash := pinjaman.RepayReference(12, 1_767_225_600_123).Hex()
	ref := domain.RepayReference{PositionID: 12, TimestampMillis: 1_767_225_600_123, Hash: hash}

	if err := uc.Record(context.Background(), ref); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := uc.Record(context.Background(), ref); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate, got %v", err)
	}

	found, err := uc.Lookup(context.Background(), hash)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found.PositionID != 12 || found.TimestampMillis != 1_767_225_600_123 {
		t.Fatalf("unexpected tuple %+v", found)
	}
}

func TestRepayReferenceRecordRejectsMismatch(t *testing.T) {
	uc := NewRepayReferenceUsecase(&mockRefStore{})

	ref := domain.RepayReference{
		PositionID:      12,
		TimestampMillis: 1_767_225_600_123,
		Hash:            pinjaman.RepayReference(13, 1_767_225_600_123).Hex(),
	}
	if err := uc.Record(context.Background(), ref); !errors.Is(err, domain.ErrBindingMismatch) {
		t.Fatalf("expected binding mismatch, got %v", err)
	}

	ref.Hash = "0xabc"
	if err := uc.Record(context.Background(), ref); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRepayReferenceLookupMissing(t *testing.T) {
	uc := NewRepayReferenceUsecase(&mockRefStore{})
	hash := pinjaman.RepayReference(1, 1).Hex()
	if _, err := uc.Lookup(context.Background(), hash); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepayReferenceAttachTx(t *testing.T) {
	store := &mockRefStore{}
	uc := NewRepayReferenceUsecase(store)

	hash := pinjaman.RepayReference(12, 1_767_225_600_123).Hex()
	if err := uc.Record(context.Background(), domain.RepayReference{PositionID: 12, TimestampMillis: 1_767_225_600_123, Hash: hash}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	tx := common.HexToHash("0xb2").Hex()
	if err := uc.AttachTx(context.Background(), strings.ToUpper(hash[:2])+hash[2:], tx); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if err := uc.AttachTx(context.Background(), hash, tx); err != nil {
		t.Fatalf("repeating the same tx should succeed, got %v", err)
	}

	found, err := uc.Lookup(context.Background(), hash)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found.TxHash != tx {
		t.Fatalf("expected tx hash %s, got %q", tx, found.TxHash)
	}

	other := common.HexToHash("0xc3").Hex()
	if err := uc.AttachTx(context.Background(), hash, other); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict when replacing tx hash, got %v", err)
	}

	unknown := pinjaman.RepayReference(13, 1).Hex()
	if err := uc.AttachTx(context.Background(), unknown, tx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := uc.AttachTx(context.Background(), hash, "0xb2"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
