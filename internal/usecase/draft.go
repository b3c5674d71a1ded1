package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

var tracer = otel.Tracer("usecase")

type DraftUsecase struct {
	repo      DraftRepository
	publisher EventPublisher
	chain     domain.ChainConfig
	now       func() time.Time
}

func NewDraftUsecase(repo DraftRepository, publisher EventPublisher, chain domain.ChainConfig) *DraftUsecase {
	return &DraftUsecase{
		repo:      repo,
		publisher: publisher,
		chain:     chain,
		now:       time.Now,
	}
}

// ValidateSubmission checks field shapes only; it says nothing about the binding.
func ValidateSubmission(s pinjaman.BankDetailsSubmission) error {
	id, err := uuid.Parse(s.DraftID)
	if err != nil || id.Version() != 4 || id.String() != strings.ToLower(s.DraftID) {
		return domain.ValidationError{Field: "draftId", Reason: "must be a version 4 uuid"}
	}
	if !pinjaman.IsReferenceHash(s.ReferenceHash) {
		return domain.ValidationError{Field: "offchainRefHash", Reason: "must be 0x followed by 64 hex digits"}
	}
	if !pinjaman.IsAddress(s.Address) {
		return domain.ValidationError{Field: "address", Reason: "must be a 0x-prefixed 20 byte hex address"}
	}
	if _, err := pinjaman.ParseToken(s.Token); err != nil {
		return domain.ValidationError{Field: "token", Reason: err.Error()}
	}
	required := []struct {
		name  string
		value string
	}{
		{"collateralAmount", s.CollateralAmount},
		{"requestedIdr", s.RequestedAmount},
		{"timestamp", s.Timestamp},
		{"recipientName", s.RecipientName},
		{"bankName", s.BankName},
		{"accountNumber", s.AccountNumber},
		{"signature", s.Signature},
		{"message", s.Message},
	}
	for _, r := range required {
		if r.value == "" {
			return domain.ValidationError{Field: r.name, Reason: "is required"}
		}
	}
	if s.ChainID <= 0 {
		return domain.ValidationError{Field: "chainId", Reason: "is required"}
	}
	return nil
}

// messageFieldError maps a canonical message build failure to the field that
// caused it.
func messageFieldError(err error) domain.ValidationError {
	var fieldErr *pinjaman.FieldError
	if errors.As(err, &fieldErr) {
		return domain.ValidationError{Field: fieldErr.Field, Reason: "is required"}
	}
	return domain.ValidationError{Field: "message", Reason: err.Error()}
}

// Submit verifies and stores a bank-details draft. The checks run in order and
// fail closed: field shapes, reference hash, rebuilt message, then signature.
func (uc *DraftUsecase) Submit(ctx context.Context, s pinjaman.BankDetailsSubmission) error {
	ctx, span := tracer.Start(ctx, "Draft.Usecase.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("draftId", s.DraftID))

	if err := ValidateSubmission(s); err != nil {
		span.RecordError(err)
		return err
	}

	if uc.chain.ChainID != 0 && s.ChainID != uc.chain.ChainID {
		err := domain.ValidationError{Field: "chainId", Reason: "wrong network"}
		span.RecordError(err)
		return err
	}

	expectedHash := pinjaman.ReferenceHash(s.DraftID).Hex()
	if !strings.EqualFold(expectedHash, s.ReferenceHash) {
		err := domain.BindingMismatchError{Subject: "offchain ref hash"}
		span.RecordError(err)
		return err
	}

	expectedMessage, err := pinjaman.BuildMessage(s.MessageFields())
	if err != nil {
		err := messageFieldError(err)
		span.RecordError(err)
		return err
	}
	if expectedMessage != s.Message {
		err := domain.BindingMismatchError{Subject: "message"}
		span.RecordError(err)
		return err
	}

	valid, err := pinjaman.VerifyMessage(s.Address, s.Message, s.Signature)
	if err != nil {
		span.RecordError(err)
		return domain.SignatureInvalidError{Reason: err.Error()}
	}
	if !valid {
		err := domain.SignatureInvalidError{}
		span.RecordError(err)
		return err
	}

	draft := domain.BankDetails{
		DraftID:       s.DraftID,
		ReferenceHash: strings.ToLower(s.ReferenceHash),
		WalletAddress: s.Address,
		RecipientName: s.RecipientName,
		BankName:      s.BankName,
		AccountNumber: s.AccountNumber,
		Status:        domain.DraftPending,
		CreatedAt:     uc.now(),
	}

	err = uc.repo.Insert(ctx, draft)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrConflict) {
			return err
		}
		return pkgerrors.Wrap(err, "failed to store bank details")
	}

	uc.publish(ctx, pinjaman.Event{
		Type:      pinjaman.EventDraftAccepted,
		Wallet:    s.Address,
		DraftID:   s.DraftID,
		Timestamp: draft.CreatedAt,
	})

	return nil
}

func (uc *DraftUsecase) Get(ctx context.Context, draftID string) (domain.BankDetails, error) {
	return uc.repo.Get(ctx, draftID)
}

func (uc *DraftUsecase) publish(ctx context.Context, event pinjaman.Event) {
	if uc.publisher == nil {
		return
	}
	err := uc.publisher.Publish(ctx, WalletChannel(event.Wallet), event)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
			slog.String("module", "draft"),
		)
	}
}

func WalletChannel(wallet string) string {
	return domain.WalletChannelNS + strings.ToLower(wallet)
}
