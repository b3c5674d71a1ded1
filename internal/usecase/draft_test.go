package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

const testChainID = 84532

func signedSubmission(t *testing.T) pinjaman.BankDetailsSubmission {
	t.Helper()
	signer, err := pinjaman.NewKeySigner(testKey)
	if err != nil {
		t.Fatalf("signer failed: %v", err)
	}
	s := pinjaman.BankDetailsSubmission{
		DraftID:          uuid.NewString(),
		Address:          signer.Address().Hex(),
		Token:            "ETH",
		CollateralAmount: "0.5",
		RequestedAmount:  "10.000.000",
		Timestamp:        "2026-01-02T03:04:05.678Z",
		ChainID:          testChainID,
		RecipientName:    "Budi Santoso",
		BankName:         "BCA",
		AccountNumber:    "1234567890",
	}
	s.ReferenceHash = pinjaman.ReferenceHash(s.DraftID).Hex()
	s.Message, err = pinjaman.BuildMessage(s.MessageFields())
	if err != nil {
		t.Fatalf("build message failed: %v", err)
	}
	s.Signature, err = signer.SignMessage(context.Background(), s.Message)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return s
}

func newTestDraftUsecase() (*DraftUsecase, *mockDraftRepo, *mockPublisher) {
	repo := newMockDraftRepo()
	pub := &mockPublisher{}
	uc := NewDraftUsecase(repo, pub, domain.ChainConfig{ChainID: testChainID})
	return uc, repo, pub
}

func TestDraftSubmitAccepts(t *testing.T) {
	uc, repo, pub := newTestDraftUsecase()
	s := signedSubmission(t)

	if err := uc.Submit(context.Background(), s); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	stored, err := repo.Get(context.Background(), s.DraftID)
	if err != nil {
		t.Fatalf("draft not stored: %v", err)
	}
	if stored.ReferenceHash != s.ReferenceHash || stored.Status != domain.DraftPending {
		t.Fatalf("unexpected stored draft %+v", stored)
	}
	if types := pub.types(); len(types) != 1 || types[0] != pinjaman.EventDraftAccepted {
		t.Fatalf("expected draft.accepted event, got %v", types)
	}
}

func TestDraftSubmitAcceptsUpperCaseHash(t *testing.T) {
	uc, _, _ := newTestDraftUsecase()
	s := signedSubmission(t)
	s.ReferenceHash = "0x" + upperHex(s.ReferenceHash[2:])

	if err := uc.Submit(context.Background(), s); err != nil {
		t.Fatalf("expected case-insensitive hash comparison, got %v", err)
	}
}

func upperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func TestDraftSubmitRejectsWrongReferenceHash(t *testing.T) {
	uc, repo, _ := newTestDraftUsecase()
	s := signedSubmission(t)
	// a valid signature over the message does not rescue a wrong hash
	s.ReferenceHash = pinjaman.ReferenceHash(uuid.NewString()).Hex()

	err := uc.Submit(context.Background(), s)
	if !errors.Is(err, domain.ErrBindingMismatch) {
		t.Fatalf("expected binding mismatch, got %v", err)
	}
	if len(repo.drafts) != 0 {
		t.Fatalf("rejected draft must not be stored")
	}
}

func TestDraftSubmitRejectsTrailingWhitespace(t *testing.T) {
	uc, _, _ := newTestDraftUsecase()
	s := signedSubmission(t)

	signer, _ := pinjaman.NewKeySigner(testKey)
	s.Message += " "
	s.Signature, _ = signer.SignMessage(context.Background(), s.Message)

	err := uc.Submit(context.Background(), s)
	if !errors.Is(err, domain.ErrBindingMismatch) {
		t.Fatalf("expected binding mismatch for altered message, got %v", err)
	}
}

func TestDraftSubmitRejectsFieldChange(t *testing.T) {
	uc, _, _ := newTestDraftUsecase()
	s := signedSubmission(t)
	s.RequestedAmount = "20.000.000"

	err := uc.Submit(context.Background(), s)
	if !errors.Is(err, domain.ErrBindingMismatch) {
		t.Fatalf("expected binding mismatch, got %v", err)
	}
}

func TestDraftSubmitRejectsForeignSignature(t *testing.T) {
	uc, _, _ := newTestDraftUsecase()
	s := signedSubmission(t)

	other, err := pinjaman.NewKeySigner("0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
	if err != nil {
		t.Fatalf("signer failed: %v", err)
	}
	s.Signature, _ = other.SignMessage(context.Background(), s.Message)

	err = uc.Submit(context.Background(), s)
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestDraftSubmitRejectsMalformedSignature(t *testing.T) {
	uc, _, _ := newTestDraftUsecase()
	s := signedSubmission(t)
	s.Signature = "0x1234"

	err := uc.Submit(context.Background(), s)
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestDraftSubmitDuplicate(t *testing.T) {
	uc, _, _ := newTestDraftUsecase()
	s := signedSubmission(t)

	if err := uc.Submit(context.Background(), s); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	err := uc.Submit(context.Background(), s)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDraftSubmitStorageFailure(t *testing.T) {
	uc, repo, pub := newTestDraftUsecase()
	repo.insertFn = func(domain.BankDetails) error { return errors.New("connection refused") }

	err := uc.Submit(context.Background(), signedSubmission(t))
	if err == nil || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(pub.types()) != 0 {
		t.Fatalf("no event expected on storage failure")
	}
}

func TestDraftSubmitWrongChain(t *testing.T) {
	uc, _, _ := newTestDraftUsecase()
	s := signedSubmission(t)
	s.ChainID = 1

	err := uc.Submit(context.Background(), s)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateSubmission(t *testing.T) {
	base := signedSubmission(t)

	cases := map[string]func(*pinjaman.BankDetailsSubmission){
		"draft id not uuid":  func(s *pinjaman.BankDetailsSubmission) { s.DraftID = "draft-1" },
		"draft id v1":        func(s *pinjaman.BankDetailsSubmission) { s.DraftID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8" },
		"short ref hash":     func(s *pinjaman.BankDetailsSubmission) { s.ReferenceHash = "0x1234" },
		"bad address":        func(s *pinjaman.BankDetailsSubmission) { s.Address = "0xnothex" },
		"bad token":          func(s *pinjaman.BankDetailsSubmission) { s.Token = "BTC" },
		"missing bank":       func(s *pinjaman.BankDetailsSubmission) { s.BankName = "" },
		"missing signature":  func(s *pinjaman.BankDetailsSubmission) { s.Signature = "" },
		"missing chain id":   func(s *pinjaman.BankDetailsSubmission) { s.ChainID = 0 },
		"missing recipients": func(s *pinjaman.BankDetailsSubmission) { s.RecipientName = "" },
	}

	for name, mutate := range cases {
		s := base
		mutate(&s)
		if err := ValidateSubmission(s); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	if err := ValidateSubmission(base); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}
}

func TestMessageFieldErrorNamesField(t *testing.T) {
	_, err := pinjaman.BuildMessage(pinjaman.MessageFields{Address: "0xabc"})
	if err == nil {
		t.Fatalf("expected build failure")
	}

	got := messageFieldError(err)
	if got.Field != "token" || !errors.Is(got, domain.ErrValidation) {
		t.Fatalf("unexpected validation error %+v", got)
	}

	got = messageFieldError(errors.New("boom"))
	if got.Field != "message" || got.Reason != "boom" {
		t.Fatalf("unexpected fallback %+v", got)
	}
}
