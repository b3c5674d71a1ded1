package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

func TestReconcileBindsAndOrphans(t *testing.T) {
	now := time.Unix(1_767_225_600, 0)
	repo := newMockDraftRepo()
	ledger := newMockLedger()
	pub := &mockPublisher{}

	bound := uuid.NewString()
	stale := uuid.NewString()
	recent := uuid.NewString()
	for id, created := range map[string]time.Time{
		bound:  now.Add(-2 * time.Hour),
		stale:  now.Add(-2 * time.Hour),
		recent: now.Add(-time.Minute),
	} {
		repo.drafts[id] = domain.BankDetails{
			DraftID:       id,
			ReferenceHash: pinjaman.ReferenceHash(id).Hex(),
			WalletAddress: testSignerAddr.Hex(),
			Status:        domain.DraftPending,
			CreatedAt:     created,
		}
	}

	p := testPosition(4, domain.StatusPayoutPending)
	p.OffchainRefHash = pinjaman.ReferenceHash(bound)
	ledger.addPosition(p)

	uc := NewReconcileUsecase(repo, ledger, pub, time.Hour)
	uc.now = func() time.Time { return now }

	report, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Checked != 3 || report.Bound != 1 || report.Orphaned != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	if d := repo.drafts[bound]; d.Status != domain.DraftBound || d.PositionID == nil || *d.PositionID != 4 {
		t.Fatalf("expected draft bound to position 4, got %+v", d)
	}
	if d := repo.drafts[stale]; d.Status != domain.DraftOrphaned {
		t.Fatalf("expected stale draft orphaned, got %s", d.Status)
	}
	if d := repo.drafts[recent]; d.Status != domain.DraftPending {
		t.Fatalf("recent draft must stay pending, got %s", d.Status)
	}
	if len(pub.types()) != 2 {
		t.Fatalf("expected two events, got %v", pub.types())
	}

	report, err = uc.Run(context.Background())
	if err != nil || report.Checked != 1 {
		t.Fatalf("second run should only see the recent draft: %+v %v", report, err)
	}
}
