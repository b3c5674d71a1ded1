package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pinjaman/hybrid"
)

type ReconcileReport struct {
	Checked  int
	Bound    int
	Orphaned int
}

// ReconcileUsecase binds stored drafts to the positions that carry their
// reference hash. Drafts with no position after the window are orphaned; they
// are kept for audit, never deleted.
type ReconcileUsecase struct {
	drafts    DraftRepository
	ledger    LedgerReader
	publisher EventPublisher
	window    time.Duration
	now       func() time.Time
}

func NewReconcileUsecase(drafts DraftRepository, ledger LedgerReader, publisher EventPublisher, window time.Duration) *ReconcileUsecase {
	return &ReconcileUsecase{
		drafts:    drafts,
		ledger:    ledger,
		publisher: publisher,
		window:    window,
		now:       time.Now,
	}
}

func (uc *ReconcileUsecase) Run(ctx context.Context) (ReconcileReport, error) {
	ctx, span := tracer.Start(ctx, "Reconcile.Usecase.Run")
	defer span.End()

	now := uc.now()
	pending, err := uc.drafts.ListPending(ctx, now)
	if err != nil {
		span.RecordError(err)
		return ReconcileReport{}, err
	}

	report := ReconcileReport{Checked: len(pending)}
	byWallet := map[string]map[string]uint64{}

	for _, draft := range pending {
		wallet := strings.ToLower(draft.WalletAddress)
		refs, ok := byWallet[wallet]
		if !ok {
			refs, err = uc.positionRefs(ctx, draft.WalletAddress)
			if err != nil {
				slog.WarnContext(
					ctx, "failed to read wallet positions",
					slog.String("wallet", draft.WalletAddress),
					slog.String("error", err.Error()),
					slog.String("module", "reconcile"),
				)
				continue
			}
			byWallet[wallet] = refs
		}

		if positionID, found := refs[strings.ToLower(draft.ReferenceHash)]; found {
			if err := uc.drafts.MarkBound(ctx, draft.DraftID, positionID); err != nil {
				span.RecordError(err)
				return report, err
			}
			report.Bound++
			id := positionID
			uc.publish(ctx, pinjaman.Event{
				Type:       pinjaman.EventDraftBound,
				Wallet:     draft.WalletAddress,
				DraftID:    draft.DraftID,
				PositionID: &id,
				Timestamp:  now,
			})
			continue
		}

		if now.Sub(draft.CreatedAt) < uc.window {
			continue
		}
		if err := uc.drafts.MarkOrphaned(ctx, draft.DraftID); err != nil {
			span.RecordError(err)
			return report, err
		}
		report.Orphaned++
		uc.publish(ctx, pinjaman.Event{
			Type:      pinjaman.EventDraftOrphaned,
			Wallet:    draft.WalletAddress,
			DraftID:   draft.DraftID,
			Timestamp: now,
		})
	}

	slog.InfoContext(
		ctx, "reconcile finished",
		slog.Int("checked", report.Checked),
		slog.Int("bound", report.Bound),
		slog.Int("orphaned", report.Orphaned),
		slog.String("module", "reconcile"),
	)
	return report, nil
}

// positionRefs maps lower-case offchain reference hashes to position ids.
func (uc *ReconcileUsecase) positionRefs(ctx context.Context, wallet string) (map[string]uint64, error) {
	ids, err := uc.ledger.UserPositions(ctx, common.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}
	refs := make(map[string]uint64, len(ids))
	for _, id := range ids {
		pos, err := uc.ledger.PositionOf(ctx, id, ReadOptions{})
		if err != nil {
			return nil, err
		}
		refs[strings.ToLower(pos.OffchainRefHash.Hex())] = id
	}
	return refs, nil
}

func (uc *ReconcileUsecase) publish(ctx context.Context, event pinjaman.Event) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, WalletChannel(event.Wallet), event); err != nil {
		slog.WarnContext(
			ctx, "failed to publish event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
			slog.String("module", "reconcile"),
		)
	}
}
