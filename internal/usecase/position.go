package usecase

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

const (
	quoteTTL = 15 * time.Second
	ratesTTL = 30 * time.Second
)

// PositionUsecase drives the position lifecycle against the ledger. Status is
// never tracked locally; every decision reads the ledger.
type PositionUsecase struct {
	ledger    LedgerGateway
	refs      RepayReferenceStore
	publisher EventPublisher
	cache     Cache
	chain     domain.ChainConfig
	risk      domain.RiskParams
	now       func() time.Time
}

func NewPositionUsecase(
	ledger LedgerGateway,
	refs RepayReferenceStore,
	publisher EventPublisher,
	cache Cache,
	chain domain.ChainConfig,
	risk domain.RiskParams,
) *PositionUsecase {
	return &PositionUsecase{
		ledger:    ledger,
		refs:      refs,
		publisher: publisher,
		cache:     cache,
		chain:     chain,
		risk:      risk,
		now:       time.Now,
	}
}

func (uc *PositionUsecase) Get(ctx context.Context, positionID uint64, viewer string) (domain.PositionView, error) {
	ctx, span := tracer.Start(ctx, "Position.Usecase.Get")
	defer span.End()

	pos, err := uc.ledger.PositionOf(ctx, positionID, ReadOptions{})
	if err != nil {
		span.RecordError(err)
		return domain.PositionView{}, err
	}
	if err := pos.CheckViewer(viewer); err != nil {
		return domain.PositionView{}, err
	}

	var (
		debt *big.Int
		cv   *big.Int
		ltv  uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		debt, err = uc.ledger.DebtNow(gctx, positionID)
		return err
	})
	g.Go(func() (err error) {
		cv, err = uc.ledger.CollateralValueOf(gctx, positionID)
		return err
	})
	g.Go(func() (err error) {
		ltv, err = uc.ledger.LtvNow(gctx, positionID)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.PositionView{}, domain.InsufficientDataError{Err: err}
	}

	return domain.PositionView{
		ID:                  pos.ID,
		Owner:               pos.Owner.Hex(),
		Token:               string(pos.Token),
		CollateralAmount:    pinjaman.FormatUnits(pos.CollateralAmount, uc.chain.Decimals(pos.Token)),
		Principal:           pos.Principal.String(),
		DebtNow:             debt.String(),
		CollateralValue:     cv.String(),
		LtvBps:              ltv,
		LtvPercent:          domain.FormatBps(ltv),
		Tier:                domain.WarningTierOf(ltv, uc.risk).String(),
		LiquidationEligible: domain.IsLiquidationEligible(ltv, uc.risk.LiquidationThresholdBps),
		Status:              pos.Status.Key(),
		CanRequestRepay:     pos.Status.CanRequestRepay(),
		CanWithdraw:         pos.Status.CanWithdraw(),
	}, nil
}

func (uc *PositionUsecase) List(ctx context.Context, owner string) ([]domain.PositionSummary, error) {
	ctx, span := tracer.Start(ctx, "Position.Usecase.List")
	defer span.End()

	if !pinjaman.IsAddress(owner) {
		return nil, domain.ValidationError{Field: "owner", Reason: "must be a 0x-prefixed 20 byte hex address"}
	}

	ids, err := uc.ledger.UserPositions(ctx, common.HexToAddress(owner))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	summaries := make([]domain.PositionSummary, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			pos, err := uc.ledger.PositionOf(gctx, id, ReadOptions{})
			if err != nil {
				return err
			}
			summaries[i] = domain.PositionSummary{
				ID:        pos.ID,
				Status:    pos.Status.Key(),
				Principal: pos.Principal.String(),
				Token:     string(pos.Token),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.InsufficientDataError{Err: err}
	}
	return summaries, nil
}

// Quote estimates a prospective loan for display. requested may be empty.
func (uc *PositionUsecase) Quote(ctx context.Context, token, amount, requested string) (domain.Quote, error) {
	ctx, span := tracer.Start(ctx, "Position.Usecase.Quote")
	defer span.End()

	tok, err := pinjaman.ParseToken(token)
	if err != nil {
		return domain.Quote{}, domain.ValidationError{Field: "token", Reason: err.Error()}
	}
	units, err := pinjaman.ParseUnits(amount, uc.chain.Decimals(tok))
	if err != nil || units.Sign() == 0 {
		return domain.Quote{}, domain.ValidationError{Field: "amount", Reason: "must be a positive number"}
	}

	key := "quote:" + string(tok) + ":" + units.String() + ":" + requested
	var quote domain.Quote
	if uc.cache != nil && uc.cache.Get(ctx, key, &quote) {
		return quote, nil
	}

	cv, maxBorrow, err := readValuation(ctx, uc.ledger, units, tok)
	if err != nil {
		span.RecordError(err)
		return domain.Quote{}, err
	}

	quote = domain.Quote{
		Token:           string(tok),
		CollateralValue: cv.String(),
		MaxBorrow:       maxBorrow.String(),
	}
	if requested != "" {
		req := pinjaman.ParseIDR(requested)
		debt := domain.EstimatedAnnualDebt(req, uc.risk.AprBps)
		quote.Requested = req.String()
		quote.EstimatedDebt = debt.String()
		quote.LtvBps = domain.LtvBps(debt, cv)
	}
	quote.LtvPercent = domain.FormatBps(quote.LtvBps)
	quote.Tier = domain.WarningTierOf(quote.LtvBps, uc.risk).String()

	if uc.cache != nil {
		uc.cache.Set(ctx, key, quote, quoteTTL)
	}
	return quote, nil
}

func (uc *PositionUsecase) Rates(ctx context.Context) (domain.Rates, error) {
	ctx, span := tracer.Start(ctx, "Position.Usecase.Rates")
	defer span.End()

	var rates domain.Rates
	if uc.cache != nil && uc.cache.Get(ctx, "rates", &rates) {
		return rates, nil
	}

	var (
		ethUsd, usdIdr *big.Int
		updatedAt      time.Time
		stale          bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ethUsd, err = uc.ledger.EthUsdPrice(gctx)
		return err
	})
	g.Go(func() (err error) {
		usdIdr, err = uc.ledger.UsdIdrRate(gctx)
		return err
	})
	g.Go(func() (err error) {
		updatedAt, err = uc.ledger.UsdIdrUpdatedAt(gctx)
		return err
	})
	g.Go(func() (err error) {
		stale, err = uc.ledger.IsPriceStale(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.Rates{}, domain.InsufficientDataError{Err: err}
	}

	rates = domain.Rates{
		EthUsd:    ethUsd.String(),
		UsdIdr:    usdIdr.String(),
		UpdatedAt: updatedAt,
		Stale:     stale,
	}
	if uc.cache != nil {
		uc.cache.Set(ctx, "rates", rates, ratesTTL)
	}
	return rates, nil
}

// freshOwned reads the position bypassing caches and checks the caller owns it.
func (uc *PositionUsecase) freshOwned(ctx context.Context, positionID uint64, owner common.Address) (domain.Position, error) {
	pos, err := uc.ledger.PositionOf(ctx, positionID, ReadOptions{Fresh: true})
	if err != nil {
		return domain.Position{}, err
	}
	if pos.Owner != owner {
		return domain.Position{}, domain.OwnershipMismatchError{}
	}
	return pos, nil
}

// RequestRepay asks the ledger to move an ACTIVE position to REPAY_REQUESTED.
// The repay reference tuple is stored before submission so it stays verifiable.
func (uc *PositionUsecase) RequestRepay(ctx context.Context, positionID uint64, owner common.Address) (domain.RepayReference, error) {
	ctx, span := tracer.Start(ctx, "Position.Usecase.RequestRepay")
	defer span.End()
	span.SetAttributes(attribute.Int64("positionId", int64(positionID)))

	pos, err := uc.freshOwned(ctx, positionID, owner)
	if err != nil {
		span.RecordError(err)
		return domain.RepayReference{}, err
	}
	if !pos.Status.CanRequestRepay() {
		return domain.RepayReference{}, domain.InvalidTransitionError{PositionID: positionID, Action: "request repay", Status: pos.Status}
	}

	now := uc.now()
	ref := domain.RepayReference{
		PositionID:      positionID,
		TimestampMillis: now.UnixMilli(),
		CreatedAt:       now,
	}
	hash := pinjaman.RepayReference(positionID, ref.TimestampMillis)
	ref.Hash = hash.Hex()

	if uc.refs != nil {
		if err := uc.refs.SaveRepayReference(ctx, ref); err != nil {
			span.RecordError(err)
			return domain.RepayReference{}, pkgerrors.Wrap(err, "failed to record repay reference")
		}
	}

	pending, err := uc.ledger.RequestRepay(ctx, positionID, hash)
	if err != nil {
		span.RecordError(err)
		return ref, err
	}
	ref.TxHash = pending.Hash.Hex()

	// the tx is already sent; a lost tx hash only degrades traceability
	if uc.refs != nil {
		if err := uc.refs.AttachRepayTx(ctx, ref.Hash, ref.TxHash); err != nil {
			slog.WarnContext(
				ctx, "failed to attach repay tx",
				slog.String("hash", ref.Hash),
				slog.String("error", err.Error()),
				slog.String("module", "position"),
			)
		}
	}

	_, err = uc.confirm(ctx, pending, positionID, "request repay", func(p domain.Position) bool {
		return p.Status == domain.StatusRepayRequested
	})
	if err != nil {
		span.RecordError(err)
		return ref, err
	}

	uc.publish(ctx, pos.Owner, pinjaman.EventRepayRequested, positionID, domain.StatusRepayRequested)
	return ref, nil
}

// WithdrawCollateral releases collateral of a CLOSED position.
func (uc *PositionUsecase) WithdrawCollateral(ctx context.Context, positionID uint64, owner common.Address) (domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Position.Usecase.WithdrawCollateral")
	defer span.End()
	span.SetAttributes(attribute.Int64("positionId", int64(positionID)))

	pos, err := uc.freshOwned(ctx, positionID, owner)
	if err != nil {
		span.RecordError(err)
		return domain.Receipt{}, err
	}
	if !pos.Status.CanWithdraw() {
		return domain.Receipt{}, domain.InvalidTransitionError{PositionID: positionID, Action: "withdraw collateral from", Status: pos.Status}
	}
	if pos.CollateralReleased() {
		return domain.Receipt{}, domain.InvalidTransitionError{PositionID: positionID, Action: "withdraw released collateral from", Status: pos.Status}
	}

	pending, err := uc.ledger.WithdrawCollateral(ctx, positionID)
	if err != nil {
		span.RecordError(err)
		return domain.Receipt{}, err
	}

	receipt, err := uc.confirm(ctx, pending, positionID, "withdraw collateral from", func(p domain.Position) bool {
		return p.Status == domain.StatusClosed && p.CollateralReleased()
	})
	if err != nil {
		span.RecordError(err)
		return domain.Receipt{}, err
	}

	uc.publish(ctx, pos.Owner, pinjaman.EventCollateralFreed, positionID, domain.StatusClosed)
	return receipt, nil
}

// confirm waits for inclusion and re-reads the position; the write only counts
// once its effect is observed on the ledger.
func (uc *PositionUsecase) confirm(ctx context.Context, pending domain.PendingTx, positionID uint64, action string, observed func(domain.Position) bool) (domain.Receipt, error) {
	receipt, err := uc.ledger.WaitReceipt(ctx, pending)
	if err != nil {
		return domain.Receipt{}, err
	}

	after, err := uc.ledger.PositionOf(ctx, positionID, ReadOptions{Fresh: true})
	if err != nil {
		return receipt, err
	}
	if !receipt.Success || !observed(after) {
		return receipt, domain.InvalidTransitionError{PositionID: positionID, Action: action, Status: after.Status}
	}
	return receipt, nil
}

func (uc *PositionUsecase) publish(ctx context.Context, owner common.Address, kind string, positionID uint64, status domain.Status) {
	if uc.publisher == nil {
		return
	}
	id := positionID
	err := uc.publisher.Publish(ctx, WalletChannel(owner.Hex()), pinjaman.Event{
		Type:       kind,
		Wallet:     owner.Hex(),
		PositionID: &id,
		Status:     status.Key(),
		Timestamp:  uc.now(),
	})
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish event",
			slog.String("type", kind),
			slog.String("error", err.Error()),
			slog.String("module", "position"),
		)
	}
}
