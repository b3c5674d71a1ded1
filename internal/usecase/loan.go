package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

// OpenRequest is the borrow form as the user entered it.
type OpenRequest struct {
	Token            pinjaman.Token
	CollateralAmount string
	RequestedAmount  string
	RecipientName    string
	BankName         string
	AccountNumber    string
}

type OpenResult struct {
	DraftID       string       `json:"draftId"`
	ReferenceHash string       `json:"offchainRefHash"`
	PositionID    uint64       `json:"positionId"`
	TxHash        string       `json:"txHash"`
	ApproveTxHash string       `json:"approveTxHash,omitempty"`
	Quote         domain.Quote `json:"quote"`
}

// LoanUsecase opens positions: the signed bank-details draft is stored first
// and the ledger request is sent only after it was accepted.
type LoanUsecase struct {
	ledger LedgerGateway
	drafts DraftGateway
	signer WalletSigner
	chain  domain.ChainConfig
	risk   domain.RiskParams
	now    func() time.Time
}

func NewLoanUsecase(
	ledger LedgerGateway,
	drafts DraftGateway,
	signer WalletSigner,
	chain domain.ChainConfig,
	risk domain.RiskParams,
) *LoanUsecase {
	return &LoanUsecase{
		ledger: ledger,
		drafts: drafts,
		signer: signer,
		chain:  chain,
		risk:   risk,
		now:    time.Now,
	}
}

type parsedRequest struct {
	collateral *big.Int
	requested  *big.Int
}

func (uc *LoanUsecase) validate(req OpenRequest) (parsedRequest, error) {
	if !req.Token.Valid() {
		return parsedRequest{}, domain.ValidationError{Field: "token", Reason: "must be ETH or USDC"}
	}
	collateral, err := pinjaman.ParseUnits(req.CollateralAmount, uc.chain.Decimals(req.Token))
	if err != nil || collateral.Sign() <= 0 {
		return parsedRequest{}, domain.ValidationError{Field: "collateralAmount", Reason: "must be a positive number"}
	}
	requested := pinjaman.ParseIDR(req.RequestedAmount)
	if requested.Sign() <= 0 {
		return parsedRequest{}, domain.ValidationError{Field: "requestedIdr", Reason: "must be a positive amount"}
	}
	minLengths := []struct {
		name  string
		value string
		min   int
	}{
		{"recipientName", req.RecipientName, 2},
		{"bankName", req.BankName, 2},
		{"accountNumber", req.AccountNumber, 5},
	}
	for _, f := range minLengths {
		if len(strings.TrimSpace(f.value)) < f.min {
			return parsedRequest{}, domain.ValidationError{Field: f.name, Reason: "is too short"}
		}
	}
	return parsedRequest{collateral: collateral, requested: requested}, nil
}

// readValuation issues the two independent valuation reads concurrently.
func readValuation(ctx context.Context, ledger LedgerReader, amount *big.Int, token pinjaman.Token) (cv, maxBorrow *big.Int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cv, err = ledger.CollateralValue(gctx, amount, token)
		return err
	})
	g.Go(func() (err error) {
		maxBorrow, err = ledger.MaxBorrow(gctx, amount, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, domain.InsufficientDataError{Err: err}
	}
	return cv, maxBorrow, nil
}

func (uc *LoanUsecase) checkFresh(ctx context.Context) error {
	stale, err := uc.ledger.IsPriceStale(ctx)
	if err != nil {
		return domain.InsufficientDataError{Err: err}
	}
	if stale {
		return domain.StaleDataError{}
	}
	return nil
}

// Open runs the whole borrow flow. Errors returned before the draft was
// accepted leave nothing behind; errors after it are OrphanedDraftError.
func (uc *LoanUsecase) Open(ctx context.Context, req OpenRequest) (OpenResult, error) {
	ctx, span := tracer.Start(ctx, "Loan.Usecase.Open")
	defer span.End()

	parsed, err := uc.validate(req)
	if err != nil {
		return OpenResult{}, err
	}
	owner := uc.signer.Address()

	if err := uc.checkFresh(ctx); err != nil {
		span.RecordError(err)
		return OpenResult{}, err
	}

	cv, maxBorrow, err := readValuation(ctx, uc.ledger, parsed.collateral, req.Token)
	if err != nil {
		span.RecordError(err)
		return OpenResult{}, err
	}
	if err := domain.CheckBorrow(parsed.requested, maxBorrow); err != nil {
		return OpenResult{}, err
	}

	balance, err := uc.ledger.Balance(ctx, owner, req.Token)
	if err != nil {
		span.RecordError(err)
		return OpenResult{}, err
	}
	if balance.Cmp(parsed.collateral) < 0 {
		return OpenResult{}, domain.InsufficientBalanceError{Have: balance, Need: parsed.collateral}
	}

	draft := pinjaman.LoanDraft{
		DraftID:          uuid.NewString(),
		Token:            req.Token,
		CollateralAmount: req.CollateralAmount,
		RequestedAmount:  req.RequestedAmount,
		Address:          owner.Hex(),
		RecipientName:    req.RecipientName,
		BankName:         req.BankName,
		AccountNumber:    req.AccountNumber,
		Timestamp:        pinjaman.ISOTimestamp(uc.now()),
		ChainID:          uc.chain.ChainID,
	}
	ref := pinjaman.ReferenceHash(draft.DraftID)
	span.SetAttributes(attribute.String("draftId", draft.DraftID))

	message, err := pinjaman.BuildMessage(draft.MessageFields())
	if err != nil {
		return OpenResult{}, domain.ValidationError{Reason: err.Error()}
	}

	signature, err := uc.signer.SignMessage(ctx, message)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return OpenResult{}, domain.SigningCancelledError{Err: err}
		}
		return OpenResult{}, pkgerrors.Wrap(err, "failed to sign attestation")
	}

	err = uc.drafts.SubmitBankDetails(ctx, pinjaman.BankDetailsSubmission{
		DraftID:          draft.DraftID,
		ReferenceHash:    ref.Hex(),
		Address:          draft.Address,
		Token:            string(draft.Token),
		CollateralAmount: draft.CollateralAmount,
		RequestedAmount:  draft.RequestedAmount,
		Timestamp:        draft.Timestamp,
		ChainID:          draft.ChainID,
		RecipientName:    draft.RecipientName,
		BankName:         draft.BankName,
		AccountNumber:    draft.AccountNumber,
		Signature:        signature,
		Message:          message,
	})
	if err != nil {
		span.RecordError(err)
		return OpenResult{}, err
	}

	result := OpenResult{
		DraftID:       draft.DraftID,
		ReferenceHash: ref.Hex(),
		Quote: domain.Quote{
			Token:           string(req.Token),
			CollateralValue: cv.String(),
			MaxBorrow:       maxBorrow.String(),
			Requested:       parsed.requested.String(),
		},
	}

	orphan := func(err error) (OpenResult, error) {
		span.RecordError(err)
		slog.ErrorContext(
			ctx, "loan request failed after draft was stored",
			slog.String("draftId", draft.DraftID),
			slog.String("error", err.Error()),
			slog.String("module", "loan"),
		)
		return result, domain.OrphanedDraftError{DraftID: draft.DraftID, Err: err}
	}

	// signing may have taken a while
	if err := uc.checkFresh(ctx); err != nil {
		return orphan(err)
	}

	var pending domain.PendingTx
	switch req.Token {
	case pinjaman.TokenStable:
		approveTx, err := uc.ensureAllowance(ctx, owner, parsed.collateral)
		if err != nil {
			return orphan(err)
		}
		result.ApproveTxHash = approveTx
		pending, err = uc.ledger.OpenPositionStable(ctx, parsed.collateral, parsed.requested, ref)
		if err != nil {
			return orphan(err)
		}
	default:
		pending, err = uc.ledger.OpenPositionNative(ctx, parsed.requested, ref, parsed.collateral)
		if err != nil {
			return orphan(err)
		}
	}
	result.TxHash = pending.Hash.Hex()

	receipt, err := uc.ledger.WaitReceipt(ctx, pending)
	if err != nil {
		return orphan(err)
	}
	if !receipt.Success {
		return orphan(pkgerrors.New("loan request transaction reverted"))
	}
	if receipt.PositionID == nil {
		return orphan(pkgerrors.New("loan request receipt carries no LoanRequested event"))
	}
	result.PositionID = *receipt.PositionID

	slog.InfoContext(
		ctx, "loan requested",
		slog.String("draftId", draft.DraftID),
		slog.Uint64("positionId", result.PositionID),
		slog.String("module", "loan"),
	)
	return result, nil
}

// ensureAllowance approves the loan manager for amount when the current
// allowance is short, and waits for the approval to be included.
func (uc *LoanUsecase) ensureAllowance(ctx context.Context, owner common.Address, amount *big.Int) (string, error) {
	allowance, err := uc.ledger.Allowance(ctx, owner)
	if err != nil {
		return "", err
	}
	if allowance.Cmp(amount) >= 0 {
		return "", nil
	}
	pending, err := uc.ledger.Approve(ctx, amount)
	if err != nil {
		return "", err
	}
	receipt, err := uc.ledger.WaitReceipt(ctx, pending)
	if err != nil {
		return "", err
	}
	if !receipt.Success {
		return "", pkgerrors.New("approve transaction reverted")
	}
	return pending.Hash.Hex(), nil
}
