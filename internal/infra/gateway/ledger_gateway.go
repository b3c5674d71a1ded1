package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/patrickmn/go-cache"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
	"github.com/pinjaman/hybrid/internal/usecase"
)

// Backend is what the gateway needs from a node; *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type LedgerGateway struct {
	backend Backend
	chain   domain.ChainConfig

	managerABI abi.ABI
	manager    *bind.BoundContract
	stable     *bind.BoundContract

	// nil for a read-only gateway
	transactor *bind.TransactOpts
	sendMu     sync.Mutex

	reads        *cache.Cache
	sent         *cache.Cache
	pollInterval time.Duration
}

// NewLedgerGateway binds the loan manager and the stable token. key may be
// nil, in which case every write fails.
func NewLedgerGateway(backend Backend, chain domain.ChainConfig, key *ecdsa.PrivateKey) (*LedgerGateway, error) {
	managerABI, err := abi.JSON(strings.NewReader(loanManagerABI))
	if err != nil {
		return nil, err
	}
	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}

	g := &LedgerGateway{
		backend:      backend,
		chain:        chain,
		managerABI:   managerABI,
		manager:      bind.NewBoundContract(chain.ContractAddress, managerABI, backend, backend, backend),
		stable:       bind.NewBoundContract(chain.StableAddress, tokenABI, backend, backend, backend),
		reads:        cache.New(15*time.Second, time.Minute),
		sent:         cache.New(time.Hour, 10*time.Minute),
		pollInterval: time.Second,
	}

	if key != nil {
		g.transactor, err = bind.NewKeyedTransactorWithChainID(key, big.NewInt(chain.ChainID))
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// wrap separates ledger rejections from an unreachable node.
func wrap(method string, err error) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) || strings.Contains(err.Error(), "execution reverted") {
		return pkgerrors.Wrapf(err, "%s rejected by the ledger", method)
	}
	return domain.GatewayUnavailableError{Gateway: "ledger", Err: pkgerrors.Wrap(err, method)}
}

func (g *LedgerGateway) call(ctx context.Context, contract *bind.BoundContract, method string, args ...any) ([]any, error) {
	timer := prometheus.NewTimer(ledgerCallDuration.WithLabelValues(method))
	defer timer.ObserveDuration()

	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		ledgerCallErrors.WithLabelValues(method).Inc()
		return nil, wrap(method, err)
	}
	if len(out) == 0 {
		return nil, pkgerrors.Errorf("%s returned no values", method)
	}
	return out, nil
}

func (g *LedgerGateway) callBig(ctx context.Context, contract *bind.BoundContract, method string, args ...any) (*big.Int, error) {
	out, err := g.call(ctx, contract, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, pkgerrors.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}

func toUint64(v *big.Int) uint64 {
	if !v.IsUint64() {
		return math.MaxUint64
	}
	return v.Uint64()
}

func (g *LedgerGateway) CollateralValue(ctx context.Context, amount *big.Int, token pinjaman.Token) (*big.Int, error) {
	return g.callBig(ctx, g.manager, "getCollateralValueIDRForToken", amount, g.chain.TokenAddress(token))
}

func (g *LedgerGateway) MaxBorrow(ctx context.Context, amount *big.Int, token pinjaman.Token) (*big.Int, error) {
	return g.callBig(ctx, g.manager, "getMaxBorrowIDR", amount, g.chain.TokenAddress(token))
}

func (g *LedgerGateway) DebtNow(ctx context.Context, positionID uint64) (*big.Int, error) {
	return g.callBig(ctx, g.manager, "getDebtNow", new(big.Int).SetUint64(positionID))
}

func (g *LedgerGateway) CollateralValueOf(ctx context.Context, positionID uint64) (*big.Int, error) {
	return g.callBig(ctx, g.manager, "getCollateralValueIDR", new(big.Int).SetUint64(positionID))
}

func (g *LedgerGateway) LtvNow(ctx context.Context, positionID uint64) (uint64, error) {
	v, err := g.callBig(ctx, g.manager, "getLtvNow", new(big.Int).SetUint64(positionID))
	if err != nil {
		return 0, err
	}
	return toUint64(v), nil
}

func positionKey(positionID uint64) string {
	return "position:" + strconv.FormatUint(positionID, 10)
}

func (g *LedgerGateway) PositionOf(ctx context.Context, positionID uint64, opts usecase.ReadOptions) (domain.Position, error) {
	key := positionKey(positionID)
	if !opts.Fresh {
		if cached, found := g.reads.Get(key); found {
			return cached.(domain.Position), nil
		}
	}

	out, err := g.call(ctx, g.manager, "positions", new(big.Int).SetUint64(positionID))
	if err != nil {
		return domain.Position{}, err
	}
	pos, err := positionFromOutputs(positionID, out, g.chain)
	if err != nil {
		return domain.Position{}, err
	}

	g.reads.Set(key, pos, cache.DefaultExpiration)
	return pos, nil
}

// positionFromOutputs decodes the positions(uint256) tuple. A zero borrower
// means the id was never assigned.
func positionFromOutputs(positionID uint64, out []any, chain domain.ChainConfig) (domain.Position, error) {
	if len(out) != 10 {
		return domain.Position{}, pkgerrors.Errorf("positions returned %d values", len(out))
	}

	borrower, ok1 := out[1].(common.Address)
	token, ok2 := out[2].(common.Address)
	amount, ok3 := out[3].(*big.Int)
	principal, ok4 := out[4].(*big.Int)
	apr, ok5 := out[5].(*big.Int)
	openedAt, ok6 := out[6].(*big.Int)
	status, ok7 := out[7].(uint8)
	offchainRef, ok8 := out[8].([32]byte)
	repayRef, ok9 := out[9].([32]byte)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8 && ok9) {
		return domain.Position{}, pkgerrors.New("positions returned an unexpected tuple")
	}

	if borrower == (common.Address{}) {
		return domain.Position{}, domain.NotFoundError{Resource: "position " + strconv.FormatUint(positionID, 10)}
	}

	st, err := domain.StatusFromOrdinal(uint64(status))
	if err != nil {
		return domain.Position{}, err
	}

	return domain.Position{
		ID:               positionID,
		Owner:            borrower,
		Token:            chain.TokenOf(token),
		TokenAddress:     token,
		CollateralAmount: amount,
		Principal:        principal,
		AprBps:           toUint64(apr),
		OpenedAt:         time.Unix(openedAt.Int64(), 0).UTC(),
		Status:           st,
		OffchainRefHash:  common.Hash(offchainRef),
		RepayRefHash:     common.Hash(repayRef),
	}, nil
}

func (g *LedgerGateway) UserPositions(ctx context.Context, owner common.Address) ([]uint64, error) {
	out, err := g.call(ctx, g.manager, "getUserPositions", owner)
	if err != nil {
		return nil, err
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, pkgerrors.Errorf("getUserPositions returned %T", out[0])
	}
	ids := make([]uint64, len(raw))
	for i, v := range raw {
		ids[i] = toUint64(v)
	}
	return ids, nil
}

func (g *LedgerGateway) EthUsdPrice(ctx context.Context) (*big.Int, error) {
	return g.callBig(ctx, g.manager, "getEthUsd")
}

func (g *LedgerGateway) UsdIdrRate(ctx context.Context) (*big.Int, error) {
	return g.callBig(ctx, g.manager, "usdIdrRate")
}

func (g *LedgerGateway) UsdIdrUpdatedAt(ctx context.Context) (time.Time, error) {
	v, err := g.callBig(ctx, g.manager, "usdIdrUpdatedAt")
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v.Int64(), 0).UTC(), nil
}

func (g *LedgerGateway) IsPriceStale(ctx context.Context) (bool, error) {
	out, err := g.call(ctx, g.manager, "isFxRateStale")
	if err != nil {
		return false, err
	}
	stale, ok := out[0].(bool)
	if !ok {
		return false, pkgerrors.Errorf("isFxRateStale returned %T", out[0])
	}
	return stale, nil
}

func (g *LedgerGateway) Balance(ctx context.Context, owner common.Address, token pinjaman.Token) (*big.Int, error) {
	if token == pinjaman.TokenStable {
		return g.callBig(ctx, g.stable, "balanceOf", owner)
	}
	balance, err := g.backend.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, wrap("balance", err)
	}
	return balance, nil
}

func (g *LedgerGateway) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return g.callBig(ctx, g.stable, "allowance", owner, g.chain.ContractAddress)
}

func (g *LedgerGateway) send(ctx context.Context, contract *bind.BoundContract, value *big.Int, method string, args ...any) (domain.PendingTx, error) {
	if g.transactor == nil {
		return domain.PendingTx{}, pkgerrors.New("ledger gateway has no signing key")
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	opts := *g.transactor
	opts.Context = ctx
	opts.Value = value

	timer := prometheus.NewTimer(ledgerCallDuration.WithLabelValues(method))
	tx, err := contract.Transact(&opts, method, args...)
	timer.ObserveDuration()
	if err != nil {
		ledgerCallErrors.WithLabelValues(method).Inc()
		return domain.PendingTx{}, wrap(method, err)
	}

	g.sent.Set(tx.Hash().Hex(), tx, cache.DefaultExpiration)
	return domain.PendingTx{Hash: tx.Hash()}, nil
}

func (g *LedgerGateway) Approve(ctx context.Context, amount *big.Int) (domain.PendingTx, error) {
	return g.send(ctx, g.stable, nil, "approve", g.chain.ContractAddress, amount)
}

func (g *LedgerGateway) OpenPositionNative(ctx context.Context, requested *big.Int, ref common.Hash, value *big.Int) (domain.PendingTx, error) {
	return g.send(ctx, g.manager, value, "createRequestETH", requested, [32]byte(ref))
}

func (g *LedgerGateway) OpenPositionStable(ctx context.Context, amount, requested *big.Int, ref common.Hash) (domain.PendingTx, error) {
	return g.send(ctx, g.manager, nil, "createRequestUSDC", amount, requested, [32]byte(ref))
}

func (g *LedgerGateway) RequestRepay(ctx context.Context, positionID uint64, ref common.Hash) (domain.PendingTx, error) {
	return g.send(ctx, g.manager, nil, "requestRepay", new(big.Int).SetUint64(positionID), [32]byte(ref))
}

func (g *LedgerGateway) WithdrawCollateral(ctx context.Context, positionID uint64) (domain.PendingTx, error) {
	return g.send(ctx, g.manager, nil, "withdrawCollateral", new(big.Int).SetUint64(positionID))
}

// WaitReceipt blocks until the transaction is included. A context that ends
// first leaves the outcome unknown, reported as an ambiguous gateway error.
func (g *LedgerGateway) WaitReceipt(ctx context.Context, pending domain.PendingTx) (domain.Receipt, error) {
	var (
		receipt *types.Receipt
		err     error
	)
	if tx, found := g.sent.Get(pending.Hash.Hex()); found {
		receipt, err = bind.WaitMined(ctx, g.backend, tx.(*types.Transaction))
	} else {
		receipt, err = g.pollReceipt(ctx, pending.Hash)
	}
	if err != nil {
		if ctx.Err() != nil {
			return domain.Receipt{}, domain.GatewayUnavailableError{Gateway: "ledger", Ambiguous: true, Err: err}
		}
		return domain.Receipt{}, wrap("receipt", err)
	}

	// positions may have moved
	g.reads.Flush()

	out := domain.Receipt{
		TxHash:  receipt.TxHash,
		Success: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if id, ok := g.loanRequestedID(receipt.Logs); ok {
		out.PositionID = &id
	}
	return out, nil
}

func (g *LedgerGateway) pollReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type loanRequested struct {
	PositionId       *big.Int
	Borrower         common.Address
	CollateralToken  common.Address
	CollateralAmount *big.Int
	RequestedIdr     *big.Int
	OffchainRefHash  [32]byte
}

// loanRequestedID finds the LoanRequested event the loan manager emitted.
func (g *LedgerGateway) loanRequestedID(logs []*types.Log) (uint64, bool) {
	event := g.managerABI.Events["LoanRequested"]
	for _, l := range logs {
		if l == nil || l.Address != g.chain.ContractAddress || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		var ev loanRequested
		if err := g.manager.UnpackLog(&ev, "LoanRequested", *l); err != nil {
			continue
		}
		return toUint64(ev.PositionId), true
	}
	return 0, false
}
