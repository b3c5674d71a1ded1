package usecase

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testSignerAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type mockDraftRepo struct {
	mu       sync.Mutex
	drafts   map[string]domain.BankDetails
	insertFn func(domain.BankDetails) error
}

func newMockDraftRepo() *mockDraftRepo {
	return &mockDraftRepo{drafts: map[string]domain.BankDetails{}}
}

func (m *mockDraftRepo) Insert(ctx context.Context, draft domain.BankDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertFn != nil {
		if err := m.insertFn(draft); err != nil {
			return err
		}
	}
	if _, ok := m.drafts[draft.DraftID]; ok {
		return domain.ConflictError{Resource: "draft " + draft.DraftID}
	}
	m.drafts[draft.DraftID] = draft
	return nil
}

func (m *mockDraftRepo) Get(ctx context.Context, draftID string) (domain.BankDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftID]
	if !ok {
		return domain.BankDetails{}, domain.NotFoundError{}
	}
	return d, nil
}

func (m *mockDraftRepo) ListPending(ctx context.Context, createdBefore time.Time) ([]domain.BankDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BankDetails
	for _, d := range m.drafts {
		if d.Status == domain.DraftPending && !d.CreatedAt.After(createdBefore) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDraftRepo) MarkBound(ctx context.Context, draftID string, positionID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.drafts[draftID]
	d.Status = domain.DraftBound
	d.PositionID = &positionID
	m.drafts[draftID] = d
	return nil
}

func (m *mockDraftRepo) MarkOrphaned(ctx context.Context, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.drafts[draftID]
	d.Status = domain.DraftOrphaned
	m.drafts[draftID] = d
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []pinjaman.Event
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, event pinjaman.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// mockLedger is an in-memory ledger. Writes record their calls and apply the
// effect configured by the test.
type mockLedger struct {
	mu sync.Mutex

	collateralValue *big.Int
	maxBorrow       *big.Int
	debt            *big.Int
	ltv             uint64
	balance         *big.Int
	allowance       *big.Int
	stale           bool
	staleAfter      int
	staleCalls      int

	positions map[uint64]domain.Position
	owners    map[common.Address][]uint64

	cvErr, maxErr, openErr, receiptErr error
	revert                             bool
	ignoreWrites                       bool

	calls    []string
	lastRef  common.Hash
	lastVal  *big.Int
	nextID   uint64
	opened   map[common.Hash]uint64
	freshOps int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		collateralValue: big.NewInt(10_000_000),
		maxBorrow:       big.NewInt(7_000_000),
		debt:            big.NewInt(0),
		balance:         big.NewInt(0).Exp(big.NewInt(10), big.NewInt(21), nil),
		allowance:       big.NewInt(0),
		positions:       map[uint64]domain.Position{},
		owners:          map[common.Address][]uint64{},
		opened:          map[common.Hash]uint64{},
		nextID:          1,
	}
}

func (m *mockLedger) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockLedger) called(call string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (m *mockLedger) addPosition(p domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.ID] = p
	m.owners[p.Owner] = append(m.owners[p.Owner], p.ID)
}

func (m *mockLedger) CollateralValue(ctx context.Context, amount *big.Int, token pinjaman.Token) (*big.Int, error) {
	m.record("CollateralValue")
	return m.collateralValue, m.cvErr
}

func (m *mockLedger) MaxBorrow(ctx context.Context, amount *big.Int, token pinjaman.Token) (*big.Int, error) {
	m.record("MaxBorrow")
	return m.maxBorrow, m.maxErr
}

func (m *mockLedger) DebtNow(ctx context.Context, positionID uint64) (*big.Int, error) {
	return m.debt, nil
}

func (m *mockLedger) CollateralValueOf(ctx context.Context, positionID uint64) (*big.Int, error) {
	return m.collateralValue, m.cvErr
}

func (m *mockLedger) LtvNow(ctx context.Context, positionID uint64) (uint64, error) {
	return m.ltv, nil
}

func (m *mockLedger) PositionOf(ctx context.Context, positionID uint64, opts ReadOptions) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.Fresh {
		m.freshOps++
	}
	p, ok := m.positions[positionID]
	if !ok {
		return domain.Position{}, domain.NotFoundError{}
	}
	return p, nil
}

func (m *mockLedger) UserPositions(ctx context.Context, owner common.Address) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owners[owner], nil
}

func (m *mockLedger) EthUsdPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(3_000_00000000), nil
}

func (m *mockLedger) UsdIdrRate(ctx context.Context) (*big.Int, error) {
	return big.NewInt(16_000), nil
}

func (m *mockLedger) UsdIdrUpdatedAt(ctx context.Context) (time.Time, error) {
	return time.Unix(1_700_000_000, 0), nil
}

func (m *mockLedger) IsPriceStale(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleCalls++
	if m.staleAfter > 0 && m.staleCalls > m.staleAfter {
		return true, nil
	}
	return m.stale, nil
}

func (m *mockLedger) Balance(ctx context.Context, owner common.Address, token pinjaman.Token) (*big.Int, error) {
	return m.balance, nil
}

func (m *mockLedger) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return m.allowance, nil
}

func (m *mockLedger) Approve(ctx context.Context, amount *big.Int) (domain.PendingTx, error) {
	m.record("Approve")
	m.mu.Lock()
	m.allowance = amount
	m.mu.Unlock()
	return domain.PendingTx{Hash: common.HexToHash("0xa1")}, nil
}

func (m *mockLedger) open(owner common.Address, amount *big.Int, token pinjaman.Token, ref common.Hash) (domain.PendingTx, error) {
	if m.openErr != nil {
		return domain.PendingTx{}, m.openErr
	}
	m.mu.Lock()
	m.lastRef = ref
	id := m.nextID
	m.nextID++
	hash := common.BigToHash(new(big.Int).SetUint64(0x1000 + id))
	m.opened[hash] = id
	m.mu.Unlock()
	m.addPosition(domain.Position{
		ID:               id,
		Owner:            owner,
		Token:            token,
		CollateralAmount: amount,
		Status:           domain.StatusPayoutPending,
		OffchainRefHash:  ref,
	})
	return domain.PendingTx{Hash: hash}, nil
}

func (m *mockLedger) OpenPositionNative(ctx context.Context, requested *big.Int, ref common.Hash, value *big.Int) (domain.PendingTx, error) {
	m.record("OpenPositionNative")
	m.mu.Lock()
	m.lastVal = value
	m.mu.Unlock()
	return m.open(testSignerAddr, value, pinjaman.TokenNative, ref)
}

func (m *mockLedger) OpenPositionStable(ctx context.Context, amount, requested *big.Int, ref common.Hash) (domain.PendingTx, error) {
	m.record("OpenPositionStable")
	return m.open(testSignerAddr, amount, pinjaman.TokenStable, ref)
}

func (m *mockLedger) RequestRepay(ctx context.Context, positionID uint64, ref common.Hash) (domain.PendingTx, error) {
	m.record("RequestRepay")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRef = ref
	p := m.positions[positionID]
	if !m.ignoreWrites && p.Status == domain.StatusActive {
		p.Status = domain.StatusRepayRequested
		p.RepayRefHash = ref
		m.positions[positionID] = p
	}
	return domain.PendingTx{Hash: common.HexToHash("0xb2")}, nil
}

func (m *mockLedger) WithdrawCollateral(ctx context.Context, positionID uint64) (domain.PendingTx, error) {
	m.record("WithdrawCollateral")
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.positions[positionID]
	if !m.ignoreWrites && p.Status == domain.StatusClosed {
		p.CollateralAmount = big.NewInt(0)
		m.positions[positionID] = p
	}
	return domain.PendingTx{Hash: common.HexToHash("0xc3")}, nil
}

func (m *mockLedger) WaitReceipt(ctx context.Context, tx domain.PendingTx) (domain.Receipt, error) {
	m.record("WaitReceipt")
	if m.receiptErr != nil {
		return domain.Receipt{}, m.receiptErr
	}
	receipt := domain.Receipt{TxHash: tx.Hash, BlockNumber: 1, Success: !m.revert}
	m.mu.Lock()
	id, opened := m.opened[tx.Hash]
	m.mu.Unlock()
	if opened {
		receipt.PositionID = &id
	}
	return receipt, nil
}

type mockDraftGateway struct {
	submitted []pinjaman.BankDetailsSubmission
	err       error
	verify    *DraftUsecase
}

func (m *mockDraftGateway) SubmitBankDetails(ctx context.Context, s pinjaman.BankDetailsSubmission) error {
	if m.err != nil {
		return m.err
	}
	if m.verify != nil {
		if err := m.verify.Submit(ctx, s); err != nil {
			return err
		}
	}
	m.submitted = append(m.submitted, s)
	return nil
}

type mockRefStore struct {
	saved []domain.RepayReference
	err   error
}

func (m *mockRefStore) SaveRepayReference(ctx context.Context, ref domain.RepayReference) error {
	if m.err != nil {
		return m.err
	}
	for _, r := range m.saved {
		if r.Hash == ref.Hash {
			return domain.ConflictError{Resource: "repay reference"}
		}
	}
	m.saved = append(m.saved, ref)
	return nil
}

func (m *mockRefStore) AttachRepayTx(ctx context.Context, hash, txHash string) error {
	if m.err != nil {
		return m.err
	}
	for i, r := range m.saved {
		if r.Hash != hash {
			continue
		}
		if r.TxHash != "" && r.TxHash != txHash {
			return domain.ConflictError{Resource: "repay reference"}
		}
		m.saved[i].TxHash = txHash
		return nil
	}
	return domain.NotFoundError{}
}

func (m *mockRefStore) FindByHash(ctx context.Context, hash string) (domain.RepayReference, error) {
	for _, r := range m.saved {
		if r.Hash == hash {
			return r, nil
		}
	}
	return domain.RepayReference{}, domain.NotFoundError{}
}

type mockCache struct {
	mu    sync.Mutex
	items map[string]any
}

func (m *mockCache) Get(ctx context.Context, key string, out any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return false
	}
	switch dst := out.(type) {
	case *domain.Quote:
		*dst = v.(domain.Quote)
	case *domain.Rates:
		*dst = v.(domain.Rates)
	default:
		return false
	}
	return true
}

func (m *mockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]any{}
	}
	m.items[key] = value
}

type blockingSigner struct {
	addr common.Address
}

func (s blockingSigner) Address() common.Address { return s.addr }
func (s blockingSigner) SignMessage(ctx context.Context, message string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type decliningSigner struct {
	addr common.Address
}

func (s decliningSigner) Address() common.Address { return s.addr }
func (s decliningSigner) SignMessage(ctx context.Context, message string) (string, error) {
	return "", errors.New("user rejected the request")
}
