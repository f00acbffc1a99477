package scheduler

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lingyuqian0301/ev-stage-2/internal/chain"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"github.com/lingyuqian0301/ev-stage-2/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	owner = ledger.Address("0x1111111111111111111111111111111111111111")
	alice = ledger.Address("0x2222222222222222222222222222222222222222")
	payee = ledger.Address("0x4444444444444444444444444444444444444444")
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeChain 内存节点：accepted 为已进入交易池的交易，mined 为已上链的交易
type fakeChain struct {
	mu        sync.Mutex
	pending   uint64
	confirmed uint64
	accepted  map[common.Hash]*types.Transaction
	mined     map[common.Hash]bool
	sends     int
	nonceErr  error
	reject    error // 拒绝交易
	lostReply error // 接收交易后仍返回该错误
	autoMine  bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		accepted: make(map[common.Hash]*types.Transaction),
		mined:    make(map[common.Hash]bool),
	}
}

func (c *fakeChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1337), nil }

func (c *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nonceErr != nil {
		return 0, c.nonceErr
	}
	return c.pending, nil
}

func (c *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends++
	if c.reject != nil {
		return c.reject
	}
	if _, ok := c.accepted[tx.Hash()]; ok {
		return errors.New("already known")
	}
	c.accepted[tx.Hash()] = tx
	if tx.Nonce() >= c.pending {
		c.pending = tx.Nonce() + 1
	}
	if c.autoMine {
		c.mineLocked(tx.Hash())
	}
	return c.lostReply
}

func (c *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mined[hash] {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}, nil
}

func (c *fakeChain) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed, nil
}

func (c *fakeChain) mine(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mineLocked(common.HexToHash(hash))
}

func (c *fakeChain) mineLocked(hash common.Hash) {
	c.mined[hash] = true
	if n := c.accepted[hash].Nonce() + 1; n > c.confirmed {
		c.confirmed = n
	}
}

// acceptedNonces 交易池中不同 nonce 的数量
func (c *fakeChain) acceptedNonces() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	nonces := make(map[uint64]bool)
	for _, tx := range c.accepted {
		nonces[tx.Nonce()] = true
	}
	return len(nonces)
}

func chainConfig(t *testing.T) config.ChainConfig {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return config.ChainConfig{
		Enabled:     true,
		ChainId:     1337,
		PrivateKey:  "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		AmountScale: 1,
		GasLimit:    21000,
	}
}

func newPayer(t *testing.T, backend *fakeChain, cfg config.ChainConfig) *chain.Manager {
	t.Helper()
	m, err := chain.NewManagerWithBackend(backend, cfg)
	require.NoError(t, err)
	return m
}

func loadSettlements(t *testing.T, db *gorm.DB) []model.SettlementRecordModel {
	t.Helper()
	var records []model.SettlementRecordModel
	require.NoError(t, db.Order("id ASC").Find(&records).Error)
	return records
}

func testConfig() *config.Config {
	return &config.Config{Task: config.TaskConfig{
		Interval: 60, SettlementInterval: 5, SettlementWorkers: 2, MaxAttempts: 2,
	}}
}

func setup(t *testing.T) (*gorm.DB, *ledger.Ledger, *fixedClock) {
	t.Helper()
	db, err := repository.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "scheduler.db"),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	clock := &fixedClock{t: time.Unix(1_700_000_000, 0)}
	return db, ledger.New(repository.NewStore(db), ledger.WithClock(clock)), clock
}

// executeRequests 创建项目并执行 n 个请求
func executeRequests(t *testing.T, l *ledger.Ledger, clock *fixedClock, n int) {
	t.Helper()
	ctx := context.Background()
	id, err := l.CreateProject(ctx, ledger.CreateProjectParams{
		Title: "Hub", FundingGoal: 100, Deadline: clock.Now().Add(time.Hour).Unix(), Owner: owner,
	})
	require.NoError(t, err)
	require.NoError(t, l.FundProject(ctx, ledger.FundParams{ProjectID: id, Contributor: alice, Amount: 100}))

	var rids []uint64
	for i := 0; i < n; i++ {
		rid, err := l.CreateRequest(ctx, ledger.CreateRequestParams{
			ProjectID: id, Caller: owner, Description: "phase", Recipient: payee,
			Amount: 10, VotingDeadline: clock.Now().Add(time.Minute).Unix(),
		})
		require.NoError(t, err)
		require.NoError(t, l.Vote(ctx, ledger.VoteParams{ProjectID: id, RequestID: rid, Voter: alice, Support: true}))
		rids = append(rids, rid)
	}
	clock.Advance(time.Minute)
	for _, rid := range rids {
		outcome, err := l.FinalizeRequest(ctx, id, rid)
		require.NoError(t, err)
		require.Equal(t, ledger.RequestExecuted, outcome)
	}
}

func TestSettlementJobPaysPendingRecords(t *testing.T) {
	db, l, clock := setup(t)
	executeRequests(t, l, clock, 3)

	backend := newFakeChain()
	backend.autoMine = true
	job, err := NewSettlementJob(logic.NewSettlementLogic(db), newPayer(t, backend, chainConfig(t)), testConfig())
	require.NoError(t, err)
	defer job.Release()

	job.Execute()
	assert.Len(t, backend.accepted, 3)
	assert.Equal(t, 3, backend.acceptedNonces())
	for _, rec := range loadSettlements(t, db) {
		assert.Equal(t, model.SettlementStatusSent, rec.Status)
		assert.NotEmpty(t, rec.RawTx)
	}

	// 下一轮确认回执
	job.Execute()
	for _, rec := range loadSettlements(t, db) {
		assert.Equal(t, model.SettlementStatusSuccess, rec.Status)
		assert.Contains(t, backend.accepted, common.HexToHash(rec.TxHash))
		assert.Equal(t, 1, rec.Attempts)
		assert.NotNil(t, rec.SettlementTime)
	}

	// 已成功的记录不再付款
	job.Execute()
	assert.Equal(t, 3, backend.sends)
}

func TestSettlementJobRetriesUntilMaxAttempts(t *testing.T) {
	db, l, clock := setup(t)
	executeRequests(t, l, clock, 1)

	backend := newFakeChain()
	backend.nonceErr = errors.New("connection refused")
	job, err := NewSettlementJob(logic.NewSettlementLogic(db), newPayer(t, backend, chainConfig(t)), testConfig())
	require.NoError(t, err)
	defer job.Release()

	job.Execute()
	job.Execute()
	job.Execute()
	assert.Zero(t, backend.sends)

	rec := loadSettlements(t, db)[0]
	assert.Equal(t, model.SettlementStatusFailed, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
	assert.Contains(t, rec.LastError, "connection refused")
}

func TestSettlementJobNeverResignsAmbiguousBroadcast(t *testing.T) {
	db, l, clock := setup(t)
	executeRequests(t, l, clock, 1)

	backend := newFakeChain()
	backend.lostReply = context.DeadlineExceeded
	cfg := chainConfig(t)
	sl := logic.NewSettlementLogic(db)
	job, err := NewSettlementJob(sl, newPayer(t, backend, cfg), testConfig())
	require.NoError(t, err)
	defer job.Release()

	job.Execute()
	job.Execute()
	assert.Len(t, backend.accepted, 1)
	assert.Equal(t, 1, backend.acceptedNonces())

	rec := loadSettlements(t, db)[0]
	assert.Equal(t, model.SettlementStatusSent, rec.Status)
	assert.Contains(t, backend.accepted, common.HexToHash(rec.TxHash))
	assert.Equal(t, 1, rec.Attempts)

	// 重启后的新任务实例只跟踪已保存的交易
	restarted, err := NewSettlementJob(sl, newPayer(t, backend, cfg), testConfig())
	require.NoError(t, err)
	defer restarted.Release()
	restarted.Execute()
	assert.Len(t, backend.accepted, 1)

	backend.mine(rec.TxHash)
	restarted.Execute()

	rec = loadSettlements(t, db)[0]
	assert.Equal(t, model.SettlementStatusSuccess, rec.Status)
	assert.Len(t, backend.accepted, 1)
	assert.Equal(t, 1, rec.Attempts)
}

func TestSettlementJobResignsDroppedTransfer(t *testing.T) {
	db, l, clock := setup(t)
	executeRequests(t, l, clock, 1)

	backend := newFakeChain()
	backend.reject = errors.New("txpool is full")
	job, err := NewSettlementJob(logic.NewSettlementLogic(db), newPayer(t, backend, chainConfig(t)), testConfig())
	require.NoError(t, err)
	defer job.Release()

	job.Execute()
	first := loadSettlements(t, db)[0]
	require.Equal(t, model.SettlementStatusSent, first.Status)
	assert.Equal(t, "failed to send transaction "+first.TxHash+": txpool is full", first.LastError)

	// 另一笔交易占用了 nonce 0
	backend.mu.Lock()
	backend.reject = nil
	backend.pending, backend.confirmed = 1, 1
	backend.mu.Unlock()

	job.Execute()
	rec := loadSettlements(t, db)[0]
	assert.Equal(t, model.SettlementStatusFailed, rec.Status)
	assert.Empty(t, rec.RawTx)

	job.Execute()
	rec = loadSettlements(t, db)[0]
	assert.Equal(t, model.SettlementStatusSent, rec.Status)
	assert.Equal(t, int64(1), rec.Nonce)
	assert.NotEqual(t, first.TxHash, rec.TxHash)
	assert.Equal(t, 2, rec.Attempts)
	assert.Len(t, backend.accepted, 1)
}

type countingSweeper struct {
	calls int
	n     int
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) (int, error) {
	s.calls++
	return s.n, s.err
}

func TestProjectStatusJobSweeps(t *testing.T) {
	db, l, clock := setup(t)
	ctx := context.Background()
	id, err := l.CreateProject(ctx, ledger.CreateProjectParams{
		Title: "Late", FundingGoal: 100, Deadline: clock.Now().Add(time.Hour).Unix(), Owner: owner,
	})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	job := NewProjectStatusJob(l, testConfig())
	assert.Equal(t, "project_status_updater", job.GetName())
	job.Execute()

	var p model.ProjectModel
	require.NoError(t, db.First(&p, id).Error)
	assert.Equal(t, model.ProjectStatusExpired, p.Status)

	stub := &countingSweeper{err: errors.New("journal offline")}
	NewProjectStatusJob(stub, testConfig()).Execute()
	assert.Equal(t, 1, stub.calls)
}

func TestManagerLifecycle(t *testing.T) {
	db, l, _ := setup(t)

	m, err := NewManager(l, db, newPayer(t, newFakeChain(), chainConfig(t)), testConfig())
	require.NoError(t, err)
	assert.Len(t, m.jobs, 2)
	require.NoError(t, m.Start())
	m.Stop()

	memory, err := NewManager(ledger.New(ledger.NewMemoryJournal()), nil, nil, testConfig())
	require.NoError(t, err)
	assert.Len(t, memory.jobs, 1)
}
