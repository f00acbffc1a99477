package logic

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"github.com/lingyuqian0301/ev-stage-2/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	owner = ledger.Address("0x1111111111111111111111111111111111111111")
	alice = ledger.Address("0x2222222222222222222222222222222222222222")
	bob   = ledger.Address("0x3333333333333333333333333333333333333333")
	payee = ledger.Address("0x4444444444444444444444444444444444444444")
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

// seed 在 sqlite 上跑一遍完整流程：三笔出资、一个请求、两票、执行
func seed(t *testing.T) (*gorm.DB, uint64) {
	t.Helper()
	db, err := repository.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "logic.db"),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	ctx := context.Background()
	clock := &fixedClock{t: time.Unix(1_700_000_000, 0)}
	l := ledger.New(repository.NewStore(db), ledger.WithClock(clock))

	id, err := l.CreateProject(ctx, ledger.CreateProjectParams{
		Title: "Depot", FundingGoal: 1000, Deadline: clock.t.Add(48 * time.Hour).Unix(), Owner: owner,
	})
	require.NoError(t, err)
	require.NoError(t, l.FundProject(ctx, ledger.FundParams{ProjectID: id, Contributor: alice, Amount: 500}))
	require.NoError(t, l.FundProject(ctx, ledger.FundParams{ProjectID: id, Contributor: bob, Amount: 300}))
	require.NoError(t, l.FundProject(ctx, ledger.FundParams{ProjectID: id, Contributor: alice, Amount: 200}))

	rid, err := l.CreateRequest(ctx, ledger.CreateRequestParams{
		ProjectID: id, Caller: owner, Description: "Transformer", Recipient: payee,
		Amount: 400, VotingDeadline: clock.t.Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	require.NoError(t, l.Vote(ctx, ledger.VoteParams{ProjectID: id, RequestID: rid, Voter: alice, Support: true}))
	require.NoError(t, l.Vote(ctx, ledger.VoteParams{ProjectID: id, RequestID: rid, Voter: bob, Support: false}))
	clock.t = clock.t.Add(time.Hour)
	_, err = l.FinalizeRequest(ctx, id, rid)
	require.NoError(t, err)

	return db, id
}

func TestContributeRecords(t *testing.T) {
	db, id := seed(t)
	logic := NewContributeRecordLogic(db)

	records, total, err := logic.GetProjectContributeRecords(int64(id), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 2)
	assert.Equal(t, int64(3), records[0].Seq)
	assert.Equal(t, int64(2), records[1].Seq)

	records, _, err = logic.GetProjectContributeRecords(int64(id), 2, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(alice), records[0].Address)

	stats, err := logic.GetContributeStats(int64(id))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.ContributionCount)
	assert.Equal(t, int64(2), stats.ContributorCount)
	assert.Equal(t, int64(1000), stats.TotalAmount)
	assert.InDelta(t, 333.33, stats.AverageAmount, 0.01)

	empty, err := logic.GetContributeStats(404)
	require.NoError(t, err)
	assert.Zero(t, empty.ContributionCount)
	assert.Zero(t, empty.AverageAmount)
}

func TestEvents(t *testing.T) {
	db, id := seed(t)
	logic := NewEventLogic(db)

	events, total, err := logic.GetEvents(int64(id), "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	assert.Equal(t, int64(8), events[0].Version)

	funded, total, err := logic.GetEvents(0, string(ledger.EventProjectFunded), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, funded, 3)

	stats, err := logic.GetEventStatistics(int64(id))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[string(ledger.EventVoteCast)])
	assert.Equal(t, int64(1), stats[string(ledger.EventRequestFinalized)])

	latest, err := logic.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(8), latest)
}

func TestSettlementLifecycle(t *testing.T) {
	db, id := seed(t)
	logic := NewSettlementLogic(db)

	due, err := logic.GetDueSettlements(2, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	rec := due[0]
	assert.Equal(t, int64(400), rec.Amount)

	require.NoError(t, logic.MarkFailed(rec.Id, errors.New("rpc unavailable")))
	due, err = logic.GetDueSettlements(2, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.SettlementStatusFailed, due[0].Status)
	assert.Equal(t, "rpc unavailable", due[0].LastError)

	// 达到重试上限后不再返回
	require.NoError(t, logic.MarkFailed(rec.Id, errors.New("rpc unavailable")))
	due, err = logic.GetDueSettlements(2, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = logic.GetDueSettlements(5, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, logic.MarkSent(rec.Id, 9, "0xabc", "0xf86c"))
	// 已发送的记录只能继续跟踪，不能再次签名
	require.Error(t, logic.MarkSent(rec.Id, 10, "0xdef", "0xf86d"))
	require.NoError(t, logic.RecordSendError(rec.Id, errors.New("context deadline exceeded")))

	// 已发送的记录不受重试上限限制
	due, err = logic.GetDueSettlements(1, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.SettlementStatusSent, due[0].Status)
	assert.Equal(t, int64(9), due[0].Nonce)
	assert.Equal(t, "0xf86c", due[0].RawTx)
	assert.Equal(t, "context deadline exceeded", due[0].LastError)

	require.NoError(t, logic.MarkSuccess(rec.Id, "0xabc"))

	records, total, err := logic.GetProjectSettlements(int64(id), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.SettlementStatusSuccess, records[0].Status)
	assert.Equal(t, "0xabc", records[0].TxHash)
	assert.Equal(t, 3, records[0].Attempts)
	assert.Empty(t, records[0].RawTx)
	assert.NotNil(t, records[0].SettlementTime)

	due, err = logic.GetDueSettlements(5, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestAbandonedSettlementIsRetried(t *testing.T) {
	db, _ := seed(t)
	logic := NewSettlementLogic(db)

	due, err := logic.GetDueSettlements(2, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	id := due[0].Id

	require.NoError(t, logic.MarkSent(id, 4, "0xaaa", "0xf86c"))
	require.NoError(t, logic.MarkAbandoned(id, errors.New("nonce 4 used by another transaction")))

	due, err = logic.GetDueSettlements(2, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.SettlementStatusFailed, due[0].Status)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Empty(t, due[0].TxHash)
	assert.Empty(t, due[0].RawTx)

	require.NoError(t, logic.MarkSent(id, 5, "0xbbb", "0xf86d"))
	due, err = logic.GetDueSettlements(2, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].Attempts)
	assert.Equal(t, "0xbbb", due[0].TxHash)
}

func TestPlatformStats(t *testing.T) {
	db, id := seed(t)
	logic := NewProjectLogic(db)

	stats, err := logic.GetAllProjectStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalProjects)
	assert.Equal(t, int64(1), stats.ProjectsByStatus[string(model.ProjectStatusCompleted)])
	assert.Equal(t, int64(1000), stats.TotalRaised)
	assert.Equal(t, int64(400), stats.TotalReleased)
	assert.Equal(t, int64(2), stats.TotalContributors)
	assert.Equal(t, int64(1), stats.ExecutedRequests)

	votes, err := logic.GetRequestVotes(int64(id), 1)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, string(alice), votes[0].Voter)
	assert.Equal(t, int64(700), votes[0].Weight)
	assert.False(t, votes[1].Support)
}

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, size)

	_, size = NormalizePage(3, 1000)
	assert.Equal(t, maxPageSize, size)
}
