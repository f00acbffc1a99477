package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lingyuqian0301/ev-stage-2/internal/chain"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
	"github.com/lingyuqian0301/ev-stage-2/internal/metrics"
	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"github.com/panjf2000/ants/v2"
)

// 每轮最多处理的记录数
const settlementBatchSize = 100

// Payer 链上付款。签名与广播分离，签名后的交易先持久化再发送
type Payer interface {
	SignTransfer(ctx context.Context, recipient string, amount int64) (chain.SignedTransfer, error)
	Broadcast(ctx context.Context, raw string) error
	TransferStatus(ctx context.Context, hash string, nonce uint64) (chain.TransferStatus, error)
}

// SettlementJob 已执行请求的付款任务
type SettlementJob struct {
	logic  *logic.SettlementLogic
	payer  Payer
	config *config.Config
	pool   *ants.Pool // 协程池

	// 串行化签名到广播，避免并发签出相同 nonce
	sendMu sync.Mutex
}

// NewSettlementJob 创建付款任务
func NewSettlementJob(sl *logic.SettlementLogic, payer Payer, cfg *config.Config) (*SettlementJob, error) {
	pool, err := ants.NewPool(cfg.Task.SettlementWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement pool: %w", err)
	}
	return &SettlementJob{
		logic:  sl,
		payer:  payer,
		config: cfg,
		pool:   pool,
	}, nil
}

// GetName 获取任务名称
func (j *SettlementJob) GetName() string {
	return "settlement_dispatcher"
}

// GetSchedule 获取调度配置
func (j *SettlementJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.SettlementInterval) * time.Second)
}

// Execute 执行任务
func (j *SettlementJob) Execute() {
	records, err := j.logic.GetDueSettlements(j.config.Task.MaxAttempts, settlementBatchSize)
	if err != nil {
		logger.Error("Failed to fetch pending settlement records: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}

	logger.Info("Starting settlement of %d records", len(records))

	var wg sync.WaitGroup
	for _, record := range records {
		record := record // per-iteration copy (go 1.21 loop semantics)
		wg.Add(1)
		err := j.pool.Submit(func() {
			defer wg.Done()
			j.settle(record)
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit settlement %d to pool: %v", record.Id, err)
		}
	}
	wg.Wait()
}

func (j *SettlementJob) settle(record model.SettlementRecordModel) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(j.config.Task.SettlementInterval)*time.Second)
	defer cancel()

	if record.Status == model.SettlementStatusSent {
		j.track(ctx, record)
		return
	}
	j.send(ctx, record)
}

// send 签名新交易，持久化成功后才广播
func (j *SettlementJob) send(ctx context.Context, record model.SettlementRecordModel) {
	j.sendMu.Lock()
	defer j.sendMu.Unlock()

	signed, err := j.payer.SignTransfer(ctx, record.Recipient, record.Amount)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues(string(model.SettlementStatusFailed)).Inc()
		logger.Error("Settlement %d for request %d/%d failed (attempt %d): %v",
			record.Id, record.ProjectId, record.RequestId, record.Attempts+1, err)
		if err := j.logic.MarkFailed(record.Id, err); err != nil {
			logger.Error("Failed to update settlement record %d: %v", record.Id, err)
		}
		return
	}

	if err := j.logic.MarkSent(record.Id, signed.Nonce, signed.Hash, signed.Raw); err != nil {
		// 未持久化的交易不能发送
		logger.Error("Failed to persist transaction %s for settlement %d, not broadcasting: %v",
			signed.Hash, record.Id, err)
		return
	}
	metrics.SettlementsTotal.WithLabelValues(string(model.SettlementStatusSent)).Inc()

	j.broadcast(ctx, record.Id, signed.Hash, signed.Raw)
}

// track 跟踪已发送交易：确认后记成功，确定不会上链时清除并重试，否则原样重发
func (j *SettlementJob) track(ctx context.Context, record model.SettlementRecordModel) {
	status, err := j.payer.TransferStatus(ctx, record.TxHash, uint64(record.Nonce))
	if err != nil {
		logger.Warn("Failed to check transaction %s for settlement %d: %v", record.TxHash, record.Id, err)
		return
	}

	switch status {
	case chain.TransferConfirmed:
		if err := j.logic.MarkSuccess(record.Id, record.TxHash); err != nil {
			logger.Error("Settlement %d confirmed in %s but record update failed: %v", record.Id, record.TxHash, err)
			return
		}
		metrics.SettlementsTotal.WithLabelValues(string(model.SettlementStatusSuccess)).Inc()
		logger.Info("Successfully settled request %d/%d, amount: %d, tx: %s",
			record.ProjectId, record.RequestId, record.Amount, record.TxHash)

	case chain.TransferReverted, chain.TransferDropped:
		cause := fmt.Errorf("transaction %s with nonce %d %s", record.TxHash, record.Nonce, status)
		metrics.SettlementsTotal.WithLabelValues(string(model.SettlementStatusFailed)).Inc()
		logger.Warn("Settlement %d for request %d/%d will be re-signed: %v",
			record.Id, record.ProjectId, record.RequestId, cause)
		if err := j.logic.MarkAbandoned(record.Id, cause); err != nil {
			logger.Error("Failed to update settlement record %d: %v", record.Id, err)
		}

	default:
		j.broadcast(ctx, record.Id, record.TxHash, record.RawTx)
	}
}

// broadcast 发送已持久化的交易。错误时交易可能已被节点接收，记录保持 sent 由下一轮跟踪
func (j *SettlementJob) broadcast(ctx context.Context, id int64, hash, raw string) {
	if err := j.payer.Broadcast(ctx, raw); err != nil {
		logger.Warn("Broadcast of %s for settlement %d failed, will check again: %v", hash, id, err)
		if err := j.logic.RecordSendError(id, err); err != nil {
			logger.Error("Failed to update settlement record %d: %v", id, err)
		}
	}
}

// Release 释放协程池
func (j *SettlementJob) Release() {
	j.pool.Release()
}
