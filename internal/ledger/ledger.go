// Package ledger 众筹账本：项目登记、出资记账与里程碑加权投票。
//
// 所有变更在单个写锁下串行执行，先写入 Journal 再应用到内存状态，
// 保证任一操作要么完整提交，要么完全失败。读操作持读锁，看到一致快照。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/lingyuqian0301/ev-stage-2/internal/metrics"
)

// ErrOutOfSync 上次追加结果不明且尚未与日志对齐，暂停写入
var ErrOutOfSync = errors.New("ledger is out of sync with its journal")

// Ledger 众筹账本
type Ledger struct {
	mu      sync.RWMutex
	st      *state
	journal Journal
	clock   Clock
	// 为 true 时写操作前必须先 resync
	stale bool
}

// Option 账本选项
type Option func(*Ledger)

// WithClock 指定时间来源
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// New 创建账本
func New(journal Journal, opts ...Option) *Ledger {
	l := &Ledger{
		st:      &state{},
		journal: journal,
		clock:   SystemClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Replay 按版本顺序回放已持久化的事件，仅在启动时调用
func (l *Ledger) Replay(events []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ev := range events {
		if err := l.st.apply(ev); err != nil {
			return fmt.Errorf("replay event %d: %w", ev.Version, err)
		}
	}
	logger.Info("Ledger replayed %d events, version %d, %d projects",
		len(events), l.st.version, len(l.st.projects))
	return nil
}

// Version 当前账本版本号
func (l *Ledger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.version
}

func (l *Ledger) now() int64 {
	return l.clock.Now().Unix()
}

// lockWrite 获取写锁。账本处于不同步状态时先与日志对齐，失败则释放锁并返回错误
func (l *Ledger) lockWrite(ctx context.Context) error {
	l.mu.Lock()
	if !l.stale {
		return nil
	}
	if err := l.resync(ctx); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrOutOfSync, err)
	}
	return nil
}

// resync 应用日志中比内存更新的事件，调用方必须持有写锁
func (l *Ledger) resync(ctx context.Context) error {
	reader, ok := l.journal.(JournalReader)
	if !ok {
		return errors.New("journal cannot be read back")
	}
	events, err := reader.EventsAfter(ctx, l.st.version)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := l.st.apply(ev); err != nil {
			return fmt.Errorf("apply journal event %d: %w", ev.Version, err)
		}
	}
	if l.stale {
		logger.Info("Ledger resynced with journal at version %d (%d events)", l.st.version, len(events))
	}
	l.stale = false
	return nil
}

// commit 调用方必须持有写锁
func (l *Ledger) commit(ctx context.Context, ev Event) error {
	ev.Version = l.st.version + 1
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := l.journal.Append(ctx, ev); err != nil {
		return l.recoverAppend(ctx, ev, err)
	}
	if err := l.st.apply(ev); err != nil {
		// 已落盘但内存应用失败，说明前置校验有缺陷
		logger.Error("Ledger diverged from journal at version %d: %v", ev.Version, err)
		return fmt.Errorf("apply %s event: %w", ev.Type, err)
	}
	return nil
}

// recoverAppend 追加报错后读回日志：事件已落盘则视为成功，读回失败则暂停写入直到对齐
func (l *Ledger) recoverAppend(ctx context.Context, ev Event, appendErr error) error {
	if _, ok := l.journal.(JournalReader); !ok {
		return fmt.Errorf("append %s event: %w", ev.Type, appendErr)
	}

	l.stale = true
	if err := l.resync(ctx); err != nil {
		logger.Error("Append of version %d failed (%v) and journal could not be read back: %v",
			ev.Version, appendErr, err)
		return fmt.Errorf("append %s event: %w", ev.Type, appendErr)
	}
	if l.st.version >= ev.Version {
		logger.Warn("Append of version %d reported %v but the event was persisted", ev.Version, appendErr)
		return nil
	}
	return fmt.Errorf("append %s event: %w", ev.Type, appendErr)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
		if KindOf(err) == KindUnknown {
			logger.Error("Ledger %s failed: %v", op, err)
		} else {
			logger.Warn("Ledger %s rejected: %v", op, err)
		}
	}
	metrics.LedgerOperationsTotal.WithLabelValues(op, result).Inc()
}
