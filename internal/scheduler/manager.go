package scheduler

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
	"gorm.io/gorm"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
	closers   []func()
}

// NewManager 创建任务管理器。db 为空时不注册结算任务，payer 为空时同样跳过
func NewManager(l *ledger.Ledger, db *gorm.DB, payer Payer, cfg *config.Config) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	m := &Manager{scheduler: s}
	m.jobs = append(m.jobs, NewProjectStatusJob(l, cfg))

	if db != nil && payer != nil {
		job, err := NewSettlementJob(logic.NewSettlementLogic(db), payer, cfg)
		if err != nil {
			return nil, err
		}
		m.jobs = append(m.jobs, job)
		m.closers = append(m.closers, job.Release)
	} else {
		logger.Info("Settlement dispatcher disabled")
	}
	return m, nil
}

// Start 注册所有任务并启动调度器
func (m *Manager) Start() error {
	for _, job := range m.jobs {
		if err := m.register(job); err != nil {
			return err
		}
	}
	m.scheduler.Start()
	logger.Info("Task manager started with %d jobs", len(m.jobs))
	return nil
}

func (m *Manager) register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.GetName(), err)
	}
	return nil
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	for _, c := range m.closers {
		c()
	}
	logger.Info("Task manager stopped")
}
