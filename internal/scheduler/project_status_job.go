package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lingyuqian0301/ev-stage-2/internal/config"
	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
)

// Sweeper 持久化过期状态
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ProjectStatusJob 项目过期扫描任务
type ProjectStatusJob struct {
	sweeper Sweeper
	config  *config.Config
}

// NewProjectStatusJob 创建项目过期扫描任务
func NewProjectStatusJob(sweeper Sweeper, cfg *config.Config) *ProjectStatusJob {
	return &ProjectStatusJob{
		sweeper: sweeper,
		config:  cfg,
	}
}

// GetName 获取任务名称
func (j *ProjectStatusJob) GetName() string {
	return "project_status_updater"
}

// GetSchedule 获取调度配置
func (j *ProjectStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *ProjectStatusJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(j.config.Task.Interval)*time.Second)
	defer cancel()

	n, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		logger.Error("Project status update failed after %d projects: %v", n, err)
		return
	}
	if n > 0 {
		logger.Info("Project status update completed. Expired %d projects", n)
	}
}
