package logic

import (
	"fmt"

	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"gorm.io/gorm"
)

// ProjectLogic 项目投影统计
type ProjectLogic struct {
	db *gorm.DB
}

// NewProjectLogic 创建项目统计逻辑
func NewProjectLogic(db *gorm.DB) *ProjectLogic {
	return &ProjectLogic{db: db}
}

// PlatformStats 平台汇总
type PlatformStats struct {
	TotalProjects     int64            `json:"total_projects"`
	ProjectsByStatus  map[string]int64 `json:"projects_by_status"`
	TotalRaised       int64            `json:"total_raised"`
	TotalReleased     int64            `json:"total_released"`
	TotalContributors int64            `json:"total_contributors"`
	TotalRequests     int64            `json:"total_requests"`
	ExecutedRequests  int64            `json:"executed_requests"`
}

// GetAllProjectStats 获取所有项目的统计信息。
// 状态取投影表中持久化的值，未被过期任务处理的项目仍计为 active
func (p *ProjectLogic) GetAllProjectStats() (*PlatformStats, error) {
	stats := &PlatformStats{ProjectsByStatus: map[string]int64{}}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := p.db.Model(&model.ProjectModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("统计项目状态失败: %w", err)
	}
	for _, s := range byStatus {
		stats.ProjectsByStatus[s.Status] = s.Count
		stats.TotalProjects += s.Count
	}

	var amounts struct {
		TotalRaised   int64
		TotalReleased int64
	}
	if err := p.db.Model(&model.ProjectModel{}).
		Select("COALESCE(SUM(current_amount), 0) AS total_raised, COALESCE(SUM(released_amount), 0) AS total_released").
		Scan(&amounts).Error; err != nil {
		return nil, fmt.Errorf("统计项目金额失败: %w", err)
	}
	stats.TotalRaised = amounts.TotalRaised
	stats.TotalReleased = amounts.TotalReleased

	// 统计总出资人数量（去重）
	if err := p.db.Model(&model.ContributeRecordModel{}).
		Distinct("address").
		Count(&stats.TotalContributors).Error; err != nil {
		return nil, fmt.Errorf("统计出资人失败: %w", err)
	}

	if err := p.db.Model(&model.MilestoneRequestModel{}).Count(&stats.TotalRequests).Error; err != nil {
		return nil, fmt.Errorf("统计请求失败: %w", err)
	}
	if err := p.db.Model(&model.MilestoneRequestModel{}).
		Where("executed = ?", true).
		Count(&stats.ExecutedRequests).Error; err != nil {
		return nil, fmt.Errorf("统计已执行请求失败: %w", err)
	}

	return stats, nil
}

// GetRequestVotes 请求的投票记录，按投票时间
func (p *ProjectLogic) GetRequestVotes(projectId, requestId int64) ([]model.VoteRecordModel, error) {
	var votes []model.VoteRecordModel
	if err := p.db.Where("project_id = ? AND request_id = ?", projectId, requestId).
		Order("id ASC").
		Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("获取投票记录失败: %w", err)
	}
	return votes, nil
}
