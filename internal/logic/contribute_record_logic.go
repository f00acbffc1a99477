package logic

import (
	"fmt"

	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"gorm.io/gorm"
)

// ContributeRecordLogic 出资记录查询
type ContributeRecordLogic struct {
	db *gorm.DB
}

// NewContributeRecordLogic 创建出资记录查询逻辑
func NewContributeRecordLogic(db *gorm.DB) *ContributeRecordLogic {
	return &ContributeRecordLogic{db: db}
}

// ContributeStats 项目出资统计
type ContributeStats struct {
	ProjectId         int64   `json:"project_id"`
	ContributionCount int64   `json:"contribution_count"`
	ContributorCount  int64   `json:"contributor_count"`
	TotalAmount       int64   `json:"total_amount"`
	AverageAmount     float64 `json:"average_amount"`
}

// GetProjectContributeRecords 分页获取项目出资记录，最新在前
func (c *ContributeRecordLogic) GetProjectContributeRecords(projectId int64, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var contributions []model.ContributeRecordModel
	var total int64

	// 获取总数
	if err := c.db.Model(&model.ContributeRecordModel{}).Where("project_id = ?", projectId).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取出资记录总数失败: %w", err)
	}

	// 获取数据
	offset := (page - 1) * pageSize
	if err := c.db.Where("project_id = ?", projectId).
		Offset(offset).
		Limit(pageSize).
		Order("seq DESC").
		Find(&contributions).Error; err != nil {
		return nil, 0, fmt.Errorf("获取出资记录失败: %w", err)
	}

	return contributions, total, nil
}

// GetContributeStats 获取项目出资统计
func (c *ContributeRecordLogic) GetContributeStats(projectId int64) (*ContributeStats, error) {
	stats := &ContributeStats{ProjectId: projectId}

	var row struct {
		ContributionCount int64
		ContributorCount  int64
		TotalAmount       int64
	}
	if err := c.db.Model(&model.ContributeRecordModel{}).
		Select("COUNT(*) AS contribution_count, COUNT(DISTINCT address) AS contributor_count, COALESCE(SUM(amount), 0) AS total_amount").
		Where("project_id = ?", projectId).
		Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("获取出资统计失败: %w", err)
	}

	stats.ContributionCount = row.ContributionCount
	stats.ContributorCount = row.ContributorCount
	stats.TotalAmount = row.TotalAmount
	if stats.ContributionCount > 0 {
		stats.AverageAmount = float64(stats.TotalAmount) / float64(stats.ContributionCount)
	}
	return stats, nil
}
