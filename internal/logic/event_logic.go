package logic

import (
	"fmt"

	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"gorm.io/gorm"
)

// EventLogic 账本事件查询
type EventLogic struct {
	db *gorm.DB
}

// NewEventLogic 创建事件查询逻辑
func NewEventLogic(db *gorm.DB) *EventLogic {
	return &EventLogic{db: db}
}

// GetEvents 分页获取事件，可按项目与类型过滤，最新版本在前
func (e *EventLogic) GetEvents(projectId int64, eventType string, page, pageSize int) ([]model.EventModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var events []model.EventModel
	var total int64

	// 构建查询条件
	query := e.db.Model(&model.EventModel{})
	if projectId > 0 {
		query = query.Where("project_id = ?", projectId)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取事件总数失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("version DESC").Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("获取事件列表失败: %w", err)
	}

	return events, total, nil
}

// GetEventStatistics 按事件类型计数
func (e *EventLogic) GetEventStatistics(projectId int64) (map[string]int64, error) {
	var rows []struct {
		EventType string
		Count     int64
	}
	query := e.db.Model(&model.EventModel{}).Select("event_type, COUNT(*) AS count")
	if projectId > 0 {
		query = query.Where("project_id = ?", projectId)
	}
	if err := query.Group("event_type").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("获取事件统计失败: %w", err)
	}

	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		stats[r.EventType] = r.Count
	}
	return stats, nil
}

// GetLatestVersion 已持久化的最大版本号，无事件时为0
func (e *EventLogic) GetLatestVersion() (int64, error) {
	var version int64
	if err := e.db.Model(&model.EventModel{}).Select("COALESCE(MAX(version), 0)").Scan(&version).Error; err != nil {
		return 0, fmt.Errorf("获取最新版本失败: %w", err)
	}
	return version, nil
}
