package model

import (
	"time"
)

// ProjectModel 众筹项目投影
type ProjectModel struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`

	// 众筹信息
	TargetAmount   int64 `json:"target_amount" gorm:"not null"`
	CurrentAmount  int64 `json:"current_amount" gorm:"default:0"`
	ReleasedAmount int64 `json:"released_amount" gorm:"default:0"`
	BackerCount    int64 `json:"backer_count" gorm:"default:0"`

	// 截止时间（Unix 秒）
	Deadline int64 `json:"deadline" gorm:"not null;index"`

	Status ProjectStatus `json:"status" gorm:"default:'active';index"`

	CreatorAddress string `json:"creator_address" gorm:"not null;index"`

	// 最后一次修改该行的账本版本
	LedgerVersion int64 `json:"ledger_version"`
}

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "pending"   // 待审核
	ProjectStatusActive    ProjectStatus = "active"    // 募资中
	ProjectStatusCompleted ProjectStatus = "completed" // 已达成
	ProjectStatusExpired   ProjectStatus = "expired"   // 已过期
)

// TableName 自定义表名
func (ProjectModel) TableName() string {
	return "project"
}
