package model

import (
	"time"
)

// MilestoneRequestModel 资金释放请求投影
type MilestoneRequestModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId        int64  `json:"project_id" gorm:"not null;uniqueIndex:idx_request_project,priority:1"`
	RequestId        int64  `json:"request_id" gorm:"not null;uniqueIndex:idx_request_project,priority:2"`
	Description      string `json:"description" gorm:"type:text"`
	Recipient        string `json:"recipient" gorm:"not null"`
	Amount           int64  `json:"amount" gorm:"not null"`
	VotingDeadline   int64  `json:"voting_deadline" gorm:"not null"`
	VotesFor         int64  `json:"votes_for" gorm:"default:0"`
	VotesAgainst     int64  `json:"votes_against" gorm:"default:0"`
	TotalVotingPower int64  `json:"total_voting_power" gorm:"not null"`
	Executed         bool   `json:"executed" gorm:"default:false"`

	Status MilestoneStatus `json:"status" gorm:"default:'open'"`
}

// MilestoneStatus 请求状态
type MilestoneStatus string

const (
	MilestoneStatusOpen     MilestoneStatus = "open"     // 投票中
	MilestoneStatusRejected MilestoneStatus = "rejected" // 已否决
	MilestoneStatusExecuted MilestoneStatus = "executed" // 已执行
)

// TableName 自定义表名
func (MilestoneRequestModel) TableName() string {
	return "milestone_request"
}
