package model

import (
	"time"
)

// ContributeRecordModel 出资记录
type ContributeRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId      int64  `json:"project_id" gorm:"not null;index"`
	Seq            int64  `json:"seq" gorm:"not null"`
	Address        string `json:"address" gorm:"not null;index"`
	Amount         int64  `json:"amount" gorm:"not null"`
	IdempotencyKey string `json:"idempotency_key" gorm:"index"`
	ContributedAt  int64  `json:"contributed_at" gorm:"not null"`
	EventVersion   int64  `json:"event_version" gorm:"uniqueIndex"`
}

// TableName 自定义表名
func (ContributeRecordModel) TableName() string {
	return "contribute_record"
}
