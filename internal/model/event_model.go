package model

import (
	"time"

	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"gorm.io/datatypes"
)

// EventModel 账本事件日志，Version 连续递增
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Version   int64                            `json:"version" gorm:"not null;uniqueIndex"`
	EventType string                           `json:"event_type" gorm:"not null;index"`
	ProjectId int64                            `json:"project_id" gorm:"index"`
	At        int64                            `json:"at" gorm:"not null"`
	Data      datatypes.JSONType[ledger.Event] `json:"data"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}
