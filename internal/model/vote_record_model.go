package model

import (
	"time"
)

// VoteRecordModel 投票记录，同一请求每个地址只有一条
type VoteRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId int64  `json:"project_id" gorm:"not null;uniqueIndex:idx_vote_unique,priority:1"`
	RequestId int64  `json:"request_id" gorm:"not null;uniqueIndex:idx_vote_unique,priority:2"`
	Voter     string `json:"voter" gorm:"not null;uniqueIndex:idx_vote_unique,priority:3"`
	Support   bool   `json:"support"`
	Weight    int64  `json:"weight" gorm:"not null"`
	VotedAt   int64  `json:"voted_at" gorm:"not null"`
}

// TableName 自定义表名
func (VoteRecordModel) TableName() string {
	return "vote_record"
}
