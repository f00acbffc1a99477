package model

import (
	"time"
)

// SettlementRecordModel 已执行请求的链上付款记录
type SettlementRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId      int64            `json:"project_id" gorm:"not null;uniqueIndex:idx_settlement_request,priority:1"`
	RequestId      int64            `json:"request_id" gorm:"not null;uniqueIndex:idx_settlement_request,priority:2"`
	Recipient      string           `json:"recipient" gorm:"not null"`
	Amount         int64            `json:"amount" gorm:"not null"`
	TxHash         string           `json:"tx_hash" gorm:"index"`
	Nonce          int64            `json:"nonce" gorm:"default:0"`
	RawTx          string           `json:"-" gorm:"type:text"`
	Status         SettlementStatus `json:"status" gorm:"default:'pending';index"`
	Attempts       int              `json:"attempts" gorm:"default:0"`
	LastError      string           `json:"last_error" gorm:"type:text"`
	SettlementTime *time.Time       `json:"settlement_time"`
}

// SettlementStatus 结算状态
type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "pending" // 待处理
	SettlementStatusSent    SettlementStatus = "sent"    // 已签名并持久化，等待上链
	SettlementStatusSuccess SettlementStatus = "success" // 成功
	SettlementStatusFailed  SettlementStatus = "failed"  // 失败，可重试
)

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
