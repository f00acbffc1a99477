package logic

import (
	"fmt"
	"time"

	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"gorm.io/gorm"
)

// SettlementLogic 结算记录业务逻辑
type SettlementLogic struct {
	db *gorm.DB
}

// NewSettlementLogic 创建结算记录业务逻辑
func NewSettlementLogic(db *gorm.DB) *SettlementLogic {
	return &SettlementLogic{db: db}
}

// GetDueSettlements 需要处理的记录，按创建顺序：
// 未超过重试上限的待处理或失败记录，以及所有已发送未确认的记录
func (s *SettlementLogic) GetDueSettlements(maxAttempts, limit int) ([]model.SettlementRecordModel, error) {
	var records []model.SettlementRecordModel
	if err := s.db.
		Where("(status IN ? AND attempts < ?) OR status = ?",
			[]model.SettlementStatus{model.SettlementStatusPending, model.SettlementStatusFailed}, maxAttempts,
			model.SettlementStatusSent).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("获取待结算记录失败: %w", err)
	}
	return records, nil
}

// MarkSent 广播前保存已签名交易，之后只能重发同一交易
func (s *SettlementLogic) MarkSent(id int64, nonce uint64, txHash, rawTx string) error {
	res := s.db.Model(&model.SettlementRecordModel{}).
		Where("id = ? AND status IN ?", id,
			[]model.SettlementStatus{model.SettlementStatusPending, model.SettlementStatusFailed}).
		Updates(map[string]interface{}{
			"status":     model.SettlementStatusSent,
			"nonce":      int64(nonce),
			"tx_hash":    txHash,
			"raw_tx":     rawTx,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("settlement %d is not awaiting a transfer", id)
	}
	return nil
}

// RecordSendError 记录广播错误，交易可能已被节点接收，状态保持 sent
func (s *SettlementLogic) RecordSendError(id int64, cause error) error {
	return s.db.Model(&model.SettlementRecordModel{}).Where("id = ?", id).
		Update("last_error", cause.Error()).Error
}

// MarkSuccess 已发送交易上链成功
func (s *SettlementLogic) MarkSuccess(id int64, txHash string) error {
	now := time.Now()
	return s.db.Model(&model.SettlementRecordModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          model.SettlementStatusSuccess,
		"tx_hash":         txHash,
		"raw_tx":          "",
		"last_error":      "",
		"settlement_time": &now,
	}).Error
}

// MarkFailed 签名前失败，计入重试次数，下次调度时重试
func (s *SettlementLogic) MarkFailed(id int64, cause error) error {
	return s.db.Model(&model.SettlementRecordModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     model.SettlementStatusFailed,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": cause.Error(),
	}).Error
}

// MarkAbandoned 已发送交易确定不会付款（被回滚或 nonce 被占用），
// 清除交易后按失败处理。该次尝试已在 MarkSent 时计数
func (s *SettlementLogic) MarkAbandoned(id int64, cause error) error {
	return s.db.Model(&model.SettlementRecordModel{}).
		Where("id = ? AND status = ?", id, model.SettlementStatusSent).
		Updates(map[string]interface{}{
			"status":     model.SettlementStatusFailed,
			"tx_hash":    "",
			"raw_tx":     "",
			"nonce":      0,
			"last_error": cause.Error(),
		}).Error
}

// GetProjectSettlements 分页获取项目结算记录
func (s *SettlementLogic) GetProjectSettlements(projectId int64, page, pageSize int) ([]model.SettlementRecordModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var records []model.SettlementRecordModel
	var total int64

	query := s.db.Model(&model.SettlementRecordModel{}).Where("project_id = ?", projectId)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取结算记录总数失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("id DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取结算记录失败: %w", err)
	}
	return records, total, nil
}
