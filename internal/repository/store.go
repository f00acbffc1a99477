package repository

import (
	"context"
	"fmt"

	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store 基于 GORM 的账本事件日志。
// 每个事件与其投影更新在同一事务内提交
type Store struct {
	db *gorm.DB
}

// NewStore 创建事件存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var (
	_ ledger.Journal       = (*Store)(nil)
	_ ledger.JournalReader = (*Store)(nil)
)

// Append 写入事件并更新投影表
func (s *Store) Append(ctx context.Context, ev ledger.Event) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := model.EventModel{
			Version:   int64(ev.Version),
			EventType: string(ev.Type),
			ProjectId: int64(ev.ProjectID()),
			At:        ev.At,
			Data:      datatypes.NewJSONType(ev),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert event %d: %w", ev.Version, err)
		}
		return project(tx, ev)
	})
}

// project 将事件投影到查询表
func project(tx *gorm.DB, ev ledger.Event) error {
	version := int64(ev.Version)

	switch ev.Type {
	case ledger.EventProjectCreated:
		pc := ev.ProjectCreated
		return tx.Create(&model.ProjectModel{
			Id:             int64(pc.ProjectID),
			Title:          pc.Title,
			Description:    pc.Description,
			TargetAmount:   int64(pc.FundingGoal),
			Deadline:       pc.Deadline,
			Status:         model.ProjectStatusActive,
			CreatorAddress: string(pc.Owner),
			LedgerVersion:  version,
		}).Error

	case ledger.EventProjectFunded:
		pf := ev.ProjectFunded
		var seq int64
		if err := tx.Model(&model.ContributeRecordModel{}).Where("project_id = ?", pf.ProjectID).Count(&seq).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.ContributeRecordModel{
			ProjectId:      int64(pf.ProjectID),
			Seq:            seq + 1,
			Address:        string(pf.Contributor),
			Amount:         int64(pf.Amount),
			IdempotencyKey: pf.IdempotencyKey,
			ContributedAt:  ev.At,
			EventVersion:   version,
		}).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"current_amount": gorm.Expr("current_amount + ?", int64(pf.Amount)),
			"ledger_version": version,
		}
		if pf.NewBacker {
			updates["backer_count"] = gorm.Expr("backer_count + 1")
		}
		if pf.Completed {
			updates["status"] = model.ProjectStatusCompleted
		}
		return updateProject(tx, pf.ProjectID, updates)

	case ledger.EventProjectExpired:
		return updateProject(tx, ev.ProjectExpired.ProjectID, map[string]interface{}{
			"status":         model.ProjectStatusExpired,
			"ledger_version": version,
		})

	case ledger.EventRequestCreated:
		rc := ev.RequestCreated
		if err := tx.Create(&model.MilestoneRequestModel{
			ProjectId:        int64(rc.ProjectID),
			RequestId:        int64(rc.RequestID),
			Description:      rc.Description,
			Recipient:        string(rc.Recipient),
			Amount:           int64(rc.Amount),
			VotingDeadline:   rc.VotingDeadline,
			TotalVotingPower: int64(rc.TotalVotingPower),
			Status:           model.MilestoneStatusOpen,
		}).Error; err != nil {
			return err
		}
		return updateProject(tx, rc.ProjectID, map[string]interface{}{"ledger_version": version})

	case ledger.EventVoteCast:
		vc := ev.VoteCast
		if err := tx.Create(&model.VoteRecordModel{
			ProjectId: int64(vc.ProjectID),
			RequestId: int64(vc.RequestID),
			Voter:     string(vc.Voter),
			Support:   vc.Support,
			Weight:    int64(vc.Weight),
			VotedAt:   ev.At,
		}).Error; err != nil {
			return err
		}
		column := "votes_against"
		if vc.Support {
			column = "votes_for"
		}
		return updateRequest(tx, vc.ProjectID, vc.RequestID, map[string]interface{}{
			column: gorm.Expr(column+" + ?", int64(vc.Weight)),
		})

	case ledger.EventRequestFinalized:
		rf := ev.RequestFinalized
		if rf.Outcome != ledger.RequestExecuted {
			return updateRequest(tx, rf.ProjectID, rf.RequestID, map[string]interface{}{
				"status": model.MilestoneStatusRejected,
			})
		}
		if err := updateRequest(tx, rf.ProjectID, rf.RequestID, map[string]interface{}{
			"status":   model.MilestoneStatusExecuted,
			"executed": true,
		}); err != nil {
			return err
		}
		if err := updateProject(tx, rf.ProjectID, map[string]interface{}{
			"released_amount": gorm.Expr("released_amount + ?", int64(rf.Amount)),
			"ledger_version":  version,
		}); err != nil {
			return err
		}
		// 链上付款由结算任务异步完成
		return tx.Create(&model.SettlementRecordModel{
			ProjectId: int64(rf.ProjectID),
			RequestId: int64(rf.RequestID),
			Recipient: string(rf.Recipient),
			Amount:    int64(rf.Amount),
			Status:    model.SettlementStatusPending,
		}).Error
	}
	return fmt.Errorf("unknown event type %q", ev.Type)
}

func updateProject(tx *gorm.DB, id uint64, updates map[string]interface{}) error {
	res := tx.Model(&model.ProjectModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %d missing from projection", id)
	}
	return nil
}

func updateRequest(tx *gorm.DB, projectID, requestID uint64, updates map[string]interface{}) error {
	res := tx.Model(&model.MilestoneRequestModel{}).
		Where("project_id = ? AND request_id = ?", projectID, requestID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("request %d/%d missing from projection", projectID, requestID)
	}
	return nil
}

// LoadEvents 按版本顺序读取全部事件，用于启动回放
func (s *Store) LoadEvents(ctx context.Context) ([]ledger.Event, error) {
	return s.EventsAfter(ctx, 0)
}

// EventsAfter 按版本顺序读取版本大于 version 的事件
func (s *Store) EventsAfter(ctx context.Context, version uint64) ([]ledger.Event, error) {
	var rows []model.EventModel
	err := s.db.WithContext(ctx).
		Where("version > ?", int64(version)).
		Order("version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load events after %d: %w", version, err)
	}

	events := make([]ledger.Event, 0, len(rows))
	for _, row := range rows {
		ev := row.Data.Data()
		if ev.Version != uint64(row.Version) {
			return nil, fmt.Errorf("event row %d carries version %d", row.Version, ev.Version)
		}
		events = append(events, ev)
	}
	return events, nil
}
