package ledger

import (
	"context"

	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/lingyuqian0301/ev-stage-2/internal/metrics"
)

// CreateProjectParams 创建项目参数
type CreateProjectParams struct {
	Title       string
	Description string
	FundingGoal Amount
	Deadline    int64
	Owner       Address
}

// FundParams 出资参数
type FundParams struct {
	ProjectID   uint64
	Contributor Address
	Amount      Amount
	// 可选，客户端生成，用于重试去重
	IdempotencyKey string
}

// CreateProject 创建项目，新项目立即进入 Active 状态。标题与描述为自由文本，不做校验
func (l *Ledger) CreateProject(ctx context.Context, p CreateProjectParams) (id uint64, err error) {
	defer func() { observe("create_project", err) }()

	if p.Owner.IsZero() {
		return 0, ErrInvalidAddress
	}
	if p.FundingGoal == 0 {
		return 0, ErrInvalidGoal
	}
	if p.FundingGoal > MaxAmount {
		return 0, ErrAmountOverflow
	}

	if err := l.lockWrite(ctx); err != nil {
		return 0, err
	}
	defer l.mu.Unlock()

	now := l.now()
	if p.Deadline <= now {
		return 0, ErrInvalidDeadline
	}

	id = uint64(len(l.st.projects)) + 1
	ev := Event{
		Type: EventProjectCreated,
		At:   now,
		ProjectCreated: &ProjectCreated{
			ProjectID:   id,
			Owner:       p.Owner,
			Title:       p.Title,
			Description: p.Description,
			FundingGoal: p.FundingGoal,
			Deadline:    p.Deadline,
		},
	}
	if err := l.commit(ctx, ev); err != nil {
		return 0, err
	}

	logger.Info("Project %d created by %s, goal %d, deadline %d", id, p.Owner, p.FundingGoal, p.Deadline)
	return id, nil
}

// FundProject 向项目出资
func (l *Ledger) FundProject(ctx context.Context, p FundParams) (err error) {
	defer func() { observe("fund_project", err) }()

	if err := l.lockWrite(ctx); err != nil {
		return err
	}
	defer l.mu.Unlock()

	ps := l.st.project(p.ProjectID)
	if ps == nil {
		return ErrProjectNotFound
	}

	// 重复请求直接返回首次结果
	if p.IdempotencyKey != "" {
		if prior, ok := ps.idempotency[p.IdempotencyKey]; ok {
			if prior.Contributor == p.Contributor && prior.Amount == p.Amount {
				logger.Info("Duplicate contribution %s to project %d ignored", p.IdempotencyKey, p.ProjectID)
				return nil
			}
			return ErrIdempotencyConflict
		}
	}

	now := l.now()
	if ps.effectiveStatus(now) != StatusActive {
		return ErrProjectNotActive
	}
	if p.Amount == 0 {
		return ErrInvalidAmount
	}
	if p.Contributor.IsZero() {
		return ErrInvalidAddress
	}
	raised, err := ps.AmountRaised.Add(p.Amount)
	if err != nil {
		return err
	}

	_, known := ps.weights[p.Contributor]
	ev := Event{
		Type: EventProjectFunded,
		At:   now,
		ProjectFunded: &ProjectFunded{
			ProjectID:      p.ProjectID,
			Contributor:    p.Contributor,
			Amount:         p.Amount,
			IdempotencyKey: p.IdempotencyKey,
			NewBacker:      !known,
			Completed:      raised >= ps.FundingGoal,
		},
	}
	if err := l.commit(ctx, ev); err != nil {
		return err
	}

	metrics.FundsRaisedTotal.Add(float64(p.Amount))
	logger.Info("Project %d funded %d by %s, raised %d/%d, status %s",
		p.ProjectID, p.Amount, p.Contributor, ps.AmountRaised, ps.FundingGoal, ps.Status)
	return nil
}

// GetProject 返回项目快照，状态已包含惰性过期判断
func (l *Ledger) GetProject(id uint64) (Project, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ps := l.st.project(id)
	if ps == nil {
		return Project{}, ErrProjectNotFound
	}
	return ps.snapshot(l.now()), nil
}

// GetProjectCount 项目总数
func (l *Ledger) GetProjectCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.st.projects))
}

// WeightOf 出资人在项目中的投票权重
func (l *Ledger) WeightOf(projectID uint64, contributor Address) (Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ps := l.st.project(projectID)
	if ps == nil {
		return 0, ErrProjectNotFound
	}
	if w, ok := ps.weights[contributor]; ok {
		return w.Amount, nil
	}
	return 0, nil
}

// SweepExpired 将已过期但仍记录为 Active 的项目持久化为 Expired
func (l *Ledger) SweepExpired(ctx context.Context) (n int, err error) {
	defer func() { observe("sweep_expired", err) }()

	if err := l.lockWrite(ctx); err != nil {
		return 0, err
	}
	defer l.mu.Unlock()

	now := l.now()
	for _, ps := range l.st.projects {
		if ps.Status != StatusActive || ps.effectiveStatus(now) != StatusExpired {
			continue
		}
		ev := Event{
			Type:           EventProjectExpired,
			At:             now,
			ProjectExpired: &ProjectExpired{ProjectID: ps.ID},
		}
		if err := l.commit(ctx, ev); err != nil {
			return n, err
		}
		logger.Info("Project %d expired, raised %d/%d", ps.ID, ps.AmountRaised, ps.FundingGoal)
		n++
	}
	return n, nil
}
