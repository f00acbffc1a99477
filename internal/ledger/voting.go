package ledger

import (
	"context"
	"strings"

	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/lingyuqian0301/ev-stage-2/internal/metrics"
)

// CreateRequestParams 创建资金释放请求参数
type CreateRequestParams struct {
	ProjectID      uint64
	Caller         Address
	Description    string
	Recipient      Address
	Amount         Amount
	VotingDeadline int64
}

// VoteParams 投票参数
type VoteParams struct {
	ProjectID uint64
	RequestID uint64
	Voter     Address
	Support   bool
}

// CreateRequest 项目所有者发起资金释放请求。
// 总投票权在创建时按项目已募金额快照，之后不再变化。
func (l *Ledger) CreateRequest(ctx context.Context, p CreateRequestParams) (id uint64, err error) {
	defer func() { observe("create_request", err) }()

	if err := l.lockWrite(ctx); err != nil {
		return 0, err
	}
	defer l.mu.Unlock()

	ps := l.st.project(p.ProjectID)
	if ps == nil {
		return 0, ErrProjectNotFound
	}
	if p.Caller != ps.Owner {
		return 0, ErrNotOwner
	}
	if strings.TrimSpace(p.Description) == "" {
		return 0, ErrInvalidDescription
	}
	if p.Recipient.IsZero() {
		return 0, ErrInvalidAddress
	}
	if p.Amount == 0 {
		return 0, ErrInvalidAmount
	}

	now := l.now()
	if p.VotingDeadline <= now {
		return 0, ErrInvalidDeadline
	}
	if ps.effectiveStatus(now) == StatusExpired {
		return 0, ErrProjectExpired
	}
	if p.Amount > ps.Available() {
		return 0, ErrInsufficientFunds
	}

	id = uint64(len(ps.requests)) + 1
	ev := Event{
		Type: EventRequestCreated,
		At:   now,
		RequestCreated: &RequestCreated{
			ProjectID:        p.ProjectID,
			RequestID:        id,
			Description:      p.Description,
			Recipient:        p.Recipient,
			Amount:           p.Amount,
			VotingDeadline:   p.VotingDeadline,
			TotalVotingPower: ps.AmountRaised,
		},
	}
	if err := l.commit(ctx, ev); err != nil {
		return 0, err
	}

	logger.Info("Request %d/%d created for %d to %s, voting power %d",
		p.ProjectID, id, p.Amount, p.Recipient, ps.AmountRaised)
	return id, nil
}

// Vote 出资人按累计出资额加权投票，每个请求只能投一次
func (l *Ledger) Vote(ctx context.Context, p VoteParams) (err error) {
	defer func() { observe("vote", err) }()

	if err := l.lockWrite(ctx); err != nil {
		return err
	}
	defer l.mu.Unlock()

	ps := l.st.project(p.ProjectID)
	if ps == nil {
		return ErrProjectNotFound
	}
	rs := ps.request(p.RequestID)
	if rs == nil {
		return ErrRequestNotFound
	}

	now := l.now()
	if now >= rs.VotingDeadline || rs.Status != RequestOpen {
		return ErrVotingClosed
	}
	if rs.voters[p.Voter] {
		return ErrAlreadyVoted
	}
	w, ok := ps.weights[p.Voter]
	if !ok || w.Amount == 0 {
		return ErrNotContributor
	}

	tally := rs.VotesAgainst
	if p.Support {
		tally = rs.VotesFor
	}
	if _, err := tally.Add(w.Amount); err != nil {
		return err
	}

	ev := Event{
		Type: EventVoteCast,
		At:   now,
		VoteCast: &VoteCast{
			ProjectID: p.ProjectID,
			RequestID: p.RequestID,
			Voter:     p.Voter,
			Support:   p.Support,
			Weight:    w.Amount,
		},
	}
	if err := l.commit(ctx, ev); err != nil {
		return err
	}

	logger.Info("Vote on request %d/%d by %s: support=%t weight=%d",
		p.ProjectID, p.RequestID, p.Voter, p.Support, w.Amount)
	return nil
}

// approved 多数票且赞成票超过快照总投票权的一半
func approved(r MilestoneRequest) bool {
	return r.VotesFor > r.VotesAgainst && r.VotesFor > r.TotalVotingPower/2
}

// FinalizeRequest 投票截止后结算请求。通过则立即执行并从托管余额扣减金额
func (l *Ledger) FinalizeRequest(ctx context.Context, projectID, requestID uint64) (outcome RequestStatus, err error) {
	defer func() { observe("finalize_request", err) }()

	if err := l.lockWrite(ctx); err != nil {
		return "", err
	}
	defer l.mu.Unlock()

	ps := l.st.project(projectID)
	if ps == nil {
		return "", ErrProjectNotFound
	}
	rs := ps.request(requestID)
	if rs == nil {
		return "", ErrRequestNotFound
	}

	switch rs.Status {
	case RequestExecuted:
		return rs.Status, ErrAlreadyExecuted
	case RequestRejected:
		return rs.Status, ErrAlreadyFinalized
	}

	now := l.now()
	if now < rs.VotingDeadline {
		return rs.Status, ErrVotingStillOpen
	}

	outcome = RequestRejected
	if approved(rs.MilestoneRequest) {
		if rs.Amount > ps.Available() {
			return rs.Status, ErrInsufficientFunds
		}
		outcome = RequestExecuted
	}

	ev := Event{
		Type: EventRequestFinalized,
		At:   now,
		RequestFinalized: &RequestFinalized{
			ProjectID: projectID,
			RequestID: requestID,
			Outcome:   outcome,
			Recipient: rs.Recipient,
			Amount:    rs.Amount,
		},
	}
	if err := l.commit(ctx, ev); err != nil {
		return rs.Status, err
	}

	if outcome == RequestExecuted {
		metrics.FundsReleasedTotal.Add(float64(rs.Amount))
	}
	logger.Info("Request %d/%d finalized as %s: for %d, against %d, power %d",
		projectID, requestID, outcome, rs.VotesFor, rs.VotesAgainst, rs.TotalVotingPower)
	return outcome, nil
}

// GetRequest 返回请求快照
func (l *Ledger) GetRequest(projectID, requestID uint64) (MilestoneRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ps := l.st.project(projectID)
	if ps == nil {
		return MilestoneRequest{}, ErrProjectNotFound
	}
	rs := ps.request(requestID)
	if rs == nil {
		return MilestoneRequest{}, ErrRequestNotFound
	}
	return rs.MilestoneRequest, nil
}

// GetRequestCount 项目的请求数
func (l *Ledger) GetRequestCount(projectID uint64) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ps := l.st.project(projectID)
	if ps == nil {
		return 0, ErrProjectNotFound
	}
	return uint64(len(ps.requests)), nil
}

// ListRequests 按ID顺序返回项目的全部请求
func (l *Ledger) ListRequests(projectID uint64) ([]MilestoneRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ps := l.st.project(projectID)
	if ps == nil {
		return nil, ErrProjectNotFound
	}
	out := make([]MilestoneRequest, 0, len(ps.requests))
	for _, rs := range ps.requests {
		out = append(out, rs.MilestoneRequest)
	}
	return out, nil
}

// HasVoted 是否已对请求投票
func (l *Ledger) HasVoted(projectID, requestID uint64, voter Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ps := l.st.project(projectID)
	if ps == nil {
		return false, ErrProjectNotFound
	}
	rs := ps.request(requestID)
	if rs == nil {
		return false, ErrRequestNotFound
	}
	return rs.voters[voter], nil
}
