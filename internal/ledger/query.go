package ledger

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

const secondsPerDay = 86400

// PercentFunded 已募比例，超额时大于100
func PercentFunded(p Project) float64 {
	if p.FundingGoal == 0 {
		return 0
	}
	return float64(p.AmountRaised) / float64(p.FundingGoal) * 100
}

// DaysRemaining 距截止的天数，向上取整，不小于0
func DaysRemaining(p Project, now int64) int64 {
	left := p.Deadline - now
	if left <= 0 {
		return 0
	}
	return (left + secondsPerDay - 1) / secondsPerDay
}

// VotePercentages 赞成与反对占已投票权重的比例，无人投票时均为0
func VotePercentages(r MilestoneRequest) (forPct, againstPct float64) {
	total := float64(r.VotesFor) + float64(r.VotesAgainst)
	if total == 0 {
		return 0, 0
	}
	return float64(r.VotesFor) / total * 100, float64(r.VotesAgainst) / total * 100
}

// ProjectSummary 项目展示视图
type ProjectSummary struct {
	Project
	Available     Amount  `json:"available"`
	PercentFunded float64 `json:"percent_funded"`
	DaysRemaining int64   `json:"days_remaining"`
	RequestCount  uint64  `json:"request_count"`
}

// RequestSummary 请求展示视图
type RequestSummary struct {
	MilestoneRequest
	ForPercent     float64 `json:"for_percent"`
	AgainstPercent float64 `json:"against_percent"`
	Approvable     bool    `json:"approvable"`
	VotingOpen     bool    `json:"voting_open"`
}

// ProjectSummary 返回项目及其展示指标
func (l *Ledger) ProjectSummary(projectID uint64) (ProjectSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ps := l.st.project(projectID)
	if ps == nil {
		return ProjectSummary{}, ErrProjectNotFound
	}
	now := l.now()
	return summarize(ps.snapshot(now), uint64(len(ps.requests)), now), nil
}

// ProjectSummaries 全部项目的展示视图
func (l *Ledger) ProjectSummaries() []ProjectSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	return lo.Map(l.st.projects, func(ps *projectState, _ int) ProjectSummary {
		return summarize(ps.snapshot(now), uint64(len(ps.requests)), now)
	})
}

func summarize(p Project, requests uint64, now int64) ProjectSummary {
	return ProjectSummary{
		Project:       p,
		Available:     p.Available(),
		PercentFunded: PercentFunded(p),
		DaysRemaining: DaysRemaining(p, now),
		RequestCount:  requests,
	}
}

// RequestSummary 返回请求及投票比例
func (l *Ledger) RequestSummary(projectID, requestID uint64) (RequestSummary, error) {
	r, err := l.GetRequest(projectID, requestID)
	if err != nil {
		return RequestSummary{}, err
	}
	return l.summarizeRequest(r), nil
}

// RequestSummaries 项目全部请求的展示视图
func (l *Ledger) RequestSummaries(projectID uint64) ([]RequestSummary, error) {
	reqs, err := l.ListRequests(projectID)
	if err != nil {
		return nil, err
	}
	return lo.Map(reqs, func(r MilestoneRequest, _ int) RequestSummary {
		return l.summarizeRequest(r)
	}), nil
}

func (l *Ledger) summarizeRequest(r MilestoneRequest) RequestSummary {
	forPct, againstPct := VotePercentages(r)
	return RequestSummary{
		MilestoneRequest: r,
		ForPercent:       forPct,
		AgainstPercent:   againstPct,
		Approvable:       r.Status == RequestOpen && approved(r),
		VotingOpen:       r.Status == RequestOpen && l.now() < r.VotingDeadline,
	}
}

// TopContributors 按累计出资降序排列，金额相同时先出资者在前。limit<=0 返回全部
func (l *Ledger) TopContributors(projectID uint64, limit int) ([]ContributorWeight, error) {
	l.mu.RLock()
	ps := l.st.project(projectID)
	if ps == nil {
		l.mu.RUnlock()
		return nil, ErrProjectNotFound
	}
	ranked := lo.MapToSlice(ps.weights, func(_ Address, w *ContributorWeight) ContributorWeight {
		return *w
	})
	l.mu.RUnlock()

	slices.SortFunc(ranked, func(a, b ContributorWeight) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		if c := cmp.Compare(a.FirstContribution, b.FirstContribution); c != 0 {
			return c
		}
		return cmp.Compare(a.firstSeq, b.firstSeq)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
