package handler

import (
	"time"

	"github.com/lingyuqian0301/ev-stage-2/internal/chain"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/model"
	"github.com/samber/lo"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// 请求模型

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	FundingGoal uint64 `json:"funding_goal"`
	Deadline    int64  `json:"deadline"` // Unix 秒
	Owner       string `json:"owner"`
}

// FundProjectRequest 出资请求
type FundProjectRequest struct {
	Contributor string `json:"contributor"`
	Amount      uint64 `json:"amount"`
}

// CreateRequestRequest 发起资金释放请求
type CreateRequestRequest struct {
	Caller         string `json:"caller"`
	Description    string `json:"description"`
	Recipient      string `json:"recipient"`
	Amount         uint64 `json:"amount"`
	VotingDeadline int64  `json:"voting_deadline"` // Unix 秒
}

// VoteRequest 投票请求
type VoteRequest struct {
	Voter   string `json:"voter"`
	Support *bool  `json:"support"`
}

// 响应模型

// GetProjectsResponse 项目列表，Total 即项目总数
type GetProjectsResponse struct {
	Projects []ledger.ProjectSummary `json:"projects"`
	Total    uint64                  `json:"total"`
}

// GetRequestsResponse 请求列表，Total 即项目的请求数
type GetRequestsResponse struct {
	Requests []ledger.RequestSummary `json:"requests"`
	Total    uint64                  `json:"total"`
}

// VoterStatus 某地址在请求上的投票资格
type VoterStatus struct {
	Address  ledger.Address `json:"address"`
	Weight   ledger.Amount  `json:"weight"`
	HasVoted bool           `json:"has_voted"`
}

// RequestDetailResponse 请求详情
type RequestDetailResponse struct {
	ledger.RequestSummary
	Voter *VoterStatus `json:"voter,omitempty"`
}

// FinalizeResponse 结算结果
type FinalizeResponse struct {
	Outcome ledger.RequestStatus  `json:"outcome"`
	Request ledger.RequestSummary `json:"request"`
}

// ContributeRecordResponse 出资记录响应模型
type ContributeRecordResponse struct {
	Seq            int64  `json:"seq"`
	ProjectID      int64  `json:"projectId"`
	Address        string `json:"address"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	ContributedAt  int64  `json:"contributedAt"`
}

// GetProjectContributeRecordsResponse 获取项目出资记录响应
type GetProjectContributeRecordsResponse struct {
	Records    []ContributeRecordResponse `json:"records"`
	Pagination Pagination                 `json:"pagination"`
}

// EventResponse 账本事件
type EventResponse struct {
	Version   int64        `json:"version"`
	Type      string       `json:"type"`
	ProjectID int64        `json:"projectId"`
	At        int64        `json:"at"`
	Data      ledger.Event `json:"data"`
}

// GetEventsResponse 事件列表
type GetEventsResponse struct {
	Events     []EventResponse  `json:"events"`
	Statistics map[string]int64 `json:"statistics"` // 按事件类型计数，随 project_id 过滤
	Pagination Pagination       `json:"pagination"`
}

// SettlementResponse 结算记录
type SettlementResponse struct {
	ID             int64      `json:"id"`
	RequestID      int64      `json:"requestId"`
	Recipient      string     `json:"recipient"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	TxHash         string     `json:"txHash,omitempty"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"lastError,omitempty"`
	SettlementTime *time.Time `json:"settlementTime,omitempty"`
}

// GetSettlementsResponse 结算记录列表
type GetSettlementsResponse struct {
	Settlements []SettlementResponse `json:"settlements"`
	Pagination  Pagination           `json:"pagination"`
}

// VoteRecordResponse 投票记录
type VoteRecordResponse struct {
	Voter   string `json:"voter"`
	Support bool   `json:"support"`
	Weight  int64  `json:"weight"`
	VotedAt int64  `json:"votedAt"`
}

// 转换函数

// normalizeAddress 校验并返回 EIP-55 校验和地址，非法时返回账本的地址错误
func normalizeAddress(s string) (ledger.Address, error) {
	addr, err := chain.ParseAddress(s)
	if err != nil {
		return "", ledger.ErrInvalidAddress
	}
	return ledger.Address(addr.Hex()), nil
}

// ToContributeRecordResponseList 转换出资记录列表
func ToContributeRecordResponseList(records []model.ContributeRecordModel) []ContributeRecordResponse {
	return lo.Map(records, func(r model.ContributeRecordModel, _ int) ContributeRecordResponse {
		return ContributeRecordResponse{
			Seq:            r.Seq,
			ProjectID:      r.ProjectId,
			Address:        r.Address,
			Amount:         r.Amount,
			IdempotencyKey: r.IdempotencyKey,
			ContributedAt:  r.ContributedAt,
		}
	})
}

// ToEventResponseList 转换事件列表
func ToEventResponseList(events []model.EventModel) []EventResponse {
	return lo.Map(events, func(e model.EventModel, _ int) EventResponse {
		return EventResponse{
			Version:   e.Version,
			Type:      e.EventType,
			ProjectID: e.ProjectId,
			At:        e.At,
			Data:      e.Data.Data(),
		}
	})
}

// ToSettlementResponseList 转换结算记录列表
func ToSettlementResponseList(records []model.SettlementRecordModel) []SettlementResponse {
	return lo.Map(records, func(r model.SettlementRecordModel, _ int) SettlementResponse {
		return SettlementResponse{
			ID:             r.Id,
			RequestID:      r.RequestId,
			Recipient:      r.Recipient,
			Amount:         r.Amount,
			Status:         string(r.Status),
			TxHash:         r.TxHash,
			Attempts:       r.Attempts,
			LastError:      r.LastError,
			SettlementTime: r.SettlementTime,
		}
	})
}

// ToVoteRecordResponseList 转换投票记录列表
func ToVoteRecordResponseList(votes []model.VoteRecordModel) []VoteRecordResponse {
	return lo.Map(votes, func(v model.VoteRecordModel, _ int) VoteRecordResponse {
		return VoteRecordResponse{
			Voter:   v.Voter,
			Support: v.Support,
			Weight:  v.Weight,
			VotedAt: v.VotedAt,
		}
	})
}
