package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
)

// RequestHandler 资金释放请求与投票
type RequestHandler struct {
	ledger       *ledger.Ledger
	projectLogic *logic.ProjectLogic
}

func NewRequestHandler(l *ledger.Ledger, projectLogic *logic.ProjectLogic) *RequestHandler {
	return &RequestHandler{
		ledger:       l,
		projectLogic: projectLogic,
	}
}

// CreateRequest 项目所有者发起请求
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	projectID, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}

	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "请求参数错误: "+err.Error())
		return
	}

	caller, err := normalizeAddress(req.Caller)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	recipient, err := normalizeAddress(req.Recipient)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	requestID, err := h.ledger.CreateRequest(c.Request.Context(), ledger.CreateRequestParams{
		ProjectID:      projectID,
		Caller:         caller,
		Description:    req.Description,
		Recipient:      recipient,
		Amount:         ledger.Amount(req.Amount),
		VotingDeadline: req.VotingDeadline,
	})
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	summary, err := h.ledger.RequestSummary(projectID, requestID)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "请求创建成功", summary)
}

// GetRequests 项目的全部请求
func (h *RequestHandler) GetRequests(c *gin.Context) {
	projectID, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}

	requests, err := h.ledger.RequestSummaries(projectID)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取请求列表成功", GetRequestsResponse{
		Requests: requests,
		Total:    uint64(len(requests)),
	})
}

// GetRequest 单个请求及投票比例。带 voter 参数时附带该地址的权重与投票状态
func (h *RequestHandler) GetRequest(c *gin.Context) {
	projectID, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	requestID, ok := parseID(c, "rid", "无效的请求ID")
	if !ok {
		return
	}

	summary, err := h.ledger.RequestSummary(projectID, requestID)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	resp := RequestDetailResponse{RequestSummary: summary}

	if raw := c.Query("voter"); raw != "" {
		voter, err := normalizeAddress(raw)
		if err != nil {
			LedgerErrorResponse(c, err)
			return
		}
		weight, err := h.ledger.WeightOf(projectID, voter)
		if err != nil {
			LedgerErrorResponse(c, err)
			return
		}
		voted, err := h.ledger.HasVoted(projectID, requestID, voter)
		if err != nil {
			LedgerErrorResponse(c, err)
			return
		}
		resp.Voter = &VoterStatus{Address: voter, Weight: weight, HasVoted: voted}
	}
	SuccessResponse(c, http.StatusOK, "获取请求详情成功", resp)
}

// Vote 出资人投票
func (h *RequestHandler) Vote(c *gin.Context) {
	projectID, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	requestID, ok := parseID(c, "rid", "无效的请求ID")
	if !ok {
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "请求参数错误: "+err.Error())
		return
	}
	if req.Support == nil {
		invalidRequest(c, "support 不能为空")
		return
	}

	voter, err := normalizeAddress(req.Voter)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	err = h.ledger.Vote(c.Request.Context(), ledger.VoteParams{
		ProjectID: projectID,
		RequestID: requestID,
		Voter:     voter,
		Support:   *req.Support,
	})
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	summary, err := h.ledger.RequestSummary(projectID, requestID)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "投票成功", summary)
}

// FinalizeRequest 投票截止后结算请求
func (h *RequestHandler) FinalizeRequest(c *gin.Context) {
	projectID, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	requestID, ok := parseID(c, "rid", "无效的请求ID")
	if !ok {
		return
	}

	outcome, err := h.ledger.FinalizeRequest(c.Request.Context(), projectID, requestID)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	summary, err := h.ledger.RequestSummary(projectID, requestID)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "请求已结算", FinalizeResponse{
		Outcome: outcome,
		Request: summary,
	})
}

// GetVotes 请求的投票记录
func (h *RequestHandler) GetVotes(c *gin.Context) {
	projectID, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	requestID, ok := parseID(c, "rid", "无效的请求ID")
	if !ok {
		return
	}
	if _, err := h.ledger.GetRequest(projectID, requestID); err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	votes, err := h.projectLogic.GetRequestVotes(int64(projectID), int64(requestID))
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取投票记录成功", ToVoteRecordResponseList(votes))
}
