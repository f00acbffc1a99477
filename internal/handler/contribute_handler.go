package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
)

// IdempotencyKeyHeader 出资重试去重的请求头
const IdempotencyKeyHeader = "Idempotency-Key"

// ContributeHandler 出资处理器
type ContributeHandler struct {
	ledger          *ledger.Ledger
	contributeLogic *logic.ContributeRecordLogic
}

// NewContributeHandler 创建出资处理器
func NewContributeHandler(l *ledger.Ledger, contributeLogic *logic.ContributeRecordLogic) *ContributeHandler {
	return &ContributeHandler{
		ledger:          l,
		contributeLogic: contributeLogic,
	}
}

// FundProject 向项目出资
func (h *ContributeHandler) FundProject(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}

	var req FundProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "请求参数错误: "+err.Error())
		return
	}

	var key string
	if raw := c.GetHeader(IdempotencyKeyHeader); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			invalidRequest(c, "Idempotency-Key 必须是 UUID")
			return
		}
		key = parsed.String()
	}

	contributor, err := normalizeAddress(req.Contributor)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	err = h.ledger.FundProject(c.Request.Context(), ledger.FundParams{
		ProjectID:      id,
		Contributor:    contributor,
		Amount:         ledger.Amount(req.Amount),
		IdempotencyKey: key,
	})
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	summary, err := h.ledger.ProjectSummary(id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "出资成功", summary)
}

// GetTopContributors 按累计出资排序的出资人
func (h *ContributeHandler) GetTopContributors(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	ranked, err := h.ledger.TopContributors(id, limit)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取出资人排行成功", ranked)
}

// GetProjectContributeRecords 获取项目出资记录
func (h *ContributeHandler) GetProjectContributeRecords(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	if _, err := h.ledger.GetProject(id); err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	page, pageSize := logic.NormalizePage(parsePage(c))
	records, total, err := h.contributeLogic.GetProjectContributeRecords(int64(id), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取项目出资记录成功", GetProjectContributeRecordsResponse{
		Records:    ToContributeRecordResponseList(records),
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetContributeStats 获取出资统计信息
func (h *ContributeHandler) GetContributeStats(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	if _, err := h.ledger.GetProject(id); err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	stats, err := h.contributeLogic.GetContributeStats(int64(id))
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取出资统计成功", stats)
}
