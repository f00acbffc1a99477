package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
)

type ProjectHandler struct {
	ledger       *ledger.Ledger
	projectLogic *logic.ProjectLogic
}

func NewProjectHandler(l *ledger.Ledger, projectLogic *logic.ProjectLogic) *ProjectHandler {
	return &ProjectHandler{
		ledger:       l,
		projectLogic: projectLogic,
	}
}

// CreateProject 创建项目
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "请求参数错误: "+err.Error())
		return
	}

	owner, err := normalizeAddress(req.Owner)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	id, err := h.ledger.CreateProject(c.Request.Context(), ledger.CreateProjectParams{
		Title:       req.Title,
		Description: req.Description,
		FundingGoal: ledger.Amount(req.FundingGoal),
		Deadline:    req.Deadline,
		Owner:       owner,
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
	SuccessResponse(c, http.StatusCreated, "项目创建成功", summary)
}

// GetProjects 获取项目列表
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	projects := h.ledger.ProjectSummaries()
	SuccessResponse(c, http.StatusOK, "获取项目列表成功", GetProjectsResponse{
		Projects: projects,
		Total:    uint64(len(projects)),
	})
}

// GetProject 获取单个项目详情
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}

	summary, err := h.ledger.ProjectSummary(id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取项目详情成功", summary)
}

// GetPlatformStats 平台汇总统计
func (h *ProjectHandler) GetPlatformStats(c *gin.Context) {
	stats, err := h.projectLogic.GetAllProjectStats()
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取平台统计成功", stats)
}
