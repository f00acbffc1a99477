package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
)

// SettlementHandler 结算记录处理器
type SettlementHandler struct {
	ledger          *ledger.Ledger
	settlementLogic *logic.SettlementLogic
}

// NewSettlementHandler 创建结算记录处理器
func NewSettlementHandler(l *ledger.Ledger, settlementLogic *logic.SettlementLogic) *SettlementHandler {
	return &SettlementHandler{
		ledger:          l,
		settlementLogic: settlementLogic,
	}
}

// GetProjectSettlements 获取项目结算记录
func (h *SettlementHandler) GetProjectSettlements(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的项目ID")
	if !ok {
		return
	}
	if _, err := h.ledger.GetProject(id); err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	page, pageSize := logic.NormalizePage(parsePage(c))
	records, total, err := h.settlementLogic.GetProjectSettlements(int64(id), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取项目结算记录成功", GetSettlementsResponse{
		Settlements: ToSettlementResponseList(records),
		Pagination:  newPagination(page, pageSize, total),
	})
}
