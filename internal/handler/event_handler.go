package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lingyuqian0301/ev-stage-2/internal/logic"
)

// EventHandler 账本事件查询
type EventHandler struct {
	eventLogic *logic.EventLogic
}

func NewEventHandler(eventLogic *logic.EventLogic) *EventHandler {
	return &EventHandler{eventLogic: eventLogic}
}

// GetEvents 分页获取账本事件，支持 project_id 与 type 过滤
func (h *EventHandler) GetEvents(c *gin.Context) {
	projectID, _ := strconv.ParseInt(c.Query("project_id"), 10, 64)
	page, pageSize := logic.NormalizePage(parsePage(c))

	events, total, err := h.eventLogic.GetEvents(projectID, c.Query("type"), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := h.eventLogic.GetEventStatistics(projectID)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取事件列表成功", GetEventsResponse{
		Events:     ToEventResponseList(events),
		Statistics: stats,
		Pagination: newPagination(page, pageSize, total),
	})
}
