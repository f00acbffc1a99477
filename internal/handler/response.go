package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lingyuqian0301/ev-stage-2/internal/ledger"
	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// LedgerErrorResponse 按账本错误分类返回状态码，非账本错误视为内部错误
func LedgerErrorResponse(c *gin.Context, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, http.StatusInternalServerError, "内部错误")
		return
	}
	c.JSON(StatusOf(le.Kind), Response{
		Success: false,
		Message: le.Message,
		Code:    le.Code,
		Kind:    le.Kind.String(),
	})
}

// invalidRequest 请求体或参数格式错误，按 InvalidInput 分类返回
func invalidRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Message: detail,
		Code:    ledger.ErrInvalidRequest.Code,
		Kind:    ledger.ErrInvalidRequest.Kind.String(),
	})
}

// StatusOf 错误分类到 HTTP 状态码
func StatusOf(kind ledger.Kind) int {
	switch kind {
	case ledger.KindInvalidInput:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindNotAuthorized:
		return http.StatusForbidden
	case ledger.KindInvalidState:
		return http.StatusConflict
	case ledger.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseID 解析路径中的正整数ID
func parseID(c *gin.Context, name, message string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		invalidRequest(c, message)
		return 0, false
	}
	return id, true
}

func parsePage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

func newPagination(page, pageSize int, total int64) Pagination {
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
}
