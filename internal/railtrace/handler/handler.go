package handler

import (
	"strconv"

	"github.com/bitfantasy/railtrace/internal/middleware"
	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/bitfantasy/railtrace/internal/railtrace/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Component    *ComponentHandler
	Inspection   *InspectionHandler
	Manufacturer *ManufacturerHandler
	SSE          *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *events.Hub, logger *zap.Logger) *Handlers {
	return &Handlers{
		Component:    NewComponentHandler(svc.Component, logger),
		Inspection:   NewInspectionHandler(svc.Inspection, svc.Component, logger),
		Manufacturer: NewManufacturerHandler(svc.Manufacturer, svc.Component, logger),
		SSE:          NewSSEHandler(hub),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPagination(page, pageSize int, total int64) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &Pagination{Page: page, PageSize: pageSize, Total: int(total), TotalPages: pages}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// 错误类别对应的业务码
var kindCodes = map[apperr.Kind]int{
	apperr.NotFound:               40400,
	apperr.InvalidIdentifier:      40001,
	apperr.InvalidArgument:        40000,
	apperr.InvalidStateTransition: 40900,
	apperr.AllocationConflict:     40901,
	apperr.EncodingError:          42200,
	apperr.Unauthorized:           40100,
	apperr.Forbidden:              40300,
	apperr.Internal:               50000,
}

// CodeOf returns the business code for err.
func CodeOf(err error) int {
	if code, ok := kindCodes[apperr.KindOf(err)]; ok {
		return code
	}
	return 50000
}

// HandleError writes err with the code of its kind. Internal errors are logged and
// their detail is not exposed.
func HandleError(c *gin.Context, logger *zap.Logger, err error) {
	code := CodeOf(err)
	if code >= 50000 {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.ContextRequestID)),
			zap.Error(err))
		c.Error(err)
		InternalError(c, "internal server error")
		return
	}
	Error(c, code, apperr.MessageOf(err))
}

// GetActor builds the actor from the authenticated context.
func GetActor(c *gin.Context) authz.Actor {
	role, _ := authz.ParseRole(c.GetString(middleware.ContextRole))
	return authz.Actor{
		ID:       c.GetString(middleware.ContextUserID),
		Username: c.GetString(middleware.ContextUsername),
		Role:     role,
	}
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
