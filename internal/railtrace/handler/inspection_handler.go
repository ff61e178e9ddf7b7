package handler

import (
	"github.com/bitfantasy/railtrace/internal/railtrace/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InspectionHandler 检验处理器
type InspectionHandler struct {
	svc        *service.InspectionService
	components *service.ComponentService
	logger     *zap.Logger
}

func NewInspectionHandler(svc *service.InspectionService, components *service.ComponentService, logger *zap.Logger) *InspectionHandler {
	return &InspectionHandler{svc: svc, components: components, logger: logger}
}

// Component GET /inspection/component/:id
func (h *InspectionHandler) Component(c *gin.Context) {
	comp, err := h.components.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, comp)
}

// Report POST /inspection/report
func (h *InspectionHandler) Report(c *gin.Context) {
	var req service.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	in, err := h.svc.Submit(c.Request.Context(), GetActor(c), req)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Created(c, in)
}

// History GET /inspection/history/:id
func (h *InspectionHandler) History(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}
