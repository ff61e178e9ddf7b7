package handler

import (
	"github.com/bitfantasy/railtrace/internal/railtrace/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ManufacturerHandler 制造商处理器
type ManufacturerHandler struct {
	svc        *service.ManufacturerService
	components *service.ComponentService
	logger     *zap.Logger
}

func NewManufacturerHandler(svc *service.ManufacturerService, components *service.ComponentService, logger *zap.Logger) *ManufacturerHandler {
	return &ManufacturerHandler{svc: svc, components: components, logger: logger}
}

// Me GET /manufacturer/me
func (h *ManufacturerHandler) Me(c *gin.Context) {
	m, err := h.svc.Me(c.Request.Context(), GetActor(c))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, m)
}

// CreateComponent POST /manufacturer/components
func (h *ManufacturerHandler) CreateComponent(c *gin.Context) {
	var req service.AllocateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	comp, err := h.components.Allocate(c.Request.Context(), GetActor(c), req)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Created(c, comp)
}

// ListComponents GET /manufacturer/components
func (h *ManufacturerHandler) ListComponents(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.components.ListOwn(c.Request.Context(), GetActor(c), page, pageSize)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: newPagination(page, pageSize, total)})
}

// GetComponent GET /manufacturer/components/:id
func (h *ManufacturerHandler) GetComponent(c *gin.Context) {
	comp, err := h.components.GetOwned(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, comp)
}

// RegenerateQR POST /manufacturer/components/:id/qr
func (h *ManufacturerHandler) RegenerateQR(c *gin.Context) {
	comp, err := h.components.RegenerateQR(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, comp)
}

// DailyCounts GET /manufacturer/components/daily-counts?date=YYYY-MM-DD
func (h *ManufacturerHandler) DailyCounts(c *gin.Context) {
	counts, err := h.components.DailyCounts(c.Request.Context(), GetActor(c), c.Query("date"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, counts)
}

// Export GET /manufacturer/components/export
func (h *ManufacturerHandler) Export(c *gin.Context) {
	f, filename, err := h.components.Export(c.Request.Context(), GetActor(c))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("write excel failed", zap.Error(err))
	}
}
