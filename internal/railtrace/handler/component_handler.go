package handler

import (
	"io"
	"net/http"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/bitfantasy/railtrace/internal/railtrace/lifecycle"
	"github.com/bitfantasy/railtrace/internal/railtrace/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxScanImage bounds uploaded scan photos.
const maxScanImage = 8 << 20

// ComponentHandler 部件处理器
type ComponentHandler struct {
	svc    *service.ComponentService
	logger *zap.Logger
}

func NewComponentHandler(svc *service.ComponentService, logger *zap.Logger) *ComponentHandler {
	return &ComponentHandler{svc: svc, logger: logger}
}

// List GET /components
func (h *ComponentHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := entity.ComponentFilter{
		Status:   lifecycle.Status(c.Query("status")),
		QCStatus: lifecycle.QCStatus(c.Query("qc_status")),
	}
	items, total, err := h.svc.List(c.Request.Context(), GetActor(c), filter, page, pageSize)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: newPagination(page, pageSize, total)})
}

// Get GET /components/:id
func (h *ComponentHandler) Get(c *gin.Context) {
	comp, err := h.svc.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, comp)
}

// QRImage GET /components/:id/qr
func (h *ComponentHandler) QRImage(c *gin.Context) {
	comp, png, err := h.svc.QRImage(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename=\""+comp.ComponentID+".png\"")
	c.Data(http.StatusOK, "image/png", png)
}

type scanRequest struct {
	Payload string `json:"payload"`
}

// Scan POST /components/scan, JSON {"payload"} or multipart "image"
func (h *ComponentHandler) Scan(c *gin.Context) {
	var (
		payload string
		image   []byte
	)
	if file, _, err := c.Request.FormFile("image"); err == nil {
		defer file.Close()
		image, err = io.ReadAll(io.LimitReader(file, maxScanImage))
		if err != nil {
			BadRequest(c, "failed to read image")
			return
		}
	} else {
		var req scanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request body")
			return
		}
		payload = req.Payload
	}

	comp, err := h.svc.ResolveScan(c.Request.Context(), GetActor(c), payload, image)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, comp)
}

// Install POST /components/:id/install
func (h *ComponentHandler) Install(c *gin.Context) {
	var req service.InstallInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}
	comp, err := h.svc.Install(c.Request.Context(), GetActor(c), c.Param("id"), req)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, comp)
}

type maintenanceRequest struct {
	Notes string `json:"notes"`
}

// Maintenance POST /components/:id/maintenance
func (h *ComponentHandler) Maintenance(c *gin.Context) {
	var req maintenanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request body")
			return
		}
	}
	comp, err := h.svc.RecordMaintenance(c.Request.Context(), GetActor(c), c.Param("id"), req.Notes)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, comp)
}

// Activity GET /components/:id/activity
func (h *ComponentHandler) Activity(c *gin.Context) {
	items, err := h.svc.Activity(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}
