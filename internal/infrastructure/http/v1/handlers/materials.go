package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"inventra/internal/core/apperror"
	"inventra/internal/domain"
	"inventra/internal/domain/material"
)

// MaterialHandler serves the material catalog endpoints.
type MaterialHandler struct {
	svc *material.Service
}

// NewMaterialHandler creates a material handler.
func NewMaterialHandler(svc *material.Service) *MaterialHandler {
	return &MaterialHandler{svc: svc}
}

// Register mounts the material routes on the group.
func (h *MaterialHandler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/search", h.search)
	rg.GET("/:id", h.getByID)
	rg.GET("/code/:code", h.getByCode)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.delete)
	rg.POST("/:id/restore", h.restore)
}

type materialRequest struct {
	Code          string           `json:"code" binding:"required"`
	Name          string           `json:"name" binding:"required"`
	Unit          string           `json:"unit" binding:"required"`
	Barcode       *string          `json:"barcode"`
	UnitPrice     *decimal.Decimal `json:"unitPrice"`
	MinStockLevel *decimal.Decimal `json:"minStockLevel"`
	Description   *string          `json:"description"`
}

func (h *MaterialHandler) create(c *gin.Context) {
	var req materialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m := material.New(req.Code, req.Name, req.Unit)
	m.Barcode = req.Barcode
	m.UnitPrice = req.UnitPrice
	m.MinStockLevel = req.MinStockLevel
	m.Description = req.Description

	if err := h.svc.Create(c.Request.Context(), m); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *MaterialHandler) getByID(c *gin.Context) {
	materialID, ok := pathID(c, "id")
	if !ok {
		return
	}

	m, err := h.svc.GetByID(c.Request.Context(), materialID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (h *MaterialHandler) getByCode(c *gin.Context) {
	m, err := h.svc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (h *MaterialHandler) list(c *gin.Context) {
	f := domain.DefaultListFilter()
	f.Search = c.Query("search")
	f.SearchFields = material.SearchFields
	f.IncludeDeleted = queryBool(c, "includeDeleted")
	f.DeletedOnly = queryBool(c, "deletedOnly")
	f.OrderBy = c.Query("orderBy")
	f.Page = queryInt(c, "page", 1)
	f.PageSize = queryInt(c, "pageSize", domain.DefaultPageSize)

	page, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *MaterialHandler) search(c *gin.Context) {
	items, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *MaterialHandler) update(c *gin.Context) {
	materialID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req materialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m, err := h.svc.GetByID(c.Request.Context(), materialID)
	if err != nil {
		respondError(c, err)
		return
	}

	m.Code = req.Code
	m.Name = req.Name
	m.Unit = req.Unit
	m.Barcode = req.Barcode
	m.UnitPrice = req.UnitPrice
	m.MinStockLevel = req.MinStockLevel
	m.Description = req.Description

	if err := h.svc.Update(c.Request.Context(), m); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (h *MaterialHandler) delete(c *gin.Context) {
	materialID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), materialID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *MaterialHandler) restore(c *gin.Context) {
	materialID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Restore(c.Request.Context(), materialID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
