package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"inventra/internal/core/apperror"
	"inventra/internal/core/id"
	"inventra/internal/domain"
	"inventra/internal/domain/movement"
)

// MovementHandler serves the stock movement endpoints.
type MovementHandler struct {
	svc *movement.Service
}

// NewMovementHandler creates a movement handler.
func NewMovementHandler(svc *movement.Service) *MovementHandler {
	return &MovementHandler{svc: svc}
}

// Register mounts the movement routes on the group.
func (h *MovementHandler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.history)
	rg.GET("/:id", h.getByID)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.delete)
	rg.POST("/:id/restore", h.restore)
	rg.POST("/:id/confirm", h.confirm)
	rg.POST("/:id/cancel", h.cancel)
	rg.POST("/:id/complete", h.complete)

	rg.POST("/stock-in", h.stockIn)
	rg.POST("/stock-out", h.stockOut)
	rg.POST("/transfer", h.transfer)
	rg.POST("/adjust", h.adjust)

	rg.GET("/balance/:materialId", h.balance)
}

type movementRequest struct {
	MaterialID     id.ID            `json:"materialId" binding:"required"`
	Type           movement.Type    `json:"type" binding:"required"`
	Quantity       decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	MovementDate   *time.Time       `json:"movementDate"`
	SourceLocation *string          `json:"sourceLocation"`
	TargetLocation *string          `json:"targetLocation"`
	Reference      *string          `json:"reference"`
	Comment        *string          `json:"comment"`
}

func (h *MovementHandler) create(c *gin.Context) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m := movement.New(req.MaterialID, req.Type, req.Quantity)
	m.UnitPrice = req.UnitPrice
	m.SourceLocation = req.SourceLocation
	m.TargetLocation = req.TargetLocation
	m.Reference = req.Reference
	m.Comment = req.Comment
	if req.MovementDate != nil {
		m.MovementDate = *req.MovementDate
	}

	if err := h.svc.AddMovement(c.Request.Context(), m); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

type simpleMovementRequest struct {
	MaterialID id.ID            `json:"materialId" binding:"required"`
	Quantity   decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice  *decimal.Decimal `json:"unitPrice"`
}

func (h *MovementHandler) stockIn(c *gin.Context) {
	var req simpleMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m, err := h.svc.StockIn(c.Request.Context(), req.MaterialID, req.Quantity, req.UnitPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *MovementHandler) stockOut(c *gin.Context) {
	var req simpleMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m, err := h.svc.StockOut(c.Request.Context(), req.MaterialID, req.Quantity, req.UnitPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

type transferRequest struct {
	MaterialID id.ID           `json:"materialId" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Source     string          `json:"source" binding:"required"`
	Target     string          `json:"target" binding:"required"`
}

func (h *MovementHandler) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m, err := h.svc.Transfer(c.Request.Context(), req.MaterialID, req.Quantity, req.Source, req.Target)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

type adjustRequest struct {
	MaterialID id.ID           `json:"materialId" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Comment    string          `json:"comment"`
}

func (h *MovementHandler) adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m, err := h.svc.Adjust(c.Request.Context(), req.MaterialID, req.Quantity, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *MovementHandler) getByID(c *gin.Context) {
	movementID, ok := pathID(c, "id")
	if !ok {
		return
	}

	m, err := h.svc.GetByID(c.Request.Context(), movementID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (h *MovementHandler) history(c *gin.Context) {
	f := movement.HistoryFilter{
		IncludeDeleted: queryBool(c, "includeDeleted"),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "pageSize", domain.DefaultPageSize),
	}

	if raw := c.Query("materialId"); raw != "" {
		materialID, err := id.Parse(raw)
		if err != nil {
			respondError(c, apperror.NewValidation("invalid materialId").WithDetail("materialId", raw))
			return
		}
		f.MaterialID = &materialID
	}
	if raw := c.Query("type"); raw != "" {
		t := movement.Type(raw)
		f.Type = &t
	}
	if raw := c.Query("status"); raw != "" {
		s := movement.Status(raw)
		f.Status = &s
	}
	if raw := c.Query("location"); raw != "" {
		f.Location = &raw
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, apperror.NewValidation("invalid from date").WithDetail("from", raw))
			return
		}
		f.FromDate = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, apperror.NewValidation("invalid to date").WithDetail("to", raw))
			return
		}
		f.ToDate = &to
	}

	page, err := h.svc.History(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *MovementHandler) update(c *gin.Context) {
	movementID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.NewValidation(err.Error()))
		return
	}

	m := movement.New(req.MaterialID, req.Type, req.Quantity)
	m.ID = movementID
	m.UnitPrice = req.UnitPrice
	m.SourceLocation = req.SourceLocation
	m.TargetLocation = req.TargetLocation
	m.Reference = req.Reference
	m.Comment = req.Comment
	if req.MovementDate != nil {
		m.MovementDate = *req.MovementDate
	}

	if err := h.svc.Update(c.Request.Context(), m); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

func (h *MovementHandler) confirm(c *gin.Context) {
	h.doTransition(c, h.svc.Confirm)
}

func (h *MovementHandler) cancel(c *gin.Context) {
	h.doTransition(c, h.svc.Cancel)
}

func (h *MovementHandler) complete(c *gin.Context) {
	h.doTransition(c, h.svc.Complete)
}

func (h *MovementHandler) doTransition(c *gin.Context, fn func(ctx context.Context, movementID id.ID) error) {
	movementID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), movementID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *MovementHandler) delete(c *gin.Context) {
	movementID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), movementID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *MovementHandler) restore(c *gin.Context) {
	movementID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Restore(c.Request.Context(), movementID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *MovementHandler) balance(c *gin.Context) {
	materialID, ok := pathID(c, "materialId")
	if !ok {
		return
	}

	balance, err := h.svc.CurrentBalance(c.Request.Context(), materialID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"materialId": materialID,
		"balance":    balance,
	})
}
