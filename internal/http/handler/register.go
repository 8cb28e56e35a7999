package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sheikh-saqib/till-ledger/internal/ledger"
	"github.com/sheikh-saqib/till-ledger/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActorHeader carries the authenticated user id, set by the auth proxy in
// front of this service.
const ActorHeader = "X-Actor-ID"

type operation func(ctx context.Context, registerID string, amount decimal.Decimal, description, actor string) (ledger.Result, error)

// RegisterHandler exposes the register ledger over HTTP.
type RegisterHandler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewRegisterHandler(l *ledger.Ledger, logger *zap.Logger) *RegisterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegisterHandler{ledger: l, logger: logger}
}

// MovementRequest is the body of every cash movement endpoint.
type MovementRequest struct {
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
	Description string           `json:"description" binding:"max=255"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type historyLine struct {
	models.LedgerEntry
	ActionLabel string `json:"action_label"`
}

// RegisterRoutes mounts the register endpoints on r.
func (h *RegisterHandler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/registers/:id")
	g.POST("/open", h.movement(h.ledger.Open))
	g.POST("/close", h.movement(h.ledger.Close))
	g.POST("/cash-in", h.movement(h.ledger.CashIn))
	g.POST("/cash-out", h.movement(h.ledger.CashOut))
	g.POST("/sale-delete", h.movement(h.ledger.SaleDelete))
	g.GET("", h.details)
	g.GET("/history", h.history)
}

func (h *RegisterHandler) movement(op operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetHeader(ActorHeader)
		if actor == "" {
			c.JSON(http.StatusUnauthorized, errorResponse{Status: "error", Code: "UNAUTHORIZED", Message: "missing " + ActorHeader})
			return
		}

		var req MovementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Status: "error", Code: "INVALID_INPUT", Message: err.Error()})
			return
		}

		res, err := op(c.Request.Context(), c.Param("id"), *req.Amount, req.Description, actor)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *RegisterHandler) details(c *gin.Context) {
	details, err := h.ledger.GetRegisterDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *RegisterHandler) history(c *gin.Context) {
	entries, err := h.ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	lines := make([]historyLine, len(entries))
	for i, e := range entries {
		lines[i] = historyLine{LedgerEntry: e, ActionLabel: models.ActionLabel(e.Action)}
	}
	c.JSON(http.StatusOK, lines)
}

func (h *RegisterHandler) fail(c *gin.Context, err error) {
	var ledgerErr *ledger.Error
	if !errors.As(err, &ledgerErr) {
		h.logger.Error("register request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Status: "error", Code: "INTERNAL", Message: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrRegisterNotFound):
		status = http.StatusNotFound
	default:
		h.logger.Error("register data integrity fault", zap.String("register_id", c.Param("id")), zap.Error(err))
	}
	c.JSON(status, errorResponse{Status: "error", Code: ledgerErr.Code, Message: ledgerErr.Message})
}
