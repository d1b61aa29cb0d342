package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/vibelist-backend/internal/http/response"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
	"github.com/yungbote/vibelist-backend/internal/services"
)

type TrendHandler struct {
	log     *logger.Logger
	service services.TrendService
}

func NewTrendHandler(log *logger.Logger, service services.TrendService) *TrendHandler {
	return &TrendHandler{
		log:     log.With("handler", "TrendHandler"),
		service: service,
	}
}

func (h *TrendHandler) Current(c *gin.Context) {
	trends, err := h.service.Current(c.Request.Context())
	if err != nil {
		h.log.Error("Current trends failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trends": trends})
}

func (h *TrendHandler) Top(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondAPIError(c, fmt.Errorf("%w: limit must be a non-negative integer", apierr.ErrInvalidInput))
			return
		}
		limit = n
	}
	trends, err := h.service.Top(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Top trends failed", "error", err, "limit", limit)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trends": trends})
}

type snapshotView struct {
	ID           uuid.UUID `json:"id"`
	Status       string    `json:"status"`
	SnapshotTime time.Time `json:"snapshotTime"`
	Entries      int       `json:"entries"`
	Error        string    `json:"error,omitempty"`
}

func (h *TrendHandler) Rebuild(c *gin.Context) {
	snap, err := h.service.Rebuild(c.Request.Context())
	if err != nil {
		h.log.Error("Trend rebuild failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snapshotView{
		ID:           snap.ID,
		Status:       string(snap.Status),
		SnapshotTime: snap.SnapshotTime,
		Entries:      len(snap.Entries),
	}})
}
