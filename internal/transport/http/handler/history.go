package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fruitfresh/internal/app"
	"fruitfresh/internal/model"
	"fruitfresh/internal/transport/http/response"
)

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]model.PredictionRecord, error)
	Stats(ctx context.Context) (*app.HistoryStats, error)
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) Recent(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"predictions": records})
}

func (h *HistoryHandler) Stats(c *gin.Context) {
	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *HistoryHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, app.ErrHistoryDisabled) {
		response.Error(c, http.StatusServiceUnavailable, response.CodeHistoryDisabled, "prediction history is disabled")
		return
	}
	_ = c.Error(err)
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load prediction history failed")
}
