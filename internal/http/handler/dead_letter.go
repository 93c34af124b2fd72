package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/pulse/internal/http/dto"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/query"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

type DeadLetterLister interface {
	List(ctx context.Context, limit int32) ([]model.DeadLetter, error)
}

type DeadLetterHandler struct {
	deadLetters DeadLetterLister
}

func NewDeadLetterHandler(deadLetters DeadLetterLister) *DeadLetterHandler {
	return &DeadLetterHandler{deadLetters: deadLetters}
}

func (h *DeadLetterHandler) List(c *gin.Context) {
	limit, err := intQuery(c, "limit", defaultDeadLetterLimit)
	if err == nil && (limit < 1 || limit > maxDeadLetterLimit) {
		err = &query.ValidationError{Field: "limit", Message: "must be between 1 and 500"}
	}
	if err != nil {
		respondError(c, err, "failed to list dead letters")
		return
	}

	dls, err := h.deadLetters.List(c.Request.Context(), int32(limit))
	if err != nil {
		respondError(c, err, "failed to list dead letters")
		return
	}

	c.JSON(http.StatusOK, dto.ToDeadLetterListResponse(dls))
}
