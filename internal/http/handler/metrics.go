package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"basegraph.app/pulse/internal/http/dto"
	"basegraph.app/pulse/internal/model"
	"basegraph.app/pulse/internal/query"
)

// MetricsService is the read side the metrics endpoints are served from.
type MetricsService interface {
	CountEvents(ctx context.Context, offsetMinutes int) (*query.EventCounts, error)
	Timeline(ctx context.Context, hours, intervalMinutes int) (*query.Timeline, error)
	PRAverage(ctx context.Context, repo string) (*query.PRAverage, error)
	ListRepos(ctx context.Context) ([]model.RepoPRSummary, error)
}

type MetricsHandler struct {
	metrics MetricsService
}

func NewMetricsHandler(metrics MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

func (h *MetricsHandler) EventCount(c *gin.Context) {
	ctx := c.Request.Context()

	offset, err := intQuery(c, "offset", query.DefaultCountOffset)
	if err != nil {
		respondError(c, err, "failed to count events")
		return
	}

	counts, err := h.metrics.CountEvents(ctx, offset)
	if err != nil {
		respondError(c, err, "failed to count events")
		return
	}

	c.JSON(http.StatusOK, dto.ToEventCountResponse(counts))
}

func (h *MetricsHandler) Timeline(c *gin.Context) {
	ctx := c.Request.Context()

	hours, err := intQuery(c, "hours", query.DefaultTimelineHours)
	if err != nil {
		respondError(c, err, "failed to build timeline")
		return
	}
	interval, err := intQuery(c, "interval", query.DefaultTimelineInterval)
	if err != nil {
		respondError(c, err, "failed to build timeline")
		return
	}

	timeline, err := h.metrics.Timeline(ctx, hours, interval)
	if err != nil {
		respondError(c, err, "failed to build timeline")
		return
	}

	c.JSON(http.StatusOK, dto.ToTimelineResponse(timeline))
}

// PRAverage answers for one repository, or lists every repository with an average when repo is omitted.
func (h *MetricsHandler) PRAverage(c *gin.Context) {
	ctx := c.Request.Context()

	repo := strings.TrimSpace(c.Query("repo"))
	if repo == "" {
		repos, err := h.metrics.ListRepos(ctx)
		if err != nil {
			respondError(c, err, "failed to list repositories")
			return
		}
		c.JSON(http.StatusOK, dto.ToRepoListResponse(repos))
		return
	}

	avg, err := h.metrics.PRAverage(ctx, repo)
	if err != nil {
		respondError(c, err, "failed to calculate pull request average")
		return
	}

	c.JSON(http.StatusOK, dto.ToPRAverageResponse(avg))
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &query.ValidationError{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

// respondError maps validation failures to 400 and hides everything else behind msg.
func respondError(c *gin.Context, err error, msg string) {
	var ve *query.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: ve.Error(), Field: ve.Field})
		return
	}

	slog.ErrorContext(c.Request.Context(), msg, "error", err)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msg})
}
