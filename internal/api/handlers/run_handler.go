package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
	"github.com/andresuchdata/autopo-py/replenishment/internal/seasonal"
)

// RunService starts runs and reports the ones in flight.
type RunService interface {
	StartRun(ctx context.Context, kind domain.RunKind, params pipeline.RunParams) (*domain.RunRecord, error)
	Active() []domain.RunRecord
	LastRun(kind domain.RunKind) (domain.RunRecord, bool)
}

// RunHistory lists archived run records, newest first.
type RunHistory interface {
	ListRuns(ctx context.Context, kind domain.RunKind, limit int) ([]domain.RunRecord, error)
}

type RunHandler struct {
	runs    RunService
	history RunHistory
	events  seasonal.EventSource
	cache   ports.CachePort
}

func NewRunHandler(runs RunService, history RunHistory, events seasonal.EventSource, cache ports.CachePort) *RunHandler {
	return &RunHandler{runs: runs, history: history, events: events, cache: cache}
}

// seasonalRequest either names a calendar event or describes one inline.
type seasonalRequest struct {
	Name            string             `json:"name"`
	Type            string             `json:"type"`
	Date            string             `json:"date"`
	Multiplier      *float64           `json:"multiplier"`
	LeadDays        int                `json:"lead_days"`
	CategoryUplifts map[string]float64 `json:"category_uplifts"`
}

func (r seasonalRequest) inline() bool {
	return r.Type != "" || r.Date != "" || r.LeadDays != 0
}

func (r seasonalRequest) toEvent() (domain.SeasonalEvent, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(r.Date))
	if err != nil {
		return domain.SeasonalEvent{}, domain.NewInvalidParameter("event.date", r.Date, "expected YYYY-MM-DD")
	}
	multiplier := 1.0
	if r.Multiplier != nil {
		multiplier = *r.Multiplier
	}
	return domain.SeasonalEvent{
		Name:            r.Name,
		Type:            r.Type,
		Date:            date,
		Multiplier:      multiplier,
		LeadDays:        r.LeadDays,
		CategoryUplifts: r.CategoryUplifts,
	}, nil
}

// StartRun runs synchronously and returns the finished record.
func (h *RunHandler) StartRun(c *gin.Context) {
	kind, ok := domain.ParseRunKind(c.Param("kind"))
	if !ok {
		errorResponse(c, http.StatusBadRequest, "unknown run kind: "+c.Param("kind"))
		return
	}

	var params pipeline.RunParams
	if kind == domain.RunKindSeasonalPrep {
		event, err := h.resolveEvent(c)
		if err != nil {
			h.handleStartError(c, err)
			return
		}
		params.Event = &event
	}

	record, err := h.runs.StartRun(c.Request.Context(), kind, params)
	if err != nil {
		h.handleStartError(c, err)
		return
	}

	status := http.StatusOK
	if record.Status == domain.RunStatusFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, record)
}

func (h *RunHandler) resolveEvent(c *gin.Context) (domain.SeasonalEvent, error) {
	var req seasonalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return domain.SeasonalEvent{}, domain.NewInvalidParameter("body", err.Error(), "malformed JSON")
	}
	if req.inline() {
		return req.toEvent()
	}
	if strings.TrimSpace(req.Name) == "" {
		return domain.SeasonalEvent{}, domain.NewInvalidParameter("event", "", "name or inline event required")
	}
	if h.events == nil {
		return domain.SeasonalEvent{}, domain.NewInvalidParameter("event", req.Name, "no event calendar configured")
	}
	return seasonal.FindEvent(c.Request.Context(), h.events, req.Name)
}

func (h *RunHandler) handleStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRunAlreadyActive):
		errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidParameter):
		errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPortUnavailable):
		errorResponse(c, http.StatusServiceUnavailable, err.Error())
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *RunHandler) GetActive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.runs.Active()})
}

// ListRuns reads the run archive when one is configured and falls back to
// the last in-memory record per kind.
func (h *RunHandler) ListRuns(c *gin.Context) {
	var kind domain.RunKind
	if raw := strings.TrimSpace(c.Query("kind")); raw != "" {
		parsed, ok := domain.ParseRunKind(raw)
		if !ok {
			errorResponse(c, http.StatusBadRequest, "unknown run kind: "+raw)
			return
		}
		kind = parsed
	}

	limit := 20
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	if h.history != nil {
		runs, err := h.history.ListRuns(c.Request.Context(), kind, limit)
		if err != nil {
			errorResponse(c, http.StatusInternalServerError, "failed to list runs: "+err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": runs})
		return
	}

	runs := make([]domain.RunRecord, 0, 3)
	for _, k := range domain.RunKinds() {
		if kind != "" && k != kind {
			continue
		}
		if r, ok := h.runs.LastRun(k); ok {
			runs = append(runs, r)
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *RunHandler) GetLatestForecast(c *gin.Context) {
	if h.cache == nil {
		errorResponse(c, http.StatusNotFound, "no forecast available")
		return
	}
	report, ok, err := pipeline.LoadForecastReport(c.Request.Context(), h.cache)
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, "failed to read forecast: "+err.Error())
		return
	}
	if !ok {
		errorResponse(c, http.StatusNotFound, "no forecast available")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *RunHandler) ListEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusOK, gin.H{"data": []domain.SeasonalEvent{}})
		return
	}
	events, err := h.events.Events(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusServiceUnavailable, "failed to load events: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	event := log.Warn()
	if statusCode >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Int("status", statusCode).Str("path", c.Request.URL.Path).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
}
