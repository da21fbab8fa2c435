package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/replenishment/internal/cache"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
)

type fakeRuns struct {
	kind   domain.RunKind
	params pipeline.RunParams
	record *domain.RunRecord
	err    error
	last   map[domain.RunKind]domain.RunRecord
}

func (f *fakeRuns) StartRun(_ context.Context, kind domain.RunKind, params pipeline.RunParams) (*domain.RunRecord, error) {
	f.kind = kind
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	if f.record != nil {
		return f.record, nil
	}
	return &domain.RunRecord{RunID: "run-1", Kind: kind, Status: domain.RunStatusCompleted}, nil
}

func (f *fakeRuns) Active() []domain.RunRecord {
	return []domain.RunRecord{{RunID: "run-9", Kind: domain.RunKindDailyForecast, Status: domain.RunStatusRunning}}
}

func (f *fakeRuns) LastRun(kind domain.RunKind) (domain.RunRecord, bool) {
	r, ok := f.last[kind]
	return r, ok
}

type staticEvents []domain.SeasonalEvent

func (s staticEvents) Events(context.Context) ([]domain.SeasonalEvent, error) { return s, nil }

type fakeHistory struct {
	kind  domain.RunKind
	limit int
}

func (f *fakeHistory) ListRuns(_ context.Context, kind domain.RunKind, limit int) ([]domain.RunRecord, error) {
	f.kind, f.limit = kind, limit
	return []domain.RunRecord{{RunID: "archived", Kind: kind}}, nil
}

func newTestRouter(h *RunHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/runs/:kind", h.StartRun)
	r.GET("/runs/active", h.GetActive)
	r.GET("/runs", h.ListRuns)
	r.GET("/forecast/latest", h.GetLatestForecast)
	r.GET("/events", h.ListEvents)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var blackFriday = domain.SeasonalEvent{
	Name:       "Black Friday 2026",
	Type:       "black_friday",
	Date:       time.Date(2026, 11, 27, 0, 0, 0, 0, time.UTC),
	Multiplier: 1.5,
	LeadDays:   21,
}

func TestStartRun_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		runs       *fakeRuns
		path       string
		wantStatus int
		wantKind   domain.RunKind
	}{
		{name: "completed daily", runs: &fakeRuns{}, path: "/runs/daily", wantStatus: http.StatusOK, wantKind: domain.RunKindDailyForecast},
		{name: "degraded is still ok", runs: &fakeRuns{record: &domain.RunRecord{Status: domain.RunStatusDegraded}}, path: "/runs/surstock", wantStatus: http.StatusOK, wantKind: domain.RunKindWeeklySurstock},
		{name: "failed run", runs: &fakeRuns{record: &domain.RunRecord{Status: domain.RunStatusFailed}}, path: "/runs/daily", wantStatus: http.StatusBadGateway, wantKind: domain.RunKindDailyForecast},
		{name: "already active", runs: &fakeRuns{err: &domain.RunAlreadyActiveError{Kind: domain.RunKindDailyForecast}}, path: "/runs/daily", wantStatus: http.StatusConflict, wantKind: domain.RunKindDailyForecast},
		{name: "lock backend down", runs: &fakeRuns{err: &domain.PortUnavailableError{Port: "lock", Err: errors.New("redis")}}, path: "/runs/weekly", wantStatus: http.StatusServiceUnavailable, wantKind: domain.RunKindWeeklySurstock},
		{name: "unknown kind", runs: &fakeRuns{}, path: "/runs/monthly", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(NewRunHandler(tt.runs, nil, nil, nil))
			w := do(r, http.MethodPost, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantKind, tt.runs.kind)
		})
	}
}

func TestStartRun_SeasonalInline(t *testing.T) {
	runs := &fakeRuns{}
	r := newTestRouter(NewRunHandler(runs, nil, nil, nil))

	w := do(r, http.MethodPost, "/runs/seasonal", `{"name":"Summer","type":"summer_sales","date":"2026-07-01","lead_days":30,"category_uplifts":{"garden":0.4}}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, runs.params.Event)
	ev := runs.params.Event
	assert.Equal(t, "Summer", ev.Name)
	assert.Equal(t, 1.0, ev.Multiplier)
	assert.Equal(t, 30, ev.LeadDays)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), ev.Date)
	assert.Equal(t, map[string]float64{"garden": 0.4}, ev.CategoryUplifts)
}

func TestStartRun_SeasonalFromCalendar(t *testing.T) {
	runs := &fakeRuns{}
	r := newTestRouter(NewRunHandler(runs, nil, staticEvents{blackFriday}, nil))

	w := do(r, http.MethodPost, "/runs/seasonal", `{"name":"black friday 2026"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, runs.params.Event)
	assert.Equal(t, blackFriday, *runs.params.Event)

	runs.kind = ""
	w = do(r, http.MethodPost, "/runs/seasonal", `{"name":"Cyber Monday"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, runs.kind)
}

func TestStartRun_SeasonalBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad date", body: `{"name":"X","type":"black_friday","date":"27/11/2026","lead_days":3}`},
		{name: "no name and no calendar", body: `{}`},
		{name: "malformed json", body: `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRuns{}
			r := newTestRouter(NewRunHandler(runs, nil, nil, nil))
			w := do(r, http.MethodPost, "/runs/seasonal", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, runs.kind)
		})
	}
}

func TestGetActive(t *testing.T) {
	r := newTestRouter(NewRunHandler(&fakeRuns{}, nil, nil, nil))
	w := do(r, http.MethodGet, "/runs/active", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []domain.RunRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "run-9", body.Data[0].RunID)
}

func TestListRuns(t *testing.T) {
	t.Run("from history", func(t *testing.T) {
		history := &fakeHistory{}
		r := newTestRouter(NewRunHandler(&fakeRuns{}, history, nil, nil))
		w := do(r, http.MethodGet, "/runs?kind=surstock&limit=5", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.RunKindWeeklySurstock, history.kind)
		assert.Equal(t, 5, history.limit)
		assert.Contains(t, w.Body.String(), "archived")
	})

	t.Run("from last runs", func(t *testing.T) {
		runs := &fakeRuns{last: map[domain.RunKind]domain.RunRecord{
			domain.RunKindDailyForecast: {RunID: "d1", Kind: domain.RunKindDailyForecast},
		}}
		r := newTestRouter(NewRunHandler(runs, nil, nil, nil))
		w := do(r, http.MethodGet, "/runs", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"run_id":"d1"`)
	})

	t.Run("bad kind", func(t *testing.T) {
		r := newTestRouter(NewRunHandler(&fakeRuns{}, nil, nil, nil))
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/runs?kind=hourly", "").Code)
	})
}

func TestGetLatestForecast(t *testing.T) {
	store := cache.NewMemoryCache(ports.SystemClock{})
	r := newTestRouter(NewRunHandler(&fakeRuns{}, nil, nil, store))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/forecast/latest", "").Code)

	report := domain.ForecastReport{RunID: "run-1", Status: domain.RunStatusCompleted, LeadTime: 4}
	raw, err := json.Marshal(report)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), pipeline.ForecastLatestKey, raw, time.Hour))

	w := do(r, http.MethodGet, "/forecast/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.ForecastReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
}

func TestListEvents(t *testing.T) {
	r := newTestRouter(NewRunHandler(&fakeRuns{}, nil, staticEvents{blackFriday}, nil))
	w := do(r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Black Friday 2026")

	r = newTestRouter(NewRunHandler(&fakeRuns{}, nil, nil, nil))
	w = do(r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}
