package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
}

func TestHTTPClientPredict(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, predictPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"forecasts":{"A":[{"horizon_days":7,"expected_demand":14,"demand_std_dev":3}]}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(context.Background(), config.ForecastConfig{BaseURL: srv.URL + "/", TimeoutSeconds: 5})
	require.NoError(t, err)

	out, err := client.Predict(context.Background(), []domain.SalesHistoryPoint{
		{SKU: "A", Date: day(1), UnitsSold: 2},
	}, []int{7, 14}, []string{"weekly"})
	require.NoError(t, err)

	require.Len(t, got.History, 1)
	assert.Equal(t, "2026-10-01", got.History[0].Date)
	assert.Equal(t, []int{7, 14}, got.Horizons)
	assert.Equal(t, []string{"weekly"}, got.Seasonality)

	require.Len(t, out["A"], 1)
	assert.Equal(t, domain.ForecastResult{SKU: "A", HorizonDays: 7, ExpectedDemand: 14, DemandStdDev: 3}, out["A"][0])
}

func TestHTTPClientErrors(t *testing.T) {
	t.Run("non 2xx is port unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model offline", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client, err := NewHTTPClient(context.Background(), config.ForecastConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = client.Predict(context.Background(), nil, []int{7}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrPortUnavailable))
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("deadline is a forecast timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		client, err := NewHTTPClient(context.Background(), config.ForecastConfig{BaseURL: srv.URL, TimeoutSeconds: 1})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = client.Predict(ctx, nil, []int{7}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrForecastTimeout))
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := NewHTTPClient(context.Background(), config.ForecastConfig{})
		assert.Error(t, err)
	})
}

func TestLocalPredict(t *testing.T) {
	history := []domain.SalesHistoryPoint{
		{SKU: "A", Date: day(1), UnitsSold: 2},
		{SKU: "A", Date: day(2), UnitsSold: 4},
		{SKU: "A", Date: day(3), UnitsSold: 2},
		{SKU: "A", Date: day(4), UnitsSold: 4},
		{SKU: "B", Date: day(4), UnitsSold: 4},
	}

	out, err := NewLocal(0, domain.GranularityDaily).Predict(context.Background(), history, []int{7, 28}, nil)
	require.NoError(t, err)

	a7, ok := domain.FindHorizon(out["A"], 7)
	require.True(t, ok)
	assert.InDelta(t, 21, a7.ExpectedDemand, 1e-9)
	assert.InDelta(t, 1*2.6457513, a7.DemandStdDev, 1e-6)

	a28, _ := domain.FindHorizon(out["A"], 28)
	assert.InDelta(t, 84, a28.ExpectedDemand, 1e-9)

	// B sold only on the last of four observed days.
	b7, _ := domain.FindHorizon(out["B"], 7)
	assert.InDelta(t, 7, b7.ExpectedDemand, 1e-9)
	assert.Greater(t, b7.DemandStdDev, 0.0)
}

func TestLocalWindowAndWeekly(t *testing.T) {
	history := []domain.SalesHistoryPoint{
		{SKU: "A", Date: day(1), UnitsSold: 100},
		{SKU: "A", Date: day(8), UnitsSold: 14},
		{SKU: "A", Date: day(15), UnitsSold: 14},
	}

	out, err := NewLocal(2, domain.GranularityWeekly).Predict(context.Background(), history, []int{7}, nil)
	require.NoError(t, err)

	a7, _ := domain.FindHorizon(out["A"], 7)
	assert.InDelta(t, 14, a7.ExpectedDemand, 1e-9)
	assert.InDelta(t, 0, a7.DemandStdDev, 1e-9)
}

func TestLocalCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal(7, domain.GranularityDaily).Predict(ctx, nil, []int{7}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
