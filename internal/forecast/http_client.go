package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"golang.org/x/oauth2/clientcredentials"
)

const predictPath = "/v1/predict"

// HTTPClient calls the external forecasting service.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewHTTPClient builds a client. When a token URL and client id are
// configured, requests carry an OAuth2 client-credentials token.
func NewHTTPClient(ctx context.Context, cfg config.ForecastConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("forecast base url must be provided")
	}

	client := &http.Client{}
	if cfg.TokenURL != "" && cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       []string{"forecast:predict"},
		}
		client = cc.Client(ctx)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout(),
		http:    client,
	}, nil
}

type historyPoint struct {
	SKU       string  `json:"sku"`
	Date      string  `json:"date"`
	UnitsSold float64 `json:"units_sold"`
}

type predictRequest struct {
	History     []historyPoint `json:"history"`
	Horizons    []int          `json:"horizons"`
	Seasonality []string       `json:"seasonality"`
}

type predictResult struct {
	HorizonDays    int     `json:"horizon_days"`
	ExpectedDemand float64 `json:"expected_demand"`
	DemandStdDev   float64 `json:"demand_std_dev"`
}

type predictResponse struct {
	Forecasts map[string][]predictResult `json:"forecasts"`
}

func (c *HTTPClient) Predict(ctx context.Context, history []domain.SalesHistoryPoint, horizons []int, seasonality []string) (map[domain.SKU][]domain.ForecastResult, error) {
	body := predictRequest{
		History:     make([]historyPoint, 0, len(history)),
		Horizons:    horizons,
		Seasonality: seasonality,
	}
	for _, p := range history {
		body.History = append(body.History, historyPoint{
			SKU:       string(p.SKU),
			Date:      p.Date.Format("2006-01-02"),
			UnitsSold: p.UnitsSold,
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.ForecastTimeoutError{Timeout: c.timeout, Err: err}
		}
		return nil, &domain.PortUnavailableError{Port: "forecast", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.PortUnavailableError{
			Port: "forecast",
			Err:  fmt.Errorf("predict returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var decoded predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.ForecastTimeoutError{Timeout: c.timeout, Err: err}
		}
		return nil, &domain.PortUnavailableError{Port: "forecast", Err: fmt.Errorf("decode predict response: %w", err)}
	}

	out := make(map[domain.SKU][]domain.ForecastResult, len(decoded.Forecasts))
	for sku, results := range decoded.Forecasts {
		converted := make([]domain.ForecastResult, 0, len(results))
		for _, r := range results {
			converted = append(converted, domain.ForecastResult{
				SKU:            domain.SKU(sku),
				HorizonDays:    r.HorizonDays,
				ExpectedDemand: r.ExpectedDemand,
				DemandStdDev:   r.DemandStdDev,
			})
		}
		out[domain.SKU(sku)] = converted
	}
	return out, nil
}
