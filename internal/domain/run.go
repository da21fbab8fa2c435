package domain

import (
	"strings"
	"time"
)

// RunKind is one of the three independent pipelines.
type RunKind string

const (
	RunKindDailyForecast  RunKind = "DAILY_FORECAST"
	RunKindWeeklySurstock RunKind = "WEEKLY_SURSTOCK"
	RunKindSeasonalPrep   RunKind = "SEASONAL_PREP"
)

// RunKinds lists every kind, each with its own lock.
func RunKinds() []RunKind {
	return []RunKind{RunKindDailyForecast, RunKindWeeklySurstock, RunKindSeasonalPrep}
}

// ParseRunKind accepts the canonical name or a short alias (daily, surstock, seasonal).
func ParseRunKind(raw string) (RunKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "daily_forecast", "daily":
		return RunKindDailyForecast, true
	case "weekly_surstock", "surstock", "weekly":
		return RunKindWeeklySurstock, true
	case "seasonal_prep", "seasonal":
		return RunKindSeasonalPrep, true
	}
	return "", false
}

// RunStatus represents the current state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusDegraded  RunStatus = "DEGRADED"
)

// Finished reports whether the run reached a terminal status.
func (s RunStatus) Finished() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusDegraded
}

// Trustworthy is false for FAILED runs, whose numbers must not be used.
func (s RunStatus) Trustworthy() bool {
	return s == RunStatusCompleted || s == RunStatusDegraded
}

// StageError records a failure absorbed by the run.
type StageError struct {
	Stage   string    `json:"stage"`
	Port    string    `json:"port,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// RunArtifacts holds what a run produced, including absorbed errors.
type RunArtifacts struct {
	Errors   []StageError    `json:"errors,omitempty"`
	Forecast *ForecastReport `json:"forecast,omitempty"`
	Surstock *SurstockReport `json:"surstock,omitempty"`
	Seasonal *SeasonalReport `json:"seasonal,omitempty"`
}

// RunRecord tracks a single execution of a run kind. It is mutated only by
// the run coordinator.
type RunRecord struct {
	RunID      string       `json:"run_id"`
	Kind       RunKind      `json:"kind"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Status     RunStatus    `json:"status"`
	Artifacts  RunArtifacts `json:"artifacts"`
}

// Duration returns the elapsed time of a finished run, zero otherwise.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
