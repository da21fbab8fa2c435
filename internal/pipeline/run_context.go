package pipeline

import (
	"errors"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
	"github.com/rs/zerolog"
)

// runContext is the state of one run. It is owned by the goroutine that
// executes the run and never shared across runs.
type runContext struct {
	record  *domain.RunRecord
	log     zerolog.Logger
	clock   ports.Clock
	metrics *Metrics
	sent    map[alertKey]bool
}

type alertKey struct {
	runID    string
	severity domain.Severity
}

// recordError absorbs a stage failure into the run artifacts.
func (rc *runContext) recordError(stage, port string, err error) {
	if port == "" {
		var pu *domain.PortUnavailableError
		if errors.As(err, &pu) {
			port = pu.Port
		}
	}
	rc.record.Artifacts.Errors = append(rc.record.Artifacts.Errors, domain.StageError{
		Stage:   stage,
		Port:    port,
		Message: err.Error(),
		At:      rc.clock.Now(),
	})
	rc.metrics.stageError(rc.record.Kind, stage)
	rc.log.Warn().Err(err).Str("stage", stage).Str("port", port).Msg("stage failed")
}

// stampReports copies the final status and errors onto the kind's report.
func (rc *runContext) stampReports() {
	a := &rc.record.Artifacts
	status := rc.record.Status
	if a.Forecast != nil {
		a.Forecast.Status = status
		a.Forecast.Errors = a.Errors
	}
	if a.Surstock != nil {
		a.Surstock.Status = status
		a.Surstock.Errors = a.Errors
	}
	if a.Seasonal != nil {
		a.Seasonal.Status = status
		a.Seasonal.Errors = a.Errors
	}
}

func unavailable(port string, err error) error {
	var pu *domain.PortUnavailableError
	if errors.As(err, &pu) {
		return err
	}
	return &domain.PortUnavailableError{Port: port, Err: err}
}
