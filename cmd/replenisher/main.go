package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-py/replenishment/internal/api"
	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline"
	"github.com/andresuchdata/autopo-py/replenishment/internal/seasonal"
	"github.com/andresuchdata/autopo-py/replenishment/internal/storage"
	"github.com/andresuchdata/autopo-py/replenishment/pkg/logger"
)

func setupLogging(cfg *config.Config) {
	if cfg.Server.Mode != "debug" {
		logger.UseJSON()
	}
	logger.SetLevel(cfg.Server.LogLevel)
	log.Logger = logger.Log
}

func main() {
	app := &cli.App{
		Name:  "replenisher",
		Usage: "Forecast-driven safety stock, surstock liquidation and seasonal pre-orders",
		Before: func(c *cli.Context) error {
			setupLogging(config.Load())
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the daily/weekly schedules",
				Action: serve,
			},
			{
				Name:   "daily",
				Usage:  "Run the daily forecast once",
				Action: runOnce(domain.RunKindDailyForecast),
			},
			{
				Name:   "surstock",
				Usage:  "Run the weekly surstock detection once",
				Action: runOnce(domain.RunKindWeeklySurstock),
			},
			{
				Name:  "seasonal",
				Usage: "Prepare pre-orders for a seasonal event",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "event", Usage: "Event name from the calendar, or the name of an inline event"},
					&cli.StringFlag{Name: "type", Usage: "Event type used to resolve category uplifts"},
					&cli.StringFlag{Name: "date", Usage: "Event date (YYYY-MM-DD)"},
					&cli.Float64Flag{Name: "multiplier", Usage: "Base multiplier applied to the uplifts", Value: 1},
					&cli.IntFlag{Name: "lead-days", Usage: "Days before the event the stock must arrive"},
				},
				Action: runSeasonal,
			},
			{
				Name:   "events",
				Usage:  "List the seasonal events of the configured calendar",
				Action: listEvents,
			},
			{
				Name:  "archived",
				Usage: "List run records archived in object storage",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Usage: "Restrict to one run kind (daily, surstock, seasonal)"},
				},
				Action: listArchived,
			},
			{
				Name:   "migrate",
				Usage:  "Create the replenishment tables",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("replenisher failed")
	}
}

func serve(c *cli.Context) error {
	cfg := config.Load()
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comp, err := buildComponents(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer comp.Close()

	var scheduler *pipeline.CronScheduler
	if cfg.Schedule.Enabled {
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			return fmt.Errorf("schedule timezone: %w", err)
		}
		scheduler = pipeline.NewCronScheduler(loc)
		if err := comp.coordinator.RegisterSchedules(scheduler, cfg.Schedule.Daily, cfg.Schedule.Weekly); err != nil {
			return fmt.Errorf("register schedules: %w", err)
		}
		scheduler.Start()
	}

	router := api.NewRouter(&api.Services{
		Runs:    comp.coordinator,
		History: comp.runs,
		Events:  comp.events,
		Cache:   comp.cache,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("scheduler did not stop in time")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info().Msg("Server exiting")
	return nil
}

func runOnce(kind domain.RunKind) cli.ActionFunc {
	return func(c *cli.Context) error {
		comp, err := buildComponents(c.Context, config.Load(), false)
		if err != nil {
			return err
		}
		defer comp.Close()

		record, err := comp.coordinator.StartRun(c.Context, kind, pipeline.RunParams{})
		if err != nil {
			return err
		}
		return printRecord(record)
	}
}

func runSeasonal(c *cli.Context) error {
	comp, err := buildComponents(c.Context, config.Load(), false)
	if err != nil {
		return err
	}
	defer comp.Close()

	event, err := eventFromFlags(c, comp.events)
	if err != nil {
		return err
	}

	record, err := comp.coordinator.StartRun(c.Context, domain.RunKindSeasonalPrep, pipeline.RunParams{Event: &event})
	if err != nil {
		return err
	}
	return printRecord(record)
}

// eventFromFlags builds an inline event when --date is given, otherwise
// looks --event up in the calendar.
func eventFromFlags(c *cli.Context, events seasonal.EventSource) (domain.SeasonalEvent, error) {
	name := c.String("event")
	if c.String("date") != "" {
		date, err := time.Parse("2006-01-02", c.String("date"))
		if err != nil {
			return domain.SeasonalEvent{}, domain.NewInvalidParameter("date", c.String("date"), "expected YYYY-MM-DD")
		}
		return domain.SeasonalEvent{
			Name:       name,
			Type:       c.String("type"),
			Date:       date,
			Multiplier: c.Float64("multiplier"),
			LeadDays:   c.Int("lead-days"),
		}, nil
	}
	if name == "" {
		return domain.SeasonalEvent{}, domain.NewInvalidParameter("event", "", "--event or --date is required")
	}
	if events == nil {
		return domain.SeasonalEvent{}, fmt.Errorf("no event calendar configured, pass --date/--type/--lead-days")
	}
	return seasonal.FindEvent(c.Context, events, name)
}

func listEvents(c *cli.Context) error {
	comp, err := buildComponents(c.Context, config.Load(), false)
	if err != nil {
		return err
	}
	defer comp.Close()

	if comp.events == nil {
		return fmt.Errorf("no event calendar configured")
	}
	events, err := comp.events.Events(c.Context)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\tx%.2f\t%dd\n", e.Date.Format("2006-01-02"), e.Name, e.Type, e.Multiplier, e.LeadDays)
	}
	return nil
}

func listArchived(c *cli.Context) error {
	cfg := config.Load()
	if !cfg.Storage.Enabled {
		return fmt.Errorf("object storage is disabled, set STORAGE_ENABLED=true")
	}
	archive, err := storage.NewArchive(c.Context, cfg.Storage)
	if err != nil {
		return err
	}

	prefix := "runs/"
	if raw := c.String("kind"); raw != "" {
		kind, ok := domain.ParseRunKind(raw)
		if !ok {
			return domain.NewInvalidParameter("kind", raw, "unknown run kind")
		}
		prefix = storage.KindPrefix(kind)
	}

	objects, err := archive.ListObjects(c.Context, prefix)
	if err != nil {
		return err
	}
	for _, o := range objects {
		fmt.Fprintf(c.App.Writer, "%s\t%d\n", o.Key, o.Size)
	}
	return nil
}

func migrate(c *cli.Context) error {
	db, err := openDB(config.Load())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(c.Context); err != nil {
		return err
	}
	logger.Log.Info().Msg("replenishment tables are up to date")
	return nil
}

func printRecord(record *domain.RunRecord) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return err
	}
	if record.Status == domain.RunStatusFailed {
		return fmt.Errorf("run %s failed", record.RunID)
	}
	return nil
}
