package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-py/replenishment/internal/api/handlers"
	"github.com/andresuchdata/autopo-py/replenishment/internal/api/middleware"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
	"github.com/andresuchdata/autopo-py/replenishment/internal/seasonal"
)

type Services struct {
	Runs    handlers.RunService
	History handlers.RunHistory
	Events  seasonal.EventSource
	Cache   ports.CachePort
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Runs != nil {
		runHandler := handlers.NewRunHandler(services.Runs, services.History, services.Events, services.Cache)
		replGroup := apiGroup.Group("/replenishment")
		{
			replGroup.POST("/runs/:kind", runHandler.StartRun)
			replGroup.GET("/runs/active", runHandler.GetActive)
			replGroup.GET("/runs", runHandler.ListRuns)
			replGroup.GET("/forecast/latest", runHandler.GetLatestForecast)
			replGroup.GET("/events", runHandler.ListEvents)
		}
	} else {
		log.Warn().Msg("replenishment routes disabled: no run service configured")
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
