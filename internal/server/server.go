package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/sevasetu/sevasetu/config"
	"github.com/sevasetu/sevasetu/internal/assistant"
	"github.com/sevasetu/sevasetu/internal/catalog"
	"github.com/sevasetu/sevasetu/internal/llm"
	"github.com/sevasetu/sevasetu/internal/store"
	"github.com/sevasetu/sevasetu/internal/tools"
)

// Run wires the full service and starts the HTTP API.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	if cfg.Telemetry.Enabled {
		path := cfg.Telemetry.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		e.GET(path, echo.WrapHandler(promhttp.Handler()))
	}

	dsn := cfg.Storage.Postgres.DSN()
	_ = Migrate("file://migrations", dsn, "up", 0)

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	// Redis is optional; without it the catalog cache degrades to direct
	// store reads.
	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	toolLogger := log.New(log.Writer(), "[TOOL] ", log.LstdFlags)
	registry := tools.NewRegistry(
		&tools.ComplaintTool{Filer: st, Logger: toolLogger},
		tools.WeatherTool{},
		tools.MarketPriceTool{},
		tools.SchemeTool{},
		tools.CenterTool{},
	)

	cat := &catalog.Cache{
		Lister: st,
		Rdb:    rdb,
		TTL:    cfg.Storage.Redis.CacheTTL,
		Logger: baseLogger,
	}

	engine := assistant.New(st, cat, registry, provider, cfg.Assistant, cfg.General.GuestUserID, nil)

	api := e.Group("/api")
	ch := &ChatHandler{Engine: engine}
	ch.Register(api)
	sh := &ServicesHandler{Store: st}
	sh.Register(api)

	if addr == "" {
		addr = cfg.General.Listen
		if addr == "" {
			addr = ":10002"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
