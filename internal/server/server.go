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

	"github.com/planora-ai/planora/config"
	"github.com/planora-ai/planora/internal/coverage"
	"github.com/planora-ai/planora/internal/llm"
	"github.com/planora-ai/planora/internal/planner"
	"github.com/planora-ai/planora/internal/semantic"
	"github.com/planora-ai/planora/internal/store"
)

// Run wires all dependencies and serves the planning API until the listener
// fails. addr overrides general.listen when non-empty.
func Run(addr string, cfg *config.Config) error {
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
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	if cfg.Databases.Redis.Host == "" || cfg.Databases.Redis.Port == "" {
		return fmt.Errorf("redis not configured (databases.redis.host/port)")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Databases.Redis.Addr(),
		Password: cfg.Databases.Redis.Pass,
		DB:       cfg.Databases.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
	}

	if cfg.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key not configured (providers.openai.api_key)")
	}
	provider, err := llm.NewProvider(cfg.Providers.OpenAI)
	if err != nil {
		return err
	}

	// Engine assembly: embedding gateway -> linear index -> dedup guard,
	// coverage extractor/merger/summarizer, sitemap seeder, plan synthesizer.
	gateway := semantic.NewGateway(provider, cfg.Providers.OpenAI.EmbeddingDimensions)
	guard := semantic.NewGuard(gateway, semantic.NewLinearIndex(), st, cfg.Planner.DedupThreshold,
		log.New(log.Writer(), "[DEDUP] ", log.LstdFlags))
	extractor := coverage.NewExtractor(provider, log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags))
	merger := coverage.NewMerger(st)
	summarizer := coverage.NewSummarizer(st)
	seeder := coverage.NewSitemapSeeder(gateway, provider, st, merger, cfg.Planner.SeedConcurrency, nil)
	synth := planner.NewSynthesizer(provider, guard, summarizer, cfg.Planner.BatchSize, nil)

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}
	auth, err := initAuth(st, []byte(secret))
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	bh := &BrandsHandler{Store: st, Summarizer: summarizer}
	bh.Register(api.Group("/brands"), auth.Secret)

	ah := &ArticlesHandler{Store: st, Extractor: extractor, Merger: merger, Gateway: gateway, Rdb: rdb,
		Logger: log.New(log.Writer(), "[ANALYZE] ", log.LstdFlags)}
	ah.Register(api.Group("/brands"), auth.Secret)

	ch := &CoverageHandler{Store: st, Summarizer: summarizer, Seeder: seeder, Rdb: rdb,
		CacheTTL: cfg.Planner.SummaryCacheTTL, Logger: log.New(log.Writer(), "[COVERAGE] ", log.LstdFlags)}
	ch.Register(api.Group("/brands"), auth.Secret)

	ph := &PlansHandler{Store: st, Synth: synth, Rdb: rdb,
		Logger: log.New(log.Writer(), "[PLAN] ", log.LstdFlags)}
	ph.Register(api.Group("/brands"), auth.Secret)

	oh := &OpportunitiesHandler{}
	oh.Register(api.Group("/opportunities"), auth.Secret)

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10020"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
