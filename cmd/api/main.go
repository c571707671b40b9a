package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/adapters/httpapi"
	memcrewrepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/crewrepo"
	memidempotency "github.com/tripwell/crew-planner-api/internal/adapters/memory/idempotency"
	mempreviewcache "github.com/tripwell/crew-planner-api/internal/adapters/memory/previewcache"
	memtravelerrepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/travelerrepo"
	memtriprepo "github.com/tripwell/crew-planner-api/internal/adapters/memory/triprepo"
	postgres "github.com/tripwell/crew-planner-api/internal/adapters/postgres"
	pgcrewrepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/crewrepo"
	pgidempotency "github.com/tripwell/crew-planner-api/internal/adapters/postgres/idempotency"
	pgtravelerrepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/travelerrepo"
	pgtriprepo "github.com/tripwell/crew-planner-api/internal/adapters/postgres/triprepo"
	redispreviewcache "github.com/tripwell/crew-planner-api/internal/adapters/redis/previewcache"
	"github.com/tripwell/crew-planner-api/internal/app/crews"
	"github.com/tripwell/crew-planner-api/internal/app/travelers"
	"github.com/tripwell/crew-planner-api/internal/app/trips"
	"github.com/tripwell/crew-planner-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/tripwell/crew-planner-api/internal/platform/clock"
	"github.com/tripwell/crew-planner-api/internal/platform/config"
	"github.com/tripwell/crew-planner-api/internal/platform/logging"
	clockport "github.com/tripwell/crew-planner-api/internal/ports/out/clock"
	crewrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
	idempotencyport "github.com/tripwell/crew-planner-api/internal/ports/out/idempotency"
	previewcacheport "github.com/tripwell/crew-planner-api/internal/ports/out/previewcache"
	travelerrepoport "github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
	triprepoport "github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

type repos struct {
	travelers travelerrepoport.Repository
	crews     crewrepoport.Repository
	trips     triprepoport.Repository
	idem      idempotencyport.Store
	cleanup   func()
}

func run(cfg config.AppConfig, log *zap.Logger) error {
	// Auth configuration:
	// - Production: require JWT_* env vars and enforce bearer auth
	// - Local dev: set AUTH_MODE=dev to bypass JWT verification and use X-Debug-Subject
	var authMW func(http.Handler) http.Handler
	authIssuer := cfg.DevIssuer
	switch cfg.AuthMode {
	case "dev":
		log.Warn("dev auth enabled; requests are trusted via X-Debug-Subject")
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject)
	default:
		jwtCfg, err := config.LoadJWTConfigFromEnv()
		if err != nil {
			return fmt.Errorf("auth config: %w", err)
		}
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(jwtCfg))
		authIssuer = jwtCfg.Issuer
	}

	clk := platformclock.NewSystemClock()

	r, err := openRepos(cfg, authIssuer, log)
	if err != nil {
		return err
	}
	defer r.cleanup()

	cache, closeCache, err := openPreviewCache(cfg, clk, log)
	if err != nil {
		return err
	}
	defer closeCache()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	travelerSvc := travelers.NewService(r.travelers, clk, cfg.TenantID, log)
	crewSvc := crews.NewService(r.crews, r.travelers, r.trips, clk, crews.Options{
		BaseURL: cfg.PublicBaseURL,
		Logger:  log,
		Metrics: crews.NewMetrics(reg),
		Cache:   cache,
	})
	tripSvc := trips.NewService(r.trips, crewSvc, clk, log)

	api := httpapi.NewServer(travelerSvc, crewSvc, tripSvc, r.idem, clk, log)
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware:      authMW,
		Logger:              log,
		Registry:            reg,
		InviteRatePerMinute: cfg.InviteRatePerMinute,
		InviteRateBurst:     cfg.InviteRateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageBackend), zap.String("cache", cfg.CacheBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRepos(cfg config.AppConfig, issuer string, log *zap.Logger) (repos, error) {
	switch cfg.StorageBackend {
	case "postgres":
		if cfg.AutoMigrate {
			if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
				return repos{}, fmt.Errorf("migrate: %w", err)
			}
			log.Info("database migrations applied")
		}
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return repos{}, fmt.Errorf("postgres: %w", err)
		}
		return repos{
			travelers: pgtravelerrepo.NewRepo(pool, issuer),
			crews:     pgcrewrepo.NewRepo(pool),
			trips:     pgtriprepo.NewRepo(pool),
			idem:      pgidempotency.NewStore(pool, issuer),
			cleanup:   pool.Close,
		}, nil
	default:
		return repos{
			travelers: memtravelerrepo.NewRepo(),
			crews:     memcrewrepo.NewRepo(),
			trips:     memtriprepo.NewRepo(),
			idem:      memidempotency.NewStore(),
			cleanup:   func() {},
		}, nil
	}
}

func openPreviewCache(cfg config.AppConfig, clk clockport.Clock, log *zap.Logger) (previewcacheport.Cache, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		log.Info("preview cache: redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.PreviewCacheTTL))
		return redispreviewcache.New(client, cfg.PreviewCacheTTL), func() { _ = client.Close() }, nil
	case "memory":
		return mempreviewcache.New(clk, cfg.PreviewCacheTTL), func() {}, nil
	default:
		return previewcacheport.Nop{}, func() {}, nil
	}
}
