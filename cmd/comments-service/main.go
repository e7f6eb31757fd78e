package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/cascade"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/config"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/feed"
	feedredis "github.com/IoanaFeraru/recipe-platform-sub000/internal/feed/redis"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/rating"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/recipes"
	recipespg "github.com/IoanaFeraru/recipe-platform-sub000/internal/recipes/postgres"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/service"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage/memory"
	csmongo "github.com/IoanaFeraru/recipe-platform-sub000/internal/storage/mongo"
	transporthttp "github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/handlers"
	"github.com/IoanaFeraru/recipe-platform-sub000/pkg/interceptors"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// commentStore — хранилище комментариев вместе с его лентой изменений.
type commentStore interface {
	storage.Storage
	Hub() *feed.Hub
	SetNotifier(n feed.Notifier)
}

// pinger — бэкенд, доступность которого проверяет /healthz.
type pinger interface {
	Ping(ctx context.Context) error
}

// recipeStore — БД рецептов: владелец и запись рейтинга.
type recipeStore interface {
	recipes.OwnerLookup
	recipes.RatingWriter
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting comments-service", "env", cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	feedOpts := feed.Options{Buffer: cfg.Feed.Buffer, FetchTimeout: cfg.Feed.FetchTimeout, Logger: log}

	store, err := openComments(rootCtx, cfg, feedOpts, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("comments_store_close_failed", slog.String("err", err.Error()))
		}
	}()

	recipeDB, closeRecipes, err := openRecipes(rootCtx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRecipes()

	var (
		owners recipes.OwnerLookup = recipeDB
		bridge *feedredis.Bridge
	)
	if cfg.Redis.Enabled {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()

		owners = recipes.NewOwnerCache(rdb, recipeDB, cfg.Redis.Prefix, cfg.Redis.OwnerCacheTTL, log)
		bridge = feedredis.New(rdb, cfg.Redis.FeedChannel, store.Hub(), log)
		store.SetNotifier(bridge)
		log.Info("redis_enabled", slog.String("addr", opt.Addr))
	}

	writer := recipes.NewBreakerWriter(recipeDB, recipes.BreakerSettings{
		MaxFailures: cfg.Rating.Breaker.MaxFailures,
		Timeout:     cfg.Rating.Breaker.Timeout,
		Interval:    cfg.Rating.Breaker.Interval,
	}, log)

	svc := service.New(
		store,
		owners,
		rating.NewSyncer(store, writer, cfg.Rating.SerializeSync),
		cascade.New(store),
	)
	log.Info("service_initialized")

	// 0 — not ready; 1 — ready
	var ready int32

	checks := make(map[string]func(context.Context) error)
	if p, ok := store.(pinger); ok {
		checks["mongo"] = p.Ping
	}
	if p, ok := recipeDB.(pinger); ok {
		checks["postgres"] = p.Ping
	}

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: transporthttp.NewRouter(svc, transporthttp.Options{
			Logger:   log,
			Timeout:  cfg.Timeouts.Service,
			BasePath: cfg.HTTP.BasePath,
			Feed: handlers.FeedOptions{
				WriteTimeout: cfg.Feed.WriteTimeout,
				PingPeriod:   cfg.Feed.PingPeriod,
				PongWait:     cfg.Feed.PongWait(),
				Base:         rootCtx,
			},
			Ready:  func() bool { return atomic.LoadInt32(&ready) == 1 },
			Checks: checks,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpc_prometheus.EnableHandlingTimeHistogram()

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLogging(log, healthCheckMethod),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	if cfg.Env == config.EnvLocal || cfg.Env == config.EnvDev {
		reflection.Register(grpcServer)
	}

	grpcAddr := cfg.GRPC.Addr()
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", grpcAddr, err)
	}

	grpc_prometheus.Register(grpcServer)

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Info("http_listen_start", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("grpc_listen_start", slog.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	atomic.StoreInt32(&ready, 1)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown_requested")

		hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		atomic.StoreInt32(&ready, 0)

		// Живые WebSocket-ленты завершаются по отмене корневого контекста.
		rootCancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
		defer shutdownCancel()

		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
			log.Info("grpc_stopped")
		case <-shutdownCtx.Done():
			log.Warn("grpc_force_stop")
			grpcServer.Stop()
		}

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http_force_close", slog.String("err", err.Error()))
			_ = httpSrv.Close()
		}

		return nil
	})

	return g.Wait()
}

// openComments — MongoDB, а при env=local без db.url — память.
func openComments(ctx context.Context, cfg *config.Config, opts feed.Options, log *slog.Logger) (commentStore, error) {
	if cfg.DB.URL == "" {
		log.Warn("comments_store_in_memory")
		return memory.New(opts), nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	m, err := csmongo.New(dbCtx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	log.Info("mongo_connected")

	return m, nil
}

// openRecipes — Postgres рецептов, а при env=local без postgres.url —
// справочник в памяти с рецептами из local.recipes.
func openRecipes(ctx context.Context, cfg *config.Config, log *slog.Logger) (recipeStore, func(), error) {
	if cfg.Postgres.URL == "" {
		dir := recipes.NewDirectory()
		for _, r := range cfg.Local.Recipes {
			// validate уже проверил формат.
			dir.Register(uuid.MustParse(r.ID), uuid.MustParse(r.OwnerID))
		}
		log.Warn("recipe_directory_in_memory", slog.Int("recipes", len(cfg.Local.Recipes)))

		return dir, func() {}, nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pg, err := recipespg.New(dbCtx, cfg.Postgres.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connect: %w", err)
	}
	log.Info("postgres_connected")

	return pg, pg.Close, nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case config.EnvLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
