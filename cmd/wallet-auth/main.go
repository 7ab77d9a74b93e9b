package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/statusmvp/wallet-auth/internal/auth"
	"github.com/statusmvp/wallet-auth/internal/config"
	apihttp "github.com/statusmvp/wallet-auth/internal/http"
	authctrl "github.com/statusmvp/wallet-auth/internal/http/controllers/auth"
	"github.com/statusmvp/wallet-auth/internal/http/router"
	"github.com/statusmvp/wallet-auth/internal/identity"
	"github.com/statusmvp/wallet-auth/internal/kv"
	kvmemory "github.com/statusmvp/wallet-auth/internal/kv/memory"
	kvredis "github.com/statusmvp/wallet-auth/internal/kv/redis"
	"github.com/statusmvp/wallet-auth/internal/metrics"
	"github.com/statusmvp/wallet-auth/internal/observability/logger"
	"github.com/statusmvp/wallet-auth/internal/provider/telegram"
	"github.com/statusmvp/wallet-auth/internal/provider/x"
	"github.com/statusmvp/wallet-auth/internal/risk"
	"github.com/statusmvp/wallet-auth/internal/token"
)

func main() {
	// .env es opcional; en despliegues reales las variables vienen del entorno.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.L().Fatal("config load failed", logger.Err(err))
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "wallet-auth",
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(cfg)
	defer func() { _ = store.Close() }()

	if err := store.Ping(ctx); err != nil {
		logger.L().Warn("store not reachable at startup", logger.Err(err))
	}

	tokens, err := token.New(cfg.Auth)
	if err != nil {
		logger.L().Fatal("token service init failed", logger.Err(err))
	}

	rec := metrics.NewRecorder(cfg.Auth.MetricsEnabled)
	svc := auth.New(
		cfg.Auth,
		identity.NewStore(store),
		x.New(cfg.Auth.X, rec),
		telegram.New(cfg.Auth.TG),
		risk.New(store, cfg.Auth.Risk, rec),
		tokens,
		rec,
	)

	handler := router.New(cfg.Auth, authctrl.NewController(svc), store)
	srv := apihttp.NewServer(cfg.Server.Addr, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	logger.L().Info("wallet-auth up",
		logger.String("addr", cfg.Server.Addr),
		logger.String("store", cfg.Store.Kind),
	)

	if err := g.Wait(); err != nil {
		logger.L().Fatal("server exited", logger.Err(err))
	}
	logger.L().Info("wallet-auth stopped")
}

func openStore(cfg *config.Config) kv.Store {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Kind)) {
	case "memory":
		logger.L().Warn("using in-memory store; sessions will not survive restarts")
		return kvmemory.New()
	default:
		return kvredis.New(kvredis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
	}
}
