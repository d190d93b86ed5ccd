package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"portfolio-proxy/internal/api"
	"portfolio-proxy/internal/cache"
	"portfolio-proxy/internal/cache/leveldb"
	"portfolio-proxy/internal/cache/memory"
	"portfolio-proxy/internal/cache/postgres"
	"portfolio-proxy/internal/cache/redis"
	"portfolio-proxy/internal/config"
	"portfolio-proxy/internal/github"
	"portfolio-proxy/internal/httpx"
	"portfolio-proxy/internal/roblox"
)

const sweepInterval = 10 * time.Minute

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", getenvDefault("PORTFOLIO_PROXY_CONFIG", "portfolio-proxy.yaml"), "path to the YAML config file")
	flag.Parse()

	logger := log.New("server")

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open cache backend %s: %v", cfg.Cache.Backend, err)
	}
	if closer != nil {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warnf("close cache backend: %v", err)
			}
		}()
	}

	gh := github.New(
		github.WithBaseURLs(cfg.GitHub.APIURL, cfg.GitHub.GraphQLURL),
		github.WithToken(cfg.GitHub.Token),
		github.WithTimeout(cfg.ClientTimeout()),
	)
	rb := roblox.New(
		roblox.WithBaseURLs(cfg.Roblox.UniverseURL, cfg.Roblox.GamesURL, cfg.Roblox.ThumbnailsURL),
		roblox.WithTimeout(cfg.ClientTimeout()),
		roblox.WithPace(cfg.RobloxPace()),
	)

	handler := api.NewHandler(store, gh, rb,
		api.WithTTLs(cfg.GitHubTTL(), cfg.RobloxTTL()),
	)

	server := httpx.NewServer(
		httpx.WithAddress(cfg.Server.Address),
		httpx.WithMiddlewares(httpx.RecoverMiddleware(), httpx.LoggerMiddleware()),
		httpx.WithCORS(&httpx.DefaultCORSConfig),
	)
	server.RegisterRoutes(api.Routes(handler))

	logger.Infof("listening on %s, cache backend %s", cfg.Server.Address, cfg.Cache.Backend)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("server: %v", err)
	}
	logger.Info("shut down")
}

// loadConfig falls back to built-in defaults when the file is absent so
// the binary runs with no config at all.
func loadConfig(path string, logger *log.Logger) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Infof("no config at %s, using defaults", path)
		return config.Default(), nil
	}
	return cfg, err
}

// openStore builds the cache backend named in the config. The returned
// closer is nil for the in-memory backend.
func openStore(ctx context.Context, cfg config.Config) (cache.Store, io.Closer, error) {
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		store := redis.NewStore(redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.BackendLevelDB:
		store, err := leveldb.Open(cfg.Cache.LevelDB.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case config.BackendPostgres:
		store, err := postgres.Open(ctx, postgres.WithDSN(cfg.Cache.Postgres.DSN))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	default:
		store := memory.NewStore()
		go store.Sweep(ctx, sweepInterval)
		return store, nil, nil
	}
}

func getenvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
