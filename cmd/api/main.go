package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"posthub.org/internal/auth"
	"posthub.org/internal/config"
	"posthub.org/internal/httpapi"
	"posthub.org/internal/migrate"
	"posthub.org/internal/obs"
	"posthub.org/internal/posts"
	"posthub.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load("posthub-api", os.Args[1:], os.LookupEnv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	obs.SetLogger(obs.NewLogger(os.Stdout, cfg.LogLevel))
	obs.Init()
	obs.InitBuildInfo("api", version, commit)

	if err := run(cfg); err != nil {
		obs.Logger().Error("posthub-api failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := obs.Logger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: Postgres when configured, in-memory otherwise (development only).
	var (
		users     auth.UserStore
		postStore posts.Service
		probe     httpapi.ReadyProbe
	)
	if dsn := cfg.Postgres.URL(); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = store.Ping(pingCtx)
		pingCancel()
		if err != nil {
			return fmt.Errorf("ping db: %w", err)
		}
		if cfg.AutoMigrate {
			if err := migrate.Up(ctx, store.DB()); err != nil {
				return err
			}
		}
		users = auth.NewPGStore(store.DB())
		postStore = store
		probe.DB = store
	} else {
		log.Warn("no database configured, users and posts are kept in memory")
		users = auth.NewMemoryStore()
		postStore = posts.NewInMemory()
	}

	// Revocation cache: Redis when configured, in-process otherwise.
	var revocations auth.RevocationCache
	if url := cfg.Redis.ConnURL(); url != "" {
		connCtx, connCancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := auth.OpenRedis(connCtx, url)
		connCancel()
		if err != nil {
			return err
		}
		defer client.Close()
		rr := auth.NewRedisRevocations(client, cfg.Redis.Prefix)
		revocations = rr
		probe.Cache = rr
	} else {
		log.Warn("no redis configured, revoked tokens are kept in memory")
		mem := auth.NewMemoryRevocations(nil)
		revocations = mem
		go sweepRevocations(ctx, mem, time.Minute)
	}

	codec, err := auth.NewCodec(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(users, revocations, codec, auth.WithAccessTTL(cfg.Auth.AccessTTL()))
	if err != nil {
		return err
	}

	proxies, err := httpapi.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	api := httpapi.New(probe, version, svc, postStore,
		httpapi.WithCORSOrigins(cfg.CORSOrigins...),
		httpapi.WithTrustedProxies(proxies...),
		httpapi.WithLoginRateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	log.Info("starting posthub-api", "version", version, "addr", srv.Addr, "algorithm", codec.Algorithm())
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	var gs *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		gs = grpc.NewServer()
		health := httpapi.NewGRPCServer(probe)
		health.Register(gs)
		go health.Run(ctx, 10*time.Second)
		log.Info("grpc health listening", "addr", cfg.GRPCAddr)
		go func() {
			if err := gs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
		log.Info("shutting down")
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if gs != nil {
		gs.GracefulStop()
	}
	log.Info("stopped")
	return runErr
}

func sweepRevocations(ctx context.Context, mem *auth.MemoryRevocations, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := mem.Sweep(); n > 0 {
				obs.Logger().Debug("swept expired revocations", "removed", n)
			}
		}
	}
}
