package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"posthub.org/internal/auth"
	"posthub.org/internal/bot"
	"posthub.org/internal/config"
	"posthub.org/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load("posthub-bot", os.Args[1:], os.LookupEnv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err == nil {
		err = cfg.ValidateBot()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	obs.SetLogger(obs.NewLogger(os.Stdout, cfg.LogLevel))
	obs.InitBuildInfo("bot", version, commit)

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		obs.Logger().Error("posthub-bot failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := obs.Logger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sessions live in Redis when one is configured so replicas share logins.
	var sessions bot.SessionStore
	if url := cfg.Redis.ConnURL(); url != "" {
		connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := auth.OpenRedis(connCtx, url)
		cancel()
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = bot.NewRedisSessions(client, bot.DefaultSessionPrefix, cfg.Bot.SessionTTL)
	} else {
		mem := bot.NewMemorySessions(cfg.Bot.SessionTTL, nil)
		sessions = mem
		go func() {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					mem.Sweep()
				}
			}
		}()
	}

	client := bot.NewAPIClient(cfg.Bot.APIURL, nil)
	runner, err := bot.NewTelegramRunner(cfg.Bot.TelegramToken, bot.New(client, sessions), cfg.Bot.PollTimeout)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	if err := runner.RegisterCommands(); err != nil {
		log.Warn("register bot commands", "error", err)
	}

	log.Info("starting posthub-bot", "version", version, "api_url", cfg.Bot.APIURL)
	err = runner.Run(ctx)
	log.Info("stopped")
	return err
}
