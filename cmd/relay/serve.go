package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DevRickLin/feishu-relay/internal/api"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
	"github.com/DevRickLin/feishu-relay/internal/conf"
	"github.com/DevRickLin/feishu-relay/internal/data"
	"github.com/DevRickLin/feishu-relay/internal/infra/feishu"
	"github.com/DevRickLin/feishu-relay/internal/server"
	"github.com/DevRickLin/feishu-relay/internal/service"
)

const (
	probeTimeout = 10 * time.Second
	drainTimeout = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run every configured account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *conf.Config, logger *slog.Logger) error {
	repos, err := data.NewRepositories(cfg.Storage.DBPath, cfg.Storage.MediaDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repos.Close()
	logger.Info("storage opened", "db", cfg.Storage.DBPath, "media", cfg.Storage.MediaDir)

	metrics := service.NewMetrics()
	registry := usecase.NewAccountRegistry()
	sessions := usecase.NewSessionUsecase(repos.Session)

	var dispatcher repo.Dispatcher = usecase.UnavailableDispatcher{}
	if cfg.Responder.Enabled() {
		dispatcher = data.NewResponder(data.ResponderConfig{
			APIKey:       cfg.Responder.APIKey,
			BaseURL:      cfg.Responder.BaseURL,
			Model:        cfg.Responder.Model,
			SystemPrompt: cfg.Responder.SystemPrompt,
			HistoryLimit: cfg.Responder.HistoryLimit,
		}, logger)
	} else {
		logger.Warn("no responder configured, turns are answered with an unavailable notice")
	}

	g, gctx := errgroup.WithContext(ctx)
	var pipelines []*service.Pipeline

	for _, acct := range cfg.Accounts {
		state := usecase.NewAccountState(acct.ID, acct.Configured())
		registry.Register(state)
		if !acct.Configured() {
			logger.Warn("account has no credentials, skipping", "account", acct.ID)
			continue
		}

		client := feishu.NewClient(feishu.Config{
			AccountID: acct.ID,
			AppID:     acct.AppID,
			AppSecret: acct.AppSecret,
			Domain:    acct.Domain,
			Logger:    logger,
		})
		feishuRepo := data.NewFeishuRepo(client)

		pipeline, err := service.NewPipeline(service.PipelineConfig{
			AccountID:       acct.ID,
			DebounceWindow:  acct.DebounceWindow,
			RoutePrefix:     acct.SessionPrefix,
			MentionFallback: cfg.Pipeline.MentionFallback,
			RequireMention:  acct.RequireMentionFor,
			Sender:          cfg.SenderConfig(),
			Cache:           cfg.CacheConfig(),
		}, service.PipelineDeps{
			Directory:  feishuRepo,
			Messages:   feishuRepo,
			Media:      repos.Media,
			Dispatcher: dispatcher,
			Sessions:   sessions,
			State:      state,
			Observer:   metrics.ForAccount(acct.ID),
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("account %s: %w", acct.ID, err)
		}
		pipelines = append(pipelines, pipeline)

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		bot, err := client.ProbeBot(probeCtx)
		cancel()
		if err != nil {
			state.RecordError(err)
			logger.Warn("bot identity unavailable", "account", acct.ID, "error", err)
		} else {
			pipeline.Caches().Directory.SetBotIdentity(bot)
			logger.Info("bot identity resolved", "account", acct.ID, "open_id", bot.OpenID, "name", bot.Name)
		}

		srv := server.NewFeishuServer(client, pipeline, state, server.DefaultEventBuffer, logger)
		g.Go(func() error {
			// one account failing leaves the others running
			if err := srv.Start(gctx); err != nil {
				logger.Error("account stopped", "account", state.ID(), "error", err)
			}
			return nil
		})
	}

	janitorCfg := service.DefaultJanitorConfig()
	janitorCfg.MediaMaxAge = cfg.Storage.MediaMaxAge
	janitor := service.NewJanitor(repos.Media, repos.Account, registry, sessions, janitorCfg, logger)
	janitor.Start(ctx)

	apiServer := api.NewServer(registry, sessions, metrics.Registry(), cfg.API.Addr(), logger)
	g.Go(func() error {
		return apiServer.Start(gctx)
	})

	logger.Info("relay started", "accounts", len(cfg.Accounts), "version", version)
	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for _, p := range pipelines {
		if werr := p.Wait(drainCtx); werr != nil {
			logger.Warn("in-flight turns still running at shutdown", "error", werr)
			break
		}
	}
	janitor.Stop()
	logger.Info("relay stopped")
	return err
}
