package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chora-ai/chai/internal/channels"
	"github.com/chora-ai/chai/internal/channels/telegram"
	"github.com/chora-ai/chai/internal/config"
	"github.com/chora-ai/chai/internal/gateway"
	"github.com/chora-ai/chai/internal/pairing"
	"github.com/chora-ai/chai/internal/skills"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Long: `Start the duplex protocol server, its channel connectors, and the
inbound processor. Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "chai-gateway.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("chai-gatewayd: load config: %w", err)
	}
	if err := gateway.ValidateBindPolicy(cfg.Gateway); err != nil {
		return err
	}

	pairingPath := cfg.Gateway.PairingPath
	if strings.TrimSpace(pairingPath) == "" {
		pairingPath = "pairing.json"
	}
	pairingStore, err := pairing.Load(pairingPath)
	if err != nil {
		return fmt.Errorf("chai-gatewayd: load pairing store: %w", err)
	}

	loadedSkills, err := skills.Load(logger, cfg.Skills.Directory, cfg.Skills.ExtraDirs)
	if err != nil {
		return fmt.Errorf("chai-gatewayd: load skills: %w", err)
	}
	if len(cfg.Skills.Enabled) > 0 {
		loadedSkills = skills.Filter(loadedSkills, cfg.Skills.Enabled)
	}

	srv, err := gateway.Build(gateway.BuildOptions{
		Config:  cfg,
		Logger:  logger,
		Pairing: pairingStore,
		Skills:  loadedSkills,
	})
	if err != nil {
		return fmt.Errorf("chai-gatewayd: build gateway: %w", err)
	}
	srv.DiscoverModels(ctx)

	queue := channels.NewInboundQueue(256)

	var webhookHandler http.HandlerFunc
	if strings.TrimSpace(cfg.Channels.Telegram.Token) != "" {
		mode := telegram.ModeLongPoll
		if strings.TrimSpace(cfg.Channels.Telegram.WebhookURL) != "" {
			mode = telegram.ModeWebhook
		}
		tg, err := telegram.New(telegram.Config{
			Token:         cfg.Channels.Telegram.Token,
			Mode:          mode,
			WebhookURL:    cfg.Channels.Telegram.WebhookURL,
			WebhookSecret: cfg.Channels.Telegram.WebhookSecret,
			Logger:        logger,
		}, queue)
		if err != nil {
			return fmt.Errorf("chai-gatewayd: telegram connector: %w", err)
		}
		srv.Channels.Register(tg)
		if err := tg.Start(ctx); err != nil {
			return fmt.Errorf("chai-gatewayd: start telegram connector: %w", err)
		}
		webhookHandler = tg.HandleWebhook
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go srv.RunInboundProcessor(ctx, queue)

	// An empty bind passes ValidateBindPolicy as loopback, so listen on
	// loopback rather than on every interface.
	bind := cfg.Gateway.Bind
	if bind == "" {
		bind = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", bind, cfg.Gateway.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.HTTPHandler(webhookHandler)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("chai-gatewayd: serve: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown reported errors", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("chai-gatewayd: http shutdown: %w", err)
	}
	return nil
}
