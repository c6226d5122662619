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

	"github.com/spf13/cobra"
	"github.com/xaenox/taskchat/internal/api"
	"github.com/xaenox/taskchat/internal/bot"
	"github.com/xaenox/taskchat/internal/chat"
	"github.com/xaenox/taskchat/internal/classifier"
	"github.com/xaenox/taskchat/internal/conversation"
	"github.com/xaenox/taskchat/internal/events"
	"go.uber.org/zap"
)

// Each inference health check spends a completion.
const inferenceHealthTTL = time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when a token is configured, the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := cfg.Validate(); err != nil {
				logger.Error("Invalid configuration", zap.Error(err))
				return err
			}

			store, err := openStorage(cfg.Database, logger)
			if err != nil {
				logger.Error("Failed to initialize storage", zap.Error(err))
				return err
			}
			defer store.Close()

			gpt, err := classifier.NewGPTClient(classifier.GPTConfig{
				APIKey:         cfg.OpenAI.APIKey,
				BaseURL:        cfg.OpenAI.BaseURL,
				Model:          cfg.OpenAI.Model,
				MaxTokens:      cfg.OpenAI.MaxTokens,
				Temperature:    cfg.OpenAI.Temperature,
				ConnectTimeout: cfg.OpenAI.ConnectTimeout,
				ReadTimeout:    cfg.OpenAI.ReadTimeout,
			}, logger)
			if err != nil {
				logger.Error("Failed to create inference client", zap.Error(err))
				return err
			}

			hub := events.NewHub(logger)
			tasks := events.NewTaskStore(store, hub)
			conversations := conversation.NewService(store, cfg.Conversation.TTL, logger)
			chatService := chat.NewService(gpt, tasks, conversations, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conversations.StartSweeper(ctx, cfg.Conversation.SweepInterval)

			handler := api.NewHandler(chatService, conversations, hub, logger)
			handler.AddHealthCheck("database", store)
			handler.AddHealthCheck("inference", api.CachedPinger(api.PingerFunc(gpt.Healthy), inferenceHealthTTL))

			srv := &http.Server{
				Addr:        cfg.HTTP.Addr,
				Handler:     api.NewRouter(handler),
				ReadTimeout: 30 * time.Second,
				// no WriteTimeout: websocket streams stay open
				IdleTimeout: 120 * time.Second,
			}

			errCh := make(chan error, 2)
			go func() {
				logger.Info("Server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()

			if cfg.Telegram.Token != "" {
				b, err := bot.New(cfg.Telegram.Token, chatService, tasks, conversations, logger)
				if err != nil {
					logger.Error("Failed to create bot", zap.Error(err))
					return err
				}
				go func() {
					if err := b.Start(ctx); err != nil {
						errCh <- fmt.Errorf("telegram bot: %w", err)
					}
				}()
			} else {
				logger.Info("Telegram token not set, bot disabled")
			}

			select {
			case <-ctx.Done():
			case err = <-errCh:
				logger.Error("Service failed", zap.Error(err))
			}
			stop()

			logger.Info("Shutting down gracefully...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Error("Server forced to shutdown", zap.Error(shutdownErr))
			}
			return err
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired conversations once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := openStorage(cfg.Database, logger)
			if err != nil {
				logger.Error("Failed to initialize storage", zap.Error(err))
				return err
			}
			defer store.Close()

			conversations := conversation.NewService(store, cfg.Conversation.TTL, logger)
			n, err := conversations.Sweep(cmd.Context())
			if err != nil {
				logger.Error("Sweep failed", zap.Error(err))
				return err
			}
			logger.Info("Sweep finished", zap.Int64("deleted", n))
			return nil
		},
	}
}
