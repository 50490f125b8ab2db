// Command chatmeshd runs the chat dispatch daemon: an HTTP front door over
// the master router and its specialized handlers.
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

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/model/anthropic"
	"github.com/hupe1980/chatmesh/model/openai"
	"github.com/hupe1980/chatmesh/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chatmeshd:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  parseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})

	completer, err := buildCompleter(cfg)
	if err != nil {
		return err
	}

	mesh, err := chatmesh.New(func(o *chatmesh.Options) {
		o.Completer = completer
		o.Logger = logger
		o.Metrics = metrics.New(prometheus.DefaultRegisterer)
		o.MaxConcurrentDispatches = cfg.MaxConcurrentDispatches
		o.ConversationBuffer = cfg.ConversationBuffer
		o.WorkerIdleTimeout = cfg.WorkerIdleTimeout
		o.HistoryLimit = cfg.HistoryLimit
		o.PurgeInterval = cfg.PurgeInterval
	})
	if err != nil {
		return err
	}
	defer mesh.Close()

	srv := server.New(mesh.Engine(), func(o *server.Options) {
		o.Logger = logger
	})

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chatmeshd.listening", "addr", cfg.Addr, "provider", string(cfg.Provider))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("chatmeshd.shutdown", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// parseLevel maps the configured level name onto slog levels, defaulting to
// info for unknown values.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildCompleter selects the language-model backend from the configuration.
func buildCompleter(cfg config.Config) (model.Completer, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			if cfg.AnthropicModel != "" {
				o.Model = anthropicsdk.Model(cfg.AnthropicModel)
			}
		}), nil
	case config.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			if cfg.OpenAIModel != "" {
				o.Model = cfg.OpenAIModel
			}
		}), nil
	case config.ProviderMock:
		return model.NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
