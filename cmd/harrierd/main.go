package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/common/middleware"
	"github.com/harrier-systems/harrierwatch/internal/backend"
	"github.com/harrier-systems/harrierwatch/internal/broadcast"
	"github.com/harrier-systems/harrierwatch/internal/channel"
	"github.com/harrier-systems/harrierwatch/internal/channel/natstransport"
	"github.com/harrier-systems/harrierwatch/internal/channel/redistransport"
	"github.com/harrier-systems/harrierwatch/internal/channel/wstransport"
	"github.com/harrier-systems/harrierwatch/internal/config"
	"github.com/harrier-systems/harrierwatch/internal/engine"
	"github.com/harrier-systems/harrierwatch/internal/handlers"
	"github.com/harrier-systems/harrierwatch/internal/server"
	"github.com/harrier-systems/harrierwatch/internal/session"
	"github.com/harrier-systems/harrierwatch/internal/stats"
	"github.com/harrier-systems/harrierwatch/internal/store"
	"github.com/harrier-systems/harrierwatch/internal/tokens"

	redismsg "github.com/harrier-systems/harrierwatch/common/messaging/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("addr", "", "override listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("harrierd"))
	logging.SetDefault(logger)

	slog.Info("starting harrierd",
		slog.Int("port", cfg.Server.Port),
		slog.String("backend", cfg.Backend.BaseURL),
		slog.String("transport", cfg.Backend.Transport),
		slog.String("log_level", cfg.Logging.Level),
	)

	token := tokenFunc(cfg.Backend.Auth)
	backendClient, err := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Token:   token,
	})
	if err != nil {
		log.Fatalf("Failed to build backend client: %v", err)
	}

	transport, err := buildTransport(cfg, token)
	if err != nil {
		log.Fatalf("Failed to build channel transport: %v", err)
	}

	st := store.New(store.Options{
		Caps:         cfg.LogCaps(),
		DedupWindows: cfg.Store.DedupWindows,
	})
	sessions := session.New(cfg.Sessions.Descriptors, nil)
	tracker := stats.New(cfg.Poller.Interval)
	hub := broadcast.NewHub()

	eng, err := engine.New(engine.Config{
		Backend:      backendClient,
		Transport:    transport,
		Store:        st,
		Sessions:     sessions,
		Stats:        tracker,
		Hub:          hub,
		Logger:       logger,
		InboxSize:    cfg.Store.InboxSize,
		PollInterval: cfg.Poller.Interval,
		PollTimeout:  cfg.Poller.Timeout,
		DialTimeout:  cfg.Channel.DialTimeout,
		Backoff: channel.Backoff{
			Initial: cfg.Channel.BackoffInitial,
			Max:     cfg.Channel.BackoffMax,
			Jitter:  cfg.Channel.BackoffJitter,
		},
		Debug: cfg.Logging.Level == "debug",
	})
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	eng.Run()

	for _, class := range cfg.Sessions.Autostart {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := eng.Start(ctx, class); err != nil {
			slog.Warn("autostart failed", logging.Class(class), logging.Error(err))
		} else {
			slog.Info("autostart accepted", logging.Class(class))
		}
		cancel()
	}

	h := handlers.New(handlers.Config{
		Engine:  eng,
		Store:   st,
		Hub:     hub,
		Backend: backendClient,
		Logger:  logger,
	})
	router := server.NewRouter(h, corsConfig(cfg))

	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	if *addr != "" {
		listenAddr = *addr
	}
	srv := &http.Server{
		Addr:        listenAddr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// No WriteTimeout: the SSE stream endpoints outlive any fixed
		// write deadline.
	}

	go func() {
		slog.Info("harrierd listening", slog.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", logging.Error(err))
	}
	eng.Close()
	slog.Info("stopped")
}

// tokenFunc resolves the backend auth mode: a static token wins, then a
// minted short-lived JWT, then no auth at all.
func tokenFunc(auth config.AuthConfig) backend.TokenFunc {
	switch {
	case auth.Token != "":
		return func() (string, error) { return auth.Token, nil }
	case auth.Secret != "":
		return tokens.NewMinter(auth.Secret, auth.TokenTTL).Mint
	default:
		return nil
	}
}

func buildTransport(cfg *config.Config, token backend.TokenFunc) (channel.Transport, error) {
	switch cfg.Backend.Transport {
	case "websocket":
		return wstransport.New(cfg.Backend.BaseURL, wstransport.TokenFunc(token))
	case "redis":
		return redistransport.New(redismsg.Config{
			Addr:        cfg.Backend.Redis.Addr,
			Password:    cfg.Backend.Redis.Password,
			DB:          cfg.Backend.Redis.DB,
			DialTimeout: cfg.Channel.DialTimeout,
		}), nil
	case "nats":
		return natstransport.New(natstransport.Config{
			URL:  cfg.Backend.NATS.URL,
			Name: cfg.Backend.NATS.Name,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend transport %q", cfg.Backend.Transport)
	}
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}
}
