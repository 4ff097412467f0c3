// sensor-sim is a stand-in sensor backend for development and integration
// testing. It serves the control and snapshot API harrierd polls and
// pushes event frames over websocket, and optionally to Redis or NATS.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrier-systems/harrierwatch/common/logging"
	"github.com/harrier-systems/harrierwatch/common/messaging"
	"github.com/harrier-systems/harrierwatch/internal/sim"
	"github.com/harrier-systems/harrierwatch/internal/tokens"

	natsmsg "github.com/harrier-systems/harrierwatch/common/messaging/nats"
	redismsg "github.com/harrier-systems/harrierwatch/common/messaging/redis"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to scenario file")
	addr := flag.String("addr", ":8184", "listen address")
	mode := flag.String("mode", "", "override scenario mode (synthetic or live)")
	watchRoot := flag.String("watch", "", "override live-mode watch root")
	secret := flag.String("secret", "", "shared token secret; empty disables auth")
	redisAddr := flag.String("redis", "", "also publish frames to this Redis address")
	natsURL := flag.String("nats", "", "also publish frames to this NATS URL")
	logLevel := flag.String("log-level", "info", "log level")
	seed := flag.Int64("seed", 0, "generator seed; 0 derives one from the clock")
	flag.Parse()

	logger := logging.New(logging.ParseLevel(*logLevel), "text").
		With(logging.Service("sensor-sim"))
	logging.SetDefault(logger)

	scenario, err := sim.LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}
	if *mode != "" {
		scenario.Mode = *mode
	}
	if *watchRoot != "" {
		scenario.WatchRoot = *watchRoot
	}
	if scenario.Mode != sim.ModeSynthetic && scenario.Mode != sim.ModeLive {
		log.Fatalf("Unknown mode %q", scenario.Mode)
	}
	if scenario.Mode == sim.ModeLive && scenario.WatchRoot == "" {
		log.Fatalf("Live mode requires -watch")
	}

	var publishers []messaging.Publisher
	if *redisAddr != "" {
		client, err := redismsg.NewClient(redismsg.Config{
			Addr:        *redisAddr,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		publishers = append(publishers, client)
		slog.Info("publishing to redis", slog.String("addr", *redisAddr))
	}
	if *natsURL != "" {
		client, err := natsmsg.NewClient(natsmsg.Config{
			URL:           *natsURL,
			Name:          "sensor-sim",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		publishers = append(publishers, client)
		slog.Info("publishing to nats", slog.String("url", *natsURL))
	}

	simulator := sim.New(sim.Options{
		Scenario:   scenario,
		Publishers: publishers,
		Logger:     logger,
		Seed:       *seed,
	})

	var validator *tokens.Validator
	if *secret != "" {
		validator = tokens.NewValidator(*secret)
	}

	srv := &http.Server{
		Addr:        *addr,
		Handler:     sim.NewServer(simulator, validator, logger).Routes(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("sensor-sim listening",
			slog.String("addr", *addr),
			slog.String("mode", scenario.Mode),
			slog.Bool("auth", validator != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", logging.Error(err))
	}
	simulator.Close()
	slog.Info("stopped")
}
