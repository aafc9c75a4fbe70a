// Command pusherd runs the self-hosted Pusher-compatible pub/sub
// server: process bootstrap, environment configuration, and signal
// handling live here, keeping the engine underneath free of process
// concerns.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"

	"github.com/relayhub/pusherd/internal/admission"
	"github.com/relayhub/pusherd/internal/auth"
	"github.com/relayhub/pusherd/internal/channel"
	"github.com/relayhub/pusherd/internal/httpapi"
	"github.com/relayhub/pusherd/internal/monitoring"
	"github.com/relayhub/pusherd/internal/platform"
	"github.com/relayhub/pusherd/internal/wsapi"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	cfg, err := platform.Load(nil)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := monitoring.NewLogger(monitoring.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogConfig(logger)

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	registry := channel.NewRegistry()
	presence := channel.NewPresence()
	signer := auth.New(cfg.AuthSecret)
	ipLimiter := admission.NewIPLimiter(cfg.ConnectionLimitPerIP)
	msgLimiter := admission.NewMessageLimiter(cfg.MessageRateLimit, cfg.MessageRateWindow())
	resources := platform.NewResourceMonitor(logger)

	dispatcher := wsapi.NewServer(wsapi.Config{
		Path:                   cfg.WSPath,
		AllowedOrigins:         cfg.OriginAllowList(),
		ChannelLimitPerConn:    cfg.ChannelLimitPerConnection,
		ActivityTimeoutSeconds: cfg.ActivityTimeoutSeconds,
		SendBufferSize:         cfg.SendBufferSize,
		ShutdownGracePeriod:    cfg.ShutdownGracePeriod,
	}, registry, presence, signer, ipLimiter, msgLimiter, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)
	resources.Start(ctx, cfg.MetricsInterval)

	api := httpapi.New(httpapi.Config{AllowedOrigins: cfg.OriginAllowList()}, signer, dispatcher, resources, logger)
	api.Engine.GET(cfg.WSPath, gin.WrapF(dispatcher.HandleUpgrade))

	httpServer := &http.Server{Addr: cfg.Addr(), Handler: api.Engine}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("ws_path", cfg.WSPath).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	dispatcher.Shutdown(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
		os.Exit(1)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	logger.Info().Dur("uptime", time.Since(startTime)).Msg("shutdown complete")
}

var startTime = time.Now()
