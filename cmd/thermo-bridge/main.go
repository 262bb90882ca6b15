package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"thermo-bridge/common/logger"
	"thermo-bridge/internal/config"
	"thermo-bridge/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "thermo-bridge")
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("Starting thermo-bridge",
		zap.String("listen_mode", cfg.ListenMode),
		zap.Int("udp_port", cfg.UDPPort),
		zap.Int("tcp_port", cfg.TCPPort),
	)

	bridge, err := service.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to build bridge", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bridge.Start(ctx); err != nil {
		log.Fatal("Failed to start bridge", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := bridge.Stop(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}

	log.Info("thermo-bridge exited")
}
