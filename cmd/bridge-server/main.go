package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nuzlocke-bridge/internal/modules/bridge"
	"nuzlocke-bridge/internal/pkg/config"
	"nuzlocke-bridge/internal/pkg/log"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  Nuzlocke Bridge Server")
	fmt.Println("  Version: 1.0.0")
	fmt.Println("==============================================")
	fmt.Println()

	cfg := config.Load()
	log.Init(log.ParseLevel(cfg.LogLevel), cfg.Environment)
	logger := log.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := bridge.New(cfg, logger)
	if err := m.Init(ctx); err != nil {
		logger.Error("bridge init failed", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	fmt.Printf("[Main] Overlay API:  http://localhost:%s/api/external?endpoint=status\n", cfg.HTTPPort)
	fmt.Printf("[Main] Push target:  http://localhost:%s/api/update-data\n", cfg.HTTPPort)
	fmt.Printf("[Main] Event stream: ws://localhost:%s/api/stream\n", cfg.HTTPPort)

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", err)
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
