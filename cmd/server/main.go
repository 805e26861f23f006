package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ceramiquejlepage/contact-api/internal/api"
	"github.com/ceramiquejlepage/contact-api/internal/config"
	"github.com/ceramiquejlepage/contact-api/internal/notify"
	"github.com/ceramiquejlepage/contact-api/internal/pkg/logger"
	"github.com/ceramiquejlepage/contact-api/internal/recaptcha"
	"github.com/ceramiquejlepage/contact-api/internal/resend"
)

// checkPortAvailable verifies the target port is not already in use,
// so a stale process fails startup loudly instead of shadowing it.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional, defaults + env otherwise)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevelFromString(cfg.Logging.Level)
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		logger.Error("startup aborted", "error", err)
		os.Exit(1)
	}

	composer, err := notify.NewComposer()
	if err != nil {
		logger.Error("template initialization failed", "error", err)
		os.Exit(1)
	}

	handlers := api.NewContactHandlers(
		cfg,
		recaptcha.NewClient(cfg.Recaptcha),
		resend.NewClient(cfg.Resend),
		composer,
	)
	server := api.NewServer(cfg, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("contact API listening",
			"addr", addr,
			"max_file_mb", cfg.Intake.MaxFileSizeMB,
			"max_files", cfg.Intake.MaxFileCount)
		errCh <- server.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
