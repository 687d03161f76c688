package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/opsgate"
	"github.com/loykin/opsgate/internal/logger"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Addr       string
	BasePath   string
}

func buildServe() *cobra.Command {
	var f ServeFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control engine daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(f)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&f.Addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "/api", "HTTP base path")
	return cmd
}

func runServe(f ServeFlags) error {
	cfg := &opsgate.Config{}
	if f.ConfigPath != "" {
		loaded, err := opsgate.LoadConfig(f.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if f.Addr != "" {
		cfg.Server.Addr = f.Addr
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8553"
	}
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = f.BasePath
	}

	closeLog := logger.Setup(cfg.Log)
	defer closeLog()

	if err := opsgate.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	eng, err := opsgate.New(cfg)
	if err != nil {
		return err
	}
	eng.Start()
	defer eng.Stop()

	srv, err := opsgate.NewHTTPServer(cfg.Server, eng)
	if err != nil {
		return err
	}
	slog.Info("opsgate serving", "addr", cfg.Server.Addr, "base_path", cfg.Server.BasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
