package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/portalshot/api"
	"github.com/use-agent/portalshot/capture"
	"github.com/use-agent/portalshot/config"
	"github.com/use-agent/portalshot/driver"
	"github.com/use-agent/portalshot/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "portalshot",
		Short:         "Capture authenticated portal pages as screenshot, JSON and HTML",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger(cfg.Log)
		},
	}
	root.PersistentFlags().StringVar(&cfg.Driver.Backend, "driver", cfg.Driver.Backend, "browser backend: rod, webdriver or static")
	root.PersistentFlags().StringVarP(&cfg.Output.Dir, "out", "o", cfg.Output.Dir, "directory for captured artifacts")
	root.PersistentFlags().BoolVar(&cfg.Output.Markdown, "markdown", cfg.Output.Markdown, "also write a readable <slug>.md")

	root.AddCommand(newCaptureCmd(cfg), newServeCmd(cfg))
	return root
}

func newCaptureCmd(cfg *config.Config) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "capture [id]",
		Short: "Capture one page and write <slug>.png, <slug>.json and <slug>.html",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &models.CaptureRequest{URL: target}
			if len(args) == 1 {
				req.ID = args[0]
			}
			if err := req.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runCapture(ctx, cfg, req, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "full URL to capture instead of an id")
	return cmd
}

func runCapture(ctx context.Context, cfg *config.Config, req *models.CaptureRequest, out io.Writer) error {
	drv, err := capture.OpenDriver(cfg.Driver)
	if err != nil {
		slog.Error("failed to open driver", "backend", cfg.Driver.Backend, "error", err)
		return err
	}
	defer closeDriver(drv)

	svc, err := capture.NewService(drv, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer svc.Close()

	resp, err := svc.Capture(ctx, req)
	if err != nil {
		slog.Error("capture failed", "url", resp.URL, "error", err)
		return err
	}
	for _, f := range resp.Files {
		slog.Info("artifact written", "path", f)
	}
	_, err = fmt.Fprintln(out, resp.Slug)
	return err
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the capture API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen host")
	cmd.Flags().IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "listen port")
	return cmd
}

func serve(cfg *config.Config) error {
	slog.Info("portalshot starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"driver", cfg.Driver.Backend,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("API auth enabled without keys; every capture request will be refused")
	}

	drv, err := capture.OpenDriver(cfg.Driver)
	if err != nil {
		slog.Error("failed to open driver", "backend", cfg.Driver.Backend, "error", err)
		return err
	}
	defer closeDriver(drv)

	svc, err := capture.NewService(drv, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(svc, cfg),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
		return err
	}

	// A capture can take the whole capture timeout; let it finish.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.CaptureTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("portalshot stopped")
	return nil
}

func closeDriver(drv driver.Driver) {
	if err := drv.Close(); err != nil {
		slog.Warn("driver close failed", "error", err)
	}
}

// initLogger configures slog based on the LogConfig. Logs go to stderr so
// the capture command's stdout carries only the slug.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
