package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolo-run/wolo/internal/adminhttp"
	"github.com/wolo-run/wolo/internal/logging"
	"github.com/wolo-run/wolo/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Start the opt-in admin HTTP server (Prometheus /metrics and /healthz)",
	Long: `Start a tiny HTTP server exposing Prometheus metrics and a liveness
probe. It never exposes session content and has nothing to do with running
an agent turn: start it alongside a long-running wolo process when you want
an external monitor to scrape it.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", adminhttp.DefaultConfig().Addr, "Address to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := adminhttp.DefaultConfig()
	cfg.Addr = serveAddr

	srv := adminhttp.New(cfg, metrics.New())

	go func() {
		logging.Info().Str("addr", cfg.Addr).Msg("admin HTTP server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Error().Err(err).Msg("admin HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
