package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlink/cmd"
	"github.com/axellelanca/shortlink/internal/api"
	"github.com/axellelanca/shortlink/internal/database"
	"github.com/axellelanca/shortlink/internal/logger"
	"github.com/axellelanca/shortlink/internal/monitor"
	"github.com/axellelanca/shortlink/internal/repository"
	"github.com/axellelanca/shortlink/internal/services"
)

// RunServerCmd représente la commande 'run-server' de Cobra.
// C'est le point d'entrée pour lancer le serveur de l'application.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Starts the HTTP API, the redirect endpoint and the URL monitor.",
	Long: `Opens the database, applies migrations, starts the optional target URL
monitor and serves the HTTP API until SIGINT or SIGTERM, then drains in-flight
requests and closes the connection pool.`,
	RunE: runServer,
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg := cmd.Cfg
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, logger.NewGormLogger(cfg.Log.GormLevel, cfg.Log.SlowQueryThreshold))
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "err", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}
	slog.Info("database ready", "driver", cfg.Database.Driver)

	linkRepo := repository.NewLinkRepository(db)
	linkService := services.NewLinkService(linkRepo, cfg.Database.QueryTimeout)

	var urlMonitor *monitor.UrlMonitor
	if cfg.Monitor.Enabled {
		urlMonitor = monitor.NewUrlMonitor(linkRepo, cfg.Monitor.Schedule, cfg.Monitor.RequestTimeout)
		if err := urlMonitor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start url monitor: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(linkService, cfg.Server.BaseURL)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewHandler(router, cfg.Server.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr, "base_url", cfg.Server.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown incomplete", "err", err)
	}
	if urlMonitor != nil {
		urlMonitor.Stop(shutdownCtx)
	}
	slog.Info("server stopped")
	return nil
}
