package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-certwatch/internal/api"
	"github.com/khanhnv2901/seca-certwatch/internal/application"
	"github.com/khanhnv2901/seca-certwatch/internal/metrics"
	"github.com/khanhnv2901/seca-certwatch/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled checks and the read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		addr, _ := cmd.Flags().GetString("addr")
		authToken, _ := cmd.Flags().GetString("auth-token")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
		rateLimit, _ := cmd.Flags().GetInt("api-rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("api-rate-burst")
		if authToken == "" {
			authToken = os.Getenv(envPrefix + "_AUTH_TOKEN")
		}

		logger := appCtx.logger()
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		otelCfg := appCtx.Config.OTel
		shutdownTracing, err := telemetry.Init(ctx, otelCfg.Endpoint, telemetry.ServiceName, Version, otelCfg.Insecure)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Warn("failed to flush traces", zap.Error(err))
			}
		}()

		services := appCtx.Services
		if err := services.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		// Settings edited through the CLI reach the running server.
		if err := services.WatchSettings(ctx); err != nil {
			logger.Warn("settings changes from other processes will not be applied", zap.Error(err))
		}

		server := api.NewServer(api.Config{
			Targets:        services.TargetService,
			Batches:        services.Scheduler,
			Checks:         services.Orchestrator,
			Health:         &healthAPIService{appCtx: appCtx},
			MetricsHandler: metrics.Handler(),
			AuthToken:      authToken,
			Logger:         logger,
			CORSOrigins:    corsOrigins,
			RateLimit:      rateLimit,
			RateBurst:      rateBurst,
		})

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// A manual batch is answered synchronously.
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  120 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			info := services.Scheduler.Info()
			fmt.Printf("%s API server listening on %s (data dir: %s)\n", colorInfo("→"), addr, appCtx.DataDir)
			if info.Active {
				fmt.Printf("%s Checks scheduled %q (%s), next run %s\n", colorInfo("→"), info.Expression, info.Timezone, info.NextRun.Format(time.RFC3339))
			}
			fmt.Printf("%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Printf("\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}
			// Waits for an active batch; the container is closed afterwards.
			services.Scheduler.Stop()

			fmt.Printf("%s Server shutdown complete\n", colorInfo("✓"))
		}

		return nil
	},
}

func init() {
	addCheckFlags(serveCmd)
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Address for the API server")
	serveCmd.Flags().String("auth-token", "", "Shared secret required in X-Auth-Token (or set CERTWATCH_AUTH_TOKEN)")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().Int("api-rate-limit", 10, "API rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("api-rate-burst", 20, "API rate limit burst size")
}

type healthAPIService struct {
	appCtx *AppContext
}

func (s *healthAPIService) Check(ctx context.Context) error {
	if s.appCtx.DataDir == "" {
		return fmt.Errorf("data directory not configured")
	}
	return nil
}

// Ready requires both stores to be readable.
func (s *healthAPIService) Ready(ctx context.Context) error {
	return storesReadable(ctx, s.appCtx.Services)
}

func storesReadable(ctx context.Context, c *application.Container) error {
	if c == nil {
		return fmt.Errorf("services not initialized")
	}
	if _, err := c.SettingsService.Get(ctx); err != nil {
		return fmt.Errorf("settings unavailable: %w", err)
	}
	if _, err := c.TargetService.ListTargets(ctx); err != nil {
		return fmt.Errorf("targets unavailable: %w", err)
	}
	return nil
}
