package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/api"
	"github.com/akylbek/payment-system/hutko-gateway/internal/config"
	"github.com/akylbek/payment-system/hutko-gateway/internal/repository"
	"github.com/akylbek/payment-system/hutko-gateway/internal/service"
	"github.com/akylbek/payment-system/hutko-gateway/internal/telemetry"
)

const serviceName = "hutko-gateway"

func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := telemetry.InitTelemetry(telemetry.Options{
		ServiceName:  serviceName,
		Version:      Version,
		OTLPEndpoint: cfg.JaegerEndpoint,
		Debug:        cfg.Debug,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer telemetry.Shutdown(context.Background())
			logger := telemetry.Logger

			logger.Info("Starting hutko gateway",
				zap.String("integration", string(cfg.IntegrationType)),
				zap.Bool("test_mode", cfg.TestMode),
			)

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.InitDB(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}

			recorderCtx, stopRecorder := context.WithCancel(context.Background())
			a.recorder.Start(recorderCtx)

			gin.SetMode(gin.ReleaseMode)
			r := api.NewRouter(api.RouterDeps{
				Registry: a.registry,
				Orders:   a.repo,
				Gatherer: a.promReg,
				Logger:   logger,
			})

			srv := &http.Server{
				Addr:    ":" + cfg.Port,
				Handler: r,
			}

			go func() {
				logger.Info("hutko gateway listening", zap.String("port", cfg.Port))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
			}

			stopRecorder()
			a.recorder.Wait()

			logger.Info("Server exited")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the order tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer telemetry.Shutdown(context.Background())

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.NewOrderRepository(db).InitDB(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			telemetry.Logger.Info("Database schema is up to date")
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	var (
		kinds []string
		idle  time.Duration
		group string
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded callback failures from the failures topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer telemetry.Shutdown(context.Background())
			logger := telemetry.Logger

			brokers := cfg.Brokers()
			if len(brokers) == 0 {
				return errors.New("replay needs kafka_brokers")
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			recorderCtx, stopRecorder := context.WithCancel(context.Background())
			a.recorder.Start(recorderCtx)
			defer func() {
				stopRecorder()
				a.recorder.Wait()
			}()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			reader := service.NewFailureReader(brokers, cfg.FailureTopic, group)
			defer reader.Close()
			stats, err := service.NewReplayer(reader, a.processor, kinds, idle, logger).Run(ctx)
			logger.Info("Replay finished",
				zap.Int("read", stats.Read),
				zap.Int("replayed", stats.Replayed),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed),
			)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "failure kinds to replay (default: all)")
	cmd.Flags().DurationVar(&idle, "idle", 10*time.Second, "stop after this long without new messages")
	cmd.Flags().StringVar(&group, "group", "hutko-replay", "kafka consumer group")
	return cmd
}
