package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	config "companion-dispatch.com/companion-dispatch/internal/configs"
	"companion-dispatch.com/companion-dispatch/internal/events"
	httpapi "companion-dispatch.com/companion-dispatch/internal/http"
	repository "companion-dispatch.com/companion-dispatch/internal/repositories"
	"companion-dispatch.com/companion-dispatch/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch API server",
	Long:  "Starts the task dispatch HTTP API and the overtime watchdog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println(".env file not found, using environment variables")
		}

		cfg := config.Load()

		database := config.NewDatabaseClient(cfg.DatabaseDSN)

		redisClient := config.NewRedisClient(cfg.RedisAddr)
		defer redisClient.Close()

		broadcaster := events.NewRedisBroadcaster(redisClient, cfg.EventChannelPrefix)

		taskRepo := repository.NewTaskRepository(database)
		playerRepo := repository.NewPlayerRepository(database)
		extensionRepo := repository.NewExtensionRepository(database)

		clock := services.NewSystemClock()

		queueService := services.NewQueueService(database, taskRepo, playerRepo, broadcaster, clock)
		assignmentService := services.NewAssignmentService(database, taskRepo, playerRepo, queueService, broadcaster, clock)
		extensionService := services.NewExtensionService(database, taskRepo, extensionRepo, broadcaster, clock)
		overtimeService := services.NewOvertimeService(
			database,
			taskRepo,
			broadcaster,
			clock,
			time.Duration(cfg.OvertimeIntervalSeconds)*time.Second,
			cfg.OvertimeBatchSize,
		)
		overtimeService.Start()

		e := echo.New()
		handler := httpapi.NewHandler(assignmentService, queueService, extensionService, overtimeService)
		httpapi.Register(e, handler, cfg.RateLimit)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
		)
		defer cancel()

		_ = e.Shutdown(shutdownCtx)
		overtimeService.Shutdown()

		log.Println("HTTP server and overtime watchdog shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
