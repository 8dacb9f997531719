package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/contadigital/backend/internal/database"
	"github.com/contadigital/backend/internal/services"
)

// The worker is the external trigger for the scheduled-withdrawal
// dispatcher: one batch cycle per tick. Several worker processes may
// run side by side; the conditional claim keeps them from stepping on
// each other.
func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.SetDefault("worker.interval", 30*time.Second)
	viper.BindEnv("worker.interval", "WORKER_INTERVAL")

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db := database.InitDatabase()
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	dispatcher := services.NewDispatcherService(db, redisClient, services.NewEmailNotifier(), services.SystemClock(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := viper.GetDuration("worker.interval")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Worker starting, dispatch interval %s", interval)

	// Run one cycle right away instead of waiting out the first tick.
	runCycle(ctx, dispatcher, logger)

	for {
		select {
		case <-ctx.Done():
			log.Println("Worker stopped")
			return
		case <-ticker.C:
			runCycle(ctx, dispatcher, logger)
		}
	}
}

// runCycle executes one batch cycle. A failed cycle must never prevent
// the next one, so errors stop here.
func runCycle(ctx context.Context, dispatcher *services.DispatcherService, logger zerolog.Logger) {
	if _, err := dispatcher.ProcessDue(ctx); err != nil {
		logger.Error().Err(err).Msg("cron.withdraw.cycle_failed")
	}
}
