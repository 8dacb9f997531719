package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/contadigital/backend/internal/database"
	"github.com/contadigital/backend/internal/handlers"
	mW "github.com/contadigital/backend/internal/middleware"
	"github.com/contadigital/backend/internal/services"
)

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("mailer.host", "MAILER_HOST")
	viper.BindEnv("mailer.port", "MAILER_PORT")
	viper.BindEnv("mailer.from_address", "MAIL_FROM_ADDRESS")
	viper.BindEnv("mailer.from_name", "MAIL_FROM_NAME")

	viper.SetDefault("server.port", "8080")
	viper.BindEnv("server.port", "SERVER_PORT")

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

	notifier := services.NewEmailNotifier()
	clock := services.SystemClock()

	withdrawalService := services.NewWithdrawalService(db, redisClient, notifier, clock, logger)
	balanceService := services.NewBalanceService(db, redisClient, logger)
	withdrawHandler := handlers.NewWithdrawHandler(withdrawalService, balanceService, logger)

	r := chi.NewRouter()

	r.Use(mW.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "message": "pong"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts/{accountID}/withdrawals", withdrawHandler.CreateWithdrawal)
		r.Get("/accounts/{accountID}/balance", withdrawHandler.AccountBalance)
		r.Get("/withdrawals/{withdrawalID}", withdrawHandler.GetWithdrawal)
	})

	srv := &http.Server{
		Addr:         ":" + viper.GetString("server.port"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}
