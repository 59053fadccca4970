package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"startickets/internal/auth"
	"startickets/internal/booking"
	"startickets/internal/booking/api"
	"startickets/internal/booking/db"
	bookingkafka "startickets/internal/booking/kafka"
	bookingredis "startickets/internal/booking/redis"
	"startickets/internal/config"
	"startickets/internal/database"
	"startickets/internal/database/migrations"
	"startickets/internal/kafka"
	"startickets/internal/logger"
	"startickets/internal/tickets/qr"
	"startickets/internal/utils"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Dir, logger.ParseLevel(cfg.Log.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	log.Info("APP", "Starting StarTickets booking service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Migrations.Auto {
		runner := migrations.NewRunner(bunDB, cfg.Migrations.Dir, log)
		if err := runner.Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		if err := runner.Close(); err != nil {
			log.Warn("DATABASE", fmt.Sprintf("Failed to close migrator: %v", err))
		}
	}

	opts := []booking.Option{booking.WithReferenceAttempts(cfg.Booking.ReferenceAttempts)}

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, submission guard fails open: %v", cfg.Redis.Addr, err))
		} else {
			log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
		}
		opts = append(opts, booking.WithGuard(bookingredis.NewGuard(redisClient, cfg.Redis.GuardTTL, log)))
	}

	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.BookingCreated, cfg.Kafka.Topics.BookingCancelled}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, cfg.Kafka.Partitions, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		opts = append(opts, booking.WithPublisher(bookingkafka.NewPublisher(producer, bookingkafka.Topics{
			Created:   cfg.Kafka.Topics.BookingCreated,
			Cancelled: cfg.Kafka.Topics.BookingCancelled,
		}, log)))
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	service := booking.NewService(db.New(bunDB), log, opts...)
	handler := api.NewHandler(service, qr.NewGenerator(cfg.Booking.QRSize), log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unavailable", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})
	handler.RegisterRoutes(r, verifier)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Booking service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
		return
	}
	log.Info("HTTP", "Booking service shutdown complete")
}

