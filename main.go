package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/checkin"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/directory"
	"ms-booking/internal/kafka"
	"ms-booking/internal/lock"
	"ms-booking/internal/logger"
	"ms-booking/internal/notify"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}

	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC discovery failed for %s: %v", cfg.OIDCIssuer, err))
		}
		log.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against %s", cfg.OIDCIssuer))
		return v
	}
	if cfg.JWTSecret == "" {
		log.Fatal("CONFIG", "Either OIDC_ISSUER or JWT_SECRET must be set")
	}
	log.Info("AUTH", "Verifying HS256 bearer tokens with JWT_SECRET")
	return &auth.HMACVerifier{Secret: []byte(cfg.JWTSecret)}
}

// reloadDirectoryOnHUP re-reads the directory file on SIGHUP.
func reloadDirectoryOnHUP(ctx context.Context, dir *directory.Directory, path string, log *logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := dir.Reload(path); err != nil {
					log.Error("CONFIG", fmt.Sprintf("Directory reload failed, keeping previous data: %v", err))
					continue
				}
				log.Info("CONFIG", fmt.Sprintf("Directory reloaded from %s", path))
			}
		}
	}()
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Service: "booking-service", MinLevel: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	log.Info("APP", "Starting Booking Service initialization")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}
	defer bunDB.Close()

	var locker booking.SessionLocker = lock.NewKeyedMutex()
	if cfg.Redis.Enabled {
		redisClient := connectRedis(ctx, cfg.Redis, log)
		defer redisClient.Close()
		redisLocker := lock.NewRedisLocker(redisClient, log, cfg.Redis.LockTTL, cfg.Redis.LockWait)
		redisLocker.WatchExpirations(ctx)
		locker = lock.Chain(lock.NewKeyedMutex(), redisLocker)
		log.Info("LOCK", "Session locks shared through Redis")
	}

	events := sse.NewBookingEventEmitter()
	notifiers := notify.Multi{&notify.Log{Logger: log}, events}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, []string{cfg.Kafka.NotificationsTopic}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, log)
		defer producer.Close()
		notifiers = append(notifiers, notify.NewKafka(producer))
		log.Info("KAFKA", fmt.Sprintf("Publishing notifications to %s", cfg.Kafka.NotificationsTopic))
	}

	dir, err := directory.Load(cfg.Directory.File)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Failed to load directory: %v", err))
	}
	if cfg.Directory.File != "" {
		reloadDirectoryOnHUP(ctx, dir, cfg.Directory.File, log)
	}

	passes, err := checkin.NewQRGenerator(cfg.Auth.QRSecret)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid QR secret: %v", err))
	}

	engine := booking.NewEngine(db.New(bunDB), locker, dir, dir, notifiers, log)
	handler := booking_api.NewHandler(engine, dir, passes, events, newVerifier(ctx, cfg.Auth, log), log)
	if cfg.Auth.PassFontFile != "" {
		handler.PDF = &checkin.PDFRenderer{FontFile: cfg.Auth.PassFontFile}
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("unhealthy", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})
	r.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Booking Service shutdown complete")
	}
}
