package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/vkamat93/seat-booking-app/internal/config"
	"github.com/vkamat93/seat-booking-app/internal/database"
	"github.com/vkamat93/seat-booking-app/internal/handler"
	"github.com/vkamat93/seat-booking-app/internal/logger"
	"github.com/vkamat93/seat-booking-app/internal/metrics"
	"github.com/vkamat93/seat-booking-app/internal/middleware"
	"github.com/vkamat93/seat-booking-app/internal/queue"
	"github.com/vkamat93/seat-booking-app/internal/repository"
	"github.com/vkamat93/seat-booking-app/internal/router"
	"github.com/vkamat93/seat-booking-app/internal/scheduler"
	"github.com/vkamat93/seat-booking-app/internal/seed"
	"github.com/vkamat93/seat-booking-app/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	if users := cfg.Credentials.Usernames(); len(users) == 0 {
		log.Warn("USER_CREDENTIALS is empty; nobody can log in")
	} else {
		log.Info("login allow-list loaded", slog.Any("usernames", users))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	store := repository.NewStore(db)
	if _, err := seed.EnsureSeats(ctx, store.Seats(), log); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	var events service.EventPublisher
	if cfg.AMQPURL != "" {
		pub, err := queue.NewPublisher(cfg.AMQPURL, log)
		if err != nil {
			log.Warn("event publishing disabled", slog.Any("error", err))
		} else {
			defer pub.Close()
			events = pub
		}
		if cfg.AuditConsumerEnabled {
			go queue.NewAuditConsumer(cfg.AMQPURL, cfg.AuditLogPath, log).Run(ctx)
		}
	}

	booking := service.NewBookingService(store, events, rec, log)
	query := service.NewSeatQueryService(store.Seats())
	auth := service.NewAuthService(store.Users(), store.Seats(), cfg.Credentials, service.AuthConfig{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.JWTTTL,
		BcryptCost: cfg.BcryptCost,
	}, log)

	schedDone, err := startScheduler(ctx, config.LoadSchedulerConfig(), store, booking, events, rec, log)
	if err != nil {
		return err
	}

	var limiterBackend redis.Scripter
	if rdb := config.NewRedisClient(ctx, log); rdb != nil {
		defer rdb.Close()
		limiterBackend = rdb
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), limiterBackend, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(log)
	e.Use(echoMw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echoMw.Recover())
	e.Use(echoMw.CORSWithConfig(echoMw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(echoMw.BodyLimit("64K"))

	router.RegisterRoutes(e, db, metrics.Handler(reg))
	router.RegisterAuth(e, handler.NewAuthHandler(auth), cfg.JWTSecret, limiter)
	router.RegisterSeats(e, handler.NewSeatHandler(booking, query, cfg.TxTimeout), cfg.JWTSecret, limiter)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", slog.Any("error", err))
	}
	stop()
	<-schedDone
	return nil
}

// startScheduler wires the daily release.  The returned channel closes
// when the scheduler goroutine exits; it is already closed when the
// scheduler is disabled.
func startScheduler(
	ctx context.Context,
	sc config.SchedulerConfig,
	store *repository.Store,
	booking *service.BookingService,
	events service.EventPublisher,
	rec metrics.Recorder,
	log *slog.Logger,
) (<-chan struct{}, error) {
	if !sc.Enabled {
		log.Info("daily seat release disabled")
		done := make(chan struct{})
		close(done)
		return done, nil
	}
	trigger, err := scheduler.NewCronTrigger(sc.Cron, sc.Timezone)
	if err != nil {
		return nil, err
	}
	job := scheduler.NewReleaseJob(scheduler.ReleaseJobDeps{
		Tx:      store,
		Seats:   store.Seats(),
		Users:   store.Users(),
		Booker:  booking,
		Target:  scheduler.PreAssignTarget{Username: sc.PreAssignUsername, SeatNumber: sc.PreAssignSeatNumber},
		Events:  events,
		Metrics: rec,
		Logger:  log,
	})
	log.Info("daily seat release scheduled",
		slog.String("schedule", trigger.String()),
		slog.String("preassign_username", sc.PreAssignUsername),
		slog.Int("preassign_seat_number", sc.PreAssignSeatNumber))
	return scheduler.New(job, trigger, nil, log).Loop(ctx), nil
}
