package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain"
	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/chat"
	"github.com/carebook/carebook/internal/domain/doctor"
	"github.com/carebook/carebook/internal/domain/notification"
	v1 "github.com/carebook/carebook/internal/handler/v1"
	"github.com/carebook/carebook/internal/service"
	"github.com/carebook/carebook/pkg/auth"
	"github.com/carebook/carebook/pkg/database"
	"github.com/carebook/carebook/pkg/logger"
	"github.com/carebook/carebook/pkg/mailer"
	"github.com/carebook/carebook/pkg/metrics"
	"github.com/carebook/carebook/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting carebook-api",
		zap.String("environment", cfg.App.Environment),
		zap.String("address", cfg.Server.Address()),
	)

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	m := metrics.NewCollector("carebook")
	if err := database.Instrument(db, m); err != nil {
		log.Fatal("failed to instrument database", zap.Error(err))
	}

	userRepo := domain.NewGormUserRepository(db)
	doctorRepo := doctor.NewGormRepository(db)
	ratingRepo := doctor.NewGormRatingRepository(db)
	apptRepo := appointment.NewGormRepository(db)
	notifRepo := notification.NewGormRepository(db)
	chatRepo := chat.NewGormRepository(db)

	jwtManager := auth.NewJWTManager(cfg.JWT)
	mail := mailer.NewRelayMailer(cfg.Mailer)

	dispatcher := service.NewDispatcher(notifRepo, mail, m, log.Named("dispatcher"))

	authSvc := service.NewAuthService(userRepo, jwtManager, log.Named("auth"))
	doctorSvc := service.NewDoctorService(doctorRepo, ratingRepo, userRepo, dispatcher, cfg.Booking, log.Named("doctor"))
	availabilitySvc := service.NewAvailabilityService(doctorRepo, apptRepo, cfg.Booking.SlotDuration, log.Named("availability"))
	apptSvc := service.NewAppointmentService(apptRepo, doctorRepo, userRepo, dispatcher, m, cfg.Booking, log.Named("appointment"))
	ratingSvc := service.NewRatingService(ratingRepo, doctorRepo, apptRepo, m, log.Named("rating"))
	notifSvc := service.NewNotificationService(notifRepo, log.Named("notification"))
	chatSvc := service.NewChatService(chatRepo, log.Named("chat"))

	router := v1.NewRouter(cfg, v1.Handlers{
		Auth:         v1.NewAuthHandler(authSvc),
		Doctor:       v1.NewDoctorHandler(doctorSvc, availabilitySvc, ratingSvc),
		Appointment:  v1.NewAppointmentHandler(apptSvc),
		Notification: v1.NewNotificationHandler(notifSvc),
		Chat:         v1.NewChatHandler(chatSvc, authSvc),
	}, jwtManager, m, log.Named("http"))

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("http server failed", zap.Error(err))
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	// Drain pending notification events before the process exits.
	dispatcher.Shutdown()

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Warn("closing database failed", zap.Error(err))
		}
	}

	log.Info("carebook-api stopped")
}
