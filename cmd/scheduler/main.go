package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rupeeflow/loan-engine/internal/config"
	"github.com/rupeeflow/loan-engine/internal/repository"
	"github.com/rupeeflow/loan-engine/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	log.Info("Starting loan scheduler...")

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	loanService := service.NewLoanService(loanRepo, paymentRepo, redisClient, cfg, log)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Warnf("Unknown timezone %q, using UTC", cfg.Scheduler.Timezone)
		location = time.UTC
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	// Schedule tasks
	setupCronJobs(c, cfg, loanService, log)

	// Start the scheduler
	c.Start()
	log.Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, loanService *service.LoanService, log *logrus.Logger) {
	// Daily job to persist the overdue projection (runs at midnight). Overdue
	// remains derived at read time; this keeps SQL reporting in line with it.
	_, err := c.AddFunc("0 0 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		updated, err := loanService.SweepOverdue(ctx, time.Now())
		if err != nil {
			log.WithError(err).Error("Overdue sweep failed")
			return
		}
		log.WithField("installments", updated).Info("Overdue sweep completed")
	})
	if err != nil {
		log.WithError(err).Error("Error scheduling overdue sweep job")
	}

	// Hourly job to warm the upcoming-dues read model consumed by the
	// notification collaborator.
	_, err = c.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := loanService.CacheUpcomingDues(ctx, cfg.GetUpcomingWindow())
		if err != nil {
			log.WithError(err).Error("Upcoming-dues cache warm failed")
			return
		}
		log.WithField("loans", count).Info("Upcoming-dues cache warmed")
	})
	if err != nil {
		log.WithError(err).Error("Error scheduling upcoming-dues job")
	}

	log.Info("Cron jobs scheduled successfully")
}
