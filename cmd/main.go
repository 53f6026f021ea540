package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/config"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/dispatch"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/handlers"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/middleware"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	natsc "github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/nats"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/presence"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/repository"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/scheduler"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/template"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		appLogger.SetLevel(level)
	}
	if cfg.App.Environment == "production" {
		appLogger.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := initDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.LeadReminder{},
		&models.TimelineConfig{},
		&models.DeliveryLog{},
		&models.AgentPreference{},
	); err != nil {
		log.Fatalf("Failed to auto-migrate: %v", err)
	}
	log.Println("Database migration completed")

	// Initialize repositories
	reminderRepo := repository.NewReminderRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	deliveryRepo := repository.NewDeliveryLogRepository(db)

	// Presence registry with background sweep
	registry := presence.NewRegistry(cfg.Presence.StaleAfter)
	sweepStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Presence.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := registry.Sweep(0); removed > 0 {
					appLogger.WithField("removed", removed).Debug("Swept stale presence records")
				}
			case <-sweepStop:
				return
			}
		}
	}()

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	wsHub.OnUserDisconnected = func(tenantID, userID string) {
		if id, err := uuid.Parse(userID); err == nil {
			registry.Remove(id)
		}
	}
	go wsHub.Run()

	// Redis for rate limiting; the limiter falls back to in-memory counters
	// when Redis is down.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		appLogger.WithError(err).Warn("Redis unavailable, rate limiting will use in-memory counters")
	}

	rateLimiter := dispatch.NewRateLimiter(redisClient, appLogger, dispatch.RateLimitConfig{
		TenantHourlyLimit:    cfg.RateLimit.TenantHourlyLimit,
		TenantDailyLimit:     cfg.RateLimit.TenantDailyLimit,
		RecipientHourlyLimit: cfg.RateLimit.RecipientHourlyLimit,
		RedisKeyPrefix:       "reminder:ratelimit:",
	})

	// Outbound providers
	providerCfg := &dispatch.ProviderConfig{
		AWSRegion:          cfg.Email.AWSRegion,
		AWSAccessKeyID:     cfg.Email.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.Email.AWSSecretAccessKey,
		SESFrom:            cfg.Email.SESFrom,
		SESFromName:        cfg.Email.SESFromName,
		SendGridAPIKey:     cfg.Email.SendGridAPIKey,
		SendGridFrom:       cfg.Email.SendGridFrom,
		SMTPHost:           cfg.Email.SMTPHost,
		SMTPPort:           cfg.Email.SMTPPort,
		SMTPUsername:       cfg.Email.SMTPUsername,
		SMTPPassword:       cfg.Email.SMTPPassword,
		SMTPFrom:           cfg.Email.SMTPFrom,
		SMTPFromName:       cfg.Email.SMTPFromName,
		SNSFrom:            cfg.SMS.SNSFrom,
		FCMProjectID:       cfg.Push.FCMProjectID,
		FCMCredentials:     cfg.Push.FCMCredentials,
	}

	emailProvider := buildEmailProvider(providerCfg, cfg.Email.EnableFailover)

	var smsProvider dispatch.Provider
	if cfg.SMS.Enabled {
		sns, err := dispatch.NewSNSProvider(providerCfg)
		if err != nil {
			appLogger.WithError(err).Warn("Failed to initialize SNS provider, SMS disabled")
		} else {
			smsProvider = sns
		}
	}

	var pushProvider dispatch.Provider
	if cfg.Push.Enabled && cfg.Push.FCMProjectID != "" {
		fcm, err := dispatch.NewFCMProvider(providerCfg)
		if err != nil {
			appLogger.WithError(err).Warn("Failed to initialize FCM provider, push disabled")
		} else {
			pushProvider = fcm
		}
	}

	// Pub/Sub audit stream is optional
	var auditPublisher *dispatch.AuditPublisher
	if cfg.PubSub.Enabled && cfg.PubSub.ProjectID != "" {
		auditPublisher, err = dispatch.NewAuditPublisher(cfg.PubSub.ProjectID, cfg.PubSub.TopicID, appLogger)
		if err != nil {
			appLogger.WithError(err).Warn("Failed to initialize audit publisher, fired events will not be streamed")
		}
	}

	templates := template.NewEngine()
	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		EmailProvider: emailProvider,
		SMSProvider:   smsProvider,
		PushProvider:  pushProvider,
		Broadcaster:   wsHub,
		RateLimiter:   rateLimiter,
		AppBaseURL:    cfg.App.BaseURL,
		SendTimeout:   cfg.Scheduler.DispatchTimeout,
	}, prefRepo, deliveryRepo, templates, appLogger)

	// Reminder scheduler
	var auditSink scheduler.AuditSink
	if auditPublisher != nil {
		auditSink = auditPublisher
	}
	reminderScheduler := scheduler.New(cfg.Scheduler, reminderRepo, timelineRepo, registry, dispatcher, auditSink, appLogger)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	reminderScheduler.Start(schedulerCtx)

	// Initialize health handler early (NATS client may be nil initially)
	healthHandler := handlers.NewHealthHandler(db, nil)

	// Connect to NATS with background retry
	var natsClient *natsc.Client
	var natsSubscriber *natsc.Subscriber

	natsClient, err = natsc.NewClient(&cfg.NATS)
	if err != nil {
		log.Printf("Warning: Failed to connect to NATS: %v", err)
		log.Println("Will retry NATS connection in background...")

		go func() {
			retryInterval := 10 * time.Second
			maxRetries := 30

			for i := 0; i < maxRetries; i++ {
				time.Sleep(retryInterval)
				log.Printf("Retrying NATS connection (attempt %d/%d)...", i+1, maxRetries)

				client, err := natsc.NewClient(&cfg.NATS)
				if err != nil {
					log.Printf("NATS retry failed: %v", err)
					continue
				}

				natsClient = client
				log.Println("Successfully connected to NATS on retry")

				natsSubscriber = natsc.NewSubscriber(natsClient, reminderRepo)
				if err := natsSubscriber.Start(context.Background()); err != nil {
					log.Printf("Warning: Failed to start NATS subscriber: %v", err)
				}
				healthHandler.SetNATSClient(natsClient)
				break
			}
		}()
	} else {
		healthHandler.SetNATSClient(natsClient)
		natsSubscriber = natsc.NewSubscriber(natsClient, reminderRepo)
		if err := natsSubscriber.Start(context.Background()); err != nil {
			log.Printf("Warning: Failed to start NATS subscriber: %v", err)
		}
	}

	// Initialize handlers
	reminderHandler := handlers.NewReminderHandler(reminderRepo, deliveryRepo)
	timelineHandler := handlers.NewTimelineHandler(timelineRepo, dispatcher)
	prefHandler := handlers.NewPreferenceHandler(prefRepo)
	wsHandler := handlers.NewWebSocketHandler(wsHub, registry, &cfg.WebSocket)

	// Set up router
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	// Health endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/livez", healthHandler.Livez)
	router.GET("/readyz", healthHandler.Readyz)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.TenantAuth())
	{
		reminders := api.Group("/reminders")
		{
			reminders.GET("", reminderHandler.List)
			reminders.GET("/:id", reminderHandler.Get)
			reminders.DELETE("/:id", reminderHandler.Cancel)
			reminders.GET("/:id/deliveries", reminderHandler.Deliveries)
			reminders.POST("/test", timelineHandler.SendTest)
		}

		timeline := api.Group("/timeline")
		{
			timeline.GET("", timelineHandler.Get)
			timeline.PUT("", timelineHandler.Update)
			timeline.POST("/reset", timelineHandler.Reset)
		}

		preferences := api.Group("/preferences")
		{
			preferences.GET("", prefHandler.Get)
			preferences.PUT("", prefHandler.Update)
			preferences.PUT("/push-tokens", prefHandler.UpdatePushTokens)
		}

		api.GET("/presence/status", wsHandler.GetStatus)
		api.GET("/ws/notifications", wsHandler.Handle)
	}

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Reminder service started on port %d", cfg.Server.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the scheduler first so no new sends start mid-shutdown
	schedulerCancel()
	reminderScheduler.Stop()
	close(sweepStop)

	if natsSubscriber != nil {
		natsSubscriber.Stop()
	}
	if natsClient != nil {
		natsClient.Close()
	}

	wsHub.Shutdown()

	if auditPublisher != nil {
		if err := auditPublisher.Close(); err != nil {
			log.Printf("Error closing audit publisher: %v", err)
		}
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Reminder service stopped")
}

// buildEmailProvider assembles the email failover chain: SES primary,
// SendGrid fallback, SMTP last resort.
func buildEmailProvider(cfg *dispatch.ProviderConfig, enableFailover bool) dispatch.Provider {
	var chain []dispatch.Provider

	ses, err := dispatch.NewSESProvider(cfg)
	if err != nil {
		log.Printf("Warning: Failed to initialize SES provider: %v", err)
	} else {
		chain = append(chain, ses)
	}

	if cfg.SendGridAPIKey != "" {
		chain = append(chain, dispatch.NewSendGridProvider(cfg))
	}
	if cfg.SMTPHost != "" {
		chain = append(chain, dispatch.NewSMTPProvider(cfg))
	}

	if len(chain) == 0 {
		log.Println("Warning: no email providers configured, reminder emails disabled")
		return nil
	}

	return dispatch.NewFailoverProvider("EMAIL", chain, &dispatch.FailoverConfig{
		EnableFailover: enableFailover,
		MaxRetries:     0,
		RetryDelay:     2 * time.Second,
	})
}

func initDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)

	gormLogger := logger.Default.LogMode(logger.Silent)
	if os.Getenv("DB_LOG_LEVEL") == "info" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
