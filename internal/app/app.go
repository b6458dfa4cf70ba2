package app

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bellecare/server/internal/module/booking"
	"github.com/bellecare/server/internal/module/formation"
	"github.com/bellecare/server/internal/module/notification"
	"github.com/bellecare/server/internal/module/payment"
	"github.com/bellecare/server/internal/module/payment/provider"
	"github.com/bellecare/server/internal/module/promo"
	"github.com/bellecare/server/internal/shared/auth"
	"github.com/bellecare/server/internal/shared/cache"
	"github.com/bellecare/server/internal/shared/config"
	"github.com/bellecare/server/internal/shared/database"
	"github.com/bellecare/server/internal/shared/lock"
	"github.com/bellecare/server/internal/shared/logger"
	"github.com/bellecare/server/internal/shared/metrics"
	"github.com/bellecare/server/internal/shared/middleware"
)

// App wires the payment platform together: infrastructure, modules, routes.
type App struct {
	config  *config.Config
	db      *gorm.DB
	redis   goredis.UniversalClient
	router  *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	metricsRegistry *prometheus.Registry

	paymentHandler *payment.Handler
	webhookHandler *payment.WebhookHandler
	reminderJob    *booking.ReminderJob
}

// New creates a fully wired application.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{config: cfg, logger: log}

	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}
	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}
	app.setupRouter()

	return app, nil
}

func (a *App) initInfrastructure() error {
	db, err := database.New(&a.config.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.db = db

	if err := a.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.NewRedisClient(&a.config.Redis)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(registry)
	a.metricsRegistry = registry

	return nil
}

func (a *App) migrate() error {
	return a.db.AutoMigrate(
		&payment.Payment{},
		&payment.PaymentConfiguration{},
		&promo.PromoCode{},
		&promo.Usage{},
		&booking.Appointment{},
		&formation.Formation{},
		&formation.Enrollment{},
	)
}

func (a *App) initModules() error {
	// Promo compensation
	promoRepo := promo.NewRepository(a.db)
	promoService := promo.NewService(promoRepo, a.logger)

	// Notifications
	notifier := notification.NewService(nil, &a.config.Notifications, a.logger)

	// Payable entity sources
	bookingRepo := booking.NewRepository(a.db)
	formationRepo := formation.NewRepository(a.db)

	entities := payment.NewEntityResolver()
	entities.Register(booking.NewSource(bookingRepo))
	entities.Register(formation.NewSource(formationRepo))

	// Payment providers
	registry := payment.NewProviderRegistry()
	registry.Register(provider.NewFedapay(&provider.FedapayConfig{
		BaseURL:     a.config.Providers.Fedapay.BaseURL,
		APIKey:      a.config.Providers.Fedapay.APIKey,
		CallbackURL: a.config.Providers.Fedapay.CallbackURL,
		Timeout:     a.config.Providers.Fedapay.Timeout,
	}))
	registry.Register(provider.NewFeexpay(&provider.FeexpayConfig{
		BaseURL: a.config.Providers.Feexpay.BaseURL,
		APIKey:  a.config.Providers.Feexpay.APIKey,
		ShopID:  a.config.Providers.Feexpay.ShopID,
		Timeout: a.config.Providers.Feexpay.Timeout,
	}))

	// Payment core
	paymentRepo := payment.NewRepository(a.db)
	promoPort := &promoCompensator{service: promoService}
	reconciler := payment.NewReconciler(
		paymentRepo,
		entities,
		promoPort,
		notifier,
		a.metrics,
		a.logger,
	)
	resolver := payment.NewTypeResolver(entities, paymentRepo)
	paymentService := payment.NewService(paymentRepo, resolver, registry, reconciler, promoPort, a.metrics, a.logger)

	a.paymentHandler = payment.NewHandler(paymentService, a.logger)
	a.webhookHandler = payment.NewWebhookHandler(reconciler, a.metrics, a.logger)

	// Appointment reminders
	locker := lock.NewSingleFlight(a.redis, a.config.Booking.ReminderInterval, 2*a.config.Booking.ReminderInterval)
	a.reminderJob = booking.NewReminderJob(
		bookingRepo,
		locker,
		notifier,
		a.config.Booking.ReminderInterval,
		a.config.Booking.ReminderWindow,
		a.logger,
	)
	a.reminderJob.Start()

	return nil
}

func (a *App) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.Metrics(a.metrics))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.metricsRegistry, promhttp.HandlerOpts{})))

	// Provider callbacks are server-to-server and unauthenticated; payload
	// validation and reference lookup are the gate.
	webhooks := router.Group("/webhook")
	a.webhookHandler.RegisterRoutes(webhooks)

	api := router.Group("/")
	api.Use(auth.Middleware(a.config.Auth.JWTSecret))
	a.paymentHandler.RegisterRoutes(api)

	a.router = router
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop shuts down background components and closes connections.
func (a *App) Stop() {
	if a.reminderJob != nil {
		a.reminderJob.Stop()
	}
	if a.redis != nil {
		if err := cache.Close(a.redis); err != nil {
			a.logger.Warn("closing redis failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("closing database failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
