// ridecore is the ride-hailing platform core: ride lifecycle, driver
// matching, location ingest, pricing, payments and the realtime gateway in
// a single binary. Redis and NATS are optional; without them the in-process
// lock, idempotency and bus implementations keep a single instance fully
// functional.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/internal/drivers"
	"github.com/velocab/ridecore/internal/geoindex"
	"github.com/velocab/ridecore/internal/locations"
	"github.com/velocab/ridecore/internal/notifications"
	"github.com/velocab/ridecore/internal/payments"
	"github.com/velocab/ridecore/internal/pricing"
	"github.com/velocab/ridecore/internal/realtime"
	"github.com/velocab/ridecore/internal/rides"
	"github.com/velocab/ridecore/migrations"
	"github.com/velocab/ridecore/pkg/bus"
	"github.com/velocab/ridecore/pkg/cache"
	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/database"
	"github.com/velocab/ridecore/pkg/health"
	"github.com/velocab/ridecore/pkg/idempotency"
	"github.com/velocab/ridecore/pkg/locks"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/middleware"
	redisclient "github.com/velocab/ridecore/pkg/redis"
	"github.com/velocab/ridecore/pkg/tracing"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     cfg.Server.ServiceName + "@" + version,
		}); err != nil {
			log.Warn("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	tracerProvider, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Server.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	}, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}
	if tracerProvider != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracerProvider.Shutdown(ctx)
		}()
	}

	// Postgres and schema.
	if err := database.Migrate(migrations.FS, ".", cfg.Database.DSN()); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Redis is optional; without it locks, idempotency and the cache fall
	// back to in-process implementations.
	var redisConn *redisclient.Client
	if cfg.Redis.Addr != "" {
		redisConn, err = redisclient.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, using in-process fallbacks", zap.Error(err))
			redisConn = nil
		} else {
			defer func() { _ = redisConn.Close() }()
		}
	}

	var (
		locker      locks.Locker
		idemStore   idempotency.Store
		cacheManager *cache.Manager
	)
	if redisConn != nil {
		locker = locks.NewRedisLocker(redisConn.Client)
		idemStore = idempotency.NewRedisStore(redisConn.Client)
		cacheManager = cache.NewManager(redisConn)
	} else {
		memLocker := locks.NewMemoryLocker()
		defer memLocker.Close()
		memStore := idempotency.NewMemoryStore()
		defer memStore.Close()
		locker = memLocker
		idemStore = memStore
	}

	// Update bus: NATS when configured, otherwise in-process.
	var updateBus bus.Bus
	var natsBus *bus.NATSBus
	if cfg.NATS.URL != "" {
		natsBus, err = bus.NewNATSBus(cfg.NATS.URL, cfg.Server.ServiceName)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		updateBus = natsBus
	} else {
		updateBus = bus.NewMemoryBus()
	}
	defer func() { _ = updateBus.Close() }()

	geoIndex := geoindex.New(geoindex.Options{
		StaleAfter:    cfg.Location.StaleAfter,
		SweepInterval: cfg.Location.SweepInterval,
	})
	defer geoIndex.Close()

	// Repositories and services.
	pricingService := pricing.NewService(pricing.NewRepository(pool), &cfg.Pricing)

	notifRepo := notifications.NewRepository(pool)
	notifService := notifications.NewService(notifRepo, updateBus, buildSMSSender(cfg, log), buildPushSender(cfg, log))

	driverService := drivers.NewService(drivers.NewRepository(pool), cacheManager, geoIndex, cfg.Location.StaleAfter)

	rideService := rides.NewService(
		rides.NewRepository(pool),
		driverService,
		pricingService,
		notifService,
		updateBus,
		cacheManager,
		locker,
		geoIndex,
		&cfg.Matching,
	)

	locationRepo := locations.NewRepository(pool)
	batcher := locations.NewBatcher(locationRepo, &cfg.Location)
	defer batcher.Close()
	locationService := locations.NewService(geoIndex, batcher, updateBus, driverService, rideService)

	paymentGateway := payments.NewResilientGateway(
		payments.NewStripeGateway(cfg.Payments.StripeAPIKey),
		cfg.Resilience.CircuitBreaker.SettingsFor("stripe-api"),
	)
	paymentService := payments.NewService(payments.NewRepository(pool), idemStore, paymentGateway, notifService, &cfg.Payments)

	gateway := realtime.NewGateway(updateBus)
	defer gateway.Close()

	router := buildRouter(cfg)

	healthHandler := health.NewHandler(cfg.Server.ServiceName)
	healthHandler.Register("postgres", health.PostgresChecker(pool))
	if redisConn != nil {
		healthHandler.Register("redis", health.RedisChecker(redisConn.Client))
	}
	if natsBus != nil {
		healthHandler.Register("nats", health.StatusChecker("nats", natsBus.Connected))
	}
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rideHandler := rides.NewHandler(rideService)
	api := router.Group("/api/v1")
	{
		ridesGroup := api.Group("/rides")
		rideHandler.RegisterRoutes(ridesGroup)
		pricing.NewHandler(pricingService).RegisterRoutes(api.Group("/fares"))

		driversGroup := api.Group("/drivers")
		drivers.NewHandler(driverService).RegisterRoutes(driversGroup)
		locations.NewHandler(locationService).RegisterRoutes(driversGroup)

		rideHandler.RegisterDriverRoutes(api.Group("/driver/rides"))

		tripsGroup := api.Group("/trips")
		rideHandler.RegisterTripRoutes(tripsGroup)

		paymentHandler := payments.NewHandler(paymentService)
		paymentHandler.RegisterRoutes(api.Group("/payments"))
		paymentHandler.RegisterTripRoutes(tripsGroup)

		notifications.NewHandler(notifService).RegisterRoutes(api.Group("/users"))
	}
	realtime.NewHandler(gateway).RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("starting server",
			zap.String("service", cfg.Server.ServiceName),
			zap.String("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func buildRouter(cfg *config.Config) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(cfg.Server.ServiceName))
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.RequestTimeout(time.Duration(cfg.Server.RequestTimeout) * time.Second))
	if cfg.Sentry.DSN != "" {
		router.Use(middleware.SentryMiddleware())
		router.Use(middleware.RecoveryWithSentry())
	} else {
		router.Use(gin.Recovery())
	}
	return router
}

// buildSMSSender wires Twilio behind a circuit breaker when credentials are
// present; nil disables SMS delivery.
func buildSMSSender(cfg *config.Config, log *zap.Logger) notifications.SMSSender {
	n := cfg.Notifications
	if n.TwilioAccountSID == "" || n.TwilioAuthToken == "" || n.TwilioFromNumber == "" {
		log.Info("twilio credentials absent, SMS delivery disabled")
		return nil
	}
	return notifications.NewResilientSMSSender(
		notifications.NewTwilioSender(n.TwilioAccountSID, n.TwilioAuthToken, n.TwilioFromNumber),
		cfg.Resilience.CircuitBreaker.SettingsFor("twilio-api"),
	)
}

// buildPushSender wires Firebase Cloud Messaging when configured.
func buildPushSender(cfg *config.Config, log *zap.Logger) notifications.PushSender {
	n := cfg.Notifications
	if n.FirebaseProjectID == "" {
		log.Info("firebase project absent, push delivery disabled")
		return nil
	}
	sender, err := notifications.NewFirebaseSender(context.Background(), n.FirebaseProjectID, n.FirebaseCredentials)
	if err != nil {
		log.Warn("firebase init failed, push delivery disabled", zap.Error(err))
		return nil
	}
	return notifications.NewResilientPushSender(sender, cfg.Resilience.CircuitBreaker.SettingsFor("fcm-api"))
}
