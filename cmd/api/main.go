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

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-calls/internal/adapter/handler"
	"github.com/johnquangdev/meeting-calls/internal/adapter/repository"
	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
	"github.com/johnquangdev/meeting-calls/internal/domain/repositories"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/external/livekit"
	httpmw "github.com/johnquangdev/meeting-calls/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/metrics"
	"github.com/johnquangdev/meeting-calls/internal/infrastructure/store"
	"github.com/johnquangdev/meeting-calls/internal/usecase/calls"
	"github.com/johnquangdev/meeting-calls/internal/usecase/meeting"
	"github.com/johnquangdev/meeting-calls/internal/usecase/notification"
	"github.com/johnquangdev/meeting-calls/pkg/config"
	"github.com/johnquangdev/meeting-calls/pkg/jwt"
	pkglogger "github.com/johnquangdev/meeting-calls/pkg/logger"
	pkgvalidator "github.com/johnquangdev/meeting-calls/pkg/validator"
)

// @title           Meeting Calls API
// @version         1.0
// @description     Call invitation lifecycle: ringing, answering, cancelling and meeting invitations, with a live websocket stream per user

// @BasePath  /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := pkglogger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Metrics live on their own registry so tests can build as many as they like
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("meeting_calls", registry)

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(m.EchoMiddleware())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Set-Cookie", "Cookie"},
		AllowCredentials: true,
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Production deployments apply migrations with scripts/migrate
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE and run scripts/migrate instead.")
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; use scripts/migrate in CI/CD/production")
	}

	// Initialize Redis
	log.Println("📦 Connecting to Redis...")
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	invitationRepo := repository.NewInvitationRepository(db)
	reunionRepo := repository.NewReunionRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Background work (change feed, resync) stops with this context
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Initialize invitation store
	clk := clock.New()
	var invitationStore repositories.InvitationStore
	switch cfg.Calls.StoreDriver {
	case config.StoreDriverMemory:
		log.Println("⚠️  Invitation store running in MEMORY mode (single process, nothing persisted)")
		invitationStore = store.NewMemoryStore(clk, logger, m)
	default:
		log.Printf("🗄️  Invitation store on PostgreSQL, changes on Redis channel %q", cfg.Calls.ChangeChannel)
		pgStore := store.NewPostgresStore(
			invitationRepo,
			store.NewRedisFeed(redisClient, cfg.Calls.ChangeChannel, logger),
			store.PostgresStoreConfig{
				ResyncInterval: cfg.Calls.ResyncInterval,
				Clock:          clk,
				Logger:         logger,
				Metrics:        m,
			},
		)
		go func() {
			if err := pgStore.Start(appCtx); err != nil {
				logger.Error("invitation change feed stopped", zap.Error(err))
			}
		}()
		invitationStore = pgStore
	}

	// Initialize LiveKit client
	log.Println("🎥 Initializing LiveKit client...")
	livekitClient := livekit.NewClient(
		cfg.LiveKit.URL,
		cfg.LiveKit.APIKey,
		cfg.LiveKit.APISecret,
		cfg.LiveKit.UseMock,
	)
	if cfg.LiveKit.UseMock {
		log.Println("⚠️  LiveKit running in MOCK mode (no real server needed)")
	} else {
		log.Printf("✅ LiveKit connected to: %s", cfg.LiveKit.URL)
	}

	// Initialize notification service
	log.Println("🔔 Initializing notification service...")
	notifyCfg := notification.DefaultConfig()
	notifyCfg.MaxElapsed = cfg.Calls.NotifyMaxElapsed
	notificationService := notification.NewService(notificationRepo, redisClient, notifyCfg, logger)
	fanOut := calls.NewFanOut(notificationService, logger, m)

	// Display names and meeting titles are cached for the enrichment of events
	profileCache := cache.NewMemoryStore[entities.DisplayInfo](clk, time.Minute)
	defer profileCache.Close()
	titleCache := cache.NewMemoryStore[string](clk, time.Minute)
	defer titleCache.Close()
	directory := calls.NewCachedDirectory(profileRepo, reunionRepo, profileCache, titleCache, cfg.Calls.EnrichCacheTTL, logger)

	// Initialize call service
	log.Println("📞 Initializing call service...")
	callService := calls.NewService(
		calls.Dependencies{
			Store:     invitationStore,
			Reunions:  reunionRepo,
			Transport: livekitClient,
			Directory: directory,
			FanOut:    fanOut,
		},
		calls.Options{
			RingWindow: cfg.Calls.RingWindow,
			Clock:      clk,
			Logger:     logger,
			Metrics:    m,
		},
	)
	log.Printf("✅ Call service ready (ring window %s)", cfg.Calls.RingWindow)

	// Initialize meeting service
	log.Println("🏠 Initializing meeting service...")
	meetingService := meeting.NewMeetingService(
		reunionRepo,
		invitationStore,
		livekitClient,
		fanOut,
		directory,
		meeting.Config{BaseURL: cfg.Server.BaseURL, Clock: clk, Logger: logger},
	)

	// Initialize JWT manager
	log.Println("🔑 Initializing JWT manager...")
	jwtManager := jwt.NewManager(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(
		cfg,
		handler.Handlers{
			Calls:         handler.NewCallsHandler(callService, logger),
			Sessions:      handler.NewSessionsHandler(callService, logger),
			Stream:        handler.NewStreamHandler(callService, cfg.Server.AllowedOrigins, logger),
			Meetings:      handler.NewMeetingHandler(meetingService, logger),
			Notifications: handler.NewNotificationsHandler(notificationService, logger),
		},
		httpmw.EchoAuth(jwtManager, logger),
		m.Handler(),
	)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	// Sessions go before the store so no timer fires into a closed feed
	callService.Shutdown()
	stopApp()

	log.Println("✅ Server stopped gracefully")
}
