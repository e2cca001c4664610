package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	protocolapp "github.com/panda-sdl/backend/internal/application/protocol"
	runapp "github.com/panda-sdl/backend/internal/application/run"
	schedulingapp "github.com/panda-sdl/backend/internal/application/scheduling"
	"github.com/panda-sdl/backend/internal/domain/pipette"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/infrastructure/config"
	"github.com/panda-sdl/backend/internal/infrastructure/event"
	"github.com/panda-sdl/backend/internal/infrastructure/hardware"
	"github.com/panda-sdl/backend/internal/infrastructure/logger"
	"github.com/panda-sdl/backend/internal/infrastructure/persistence"
	"github.com/panda-sdl/backend/internal/interfaces/http/handler"
	"github.com/panda-sdl/backend/internal/interfaces/http/middleware"
	"github.com/panda-sdl/backend/internal/interfaces/http/router"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting PANDA Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	experimentRepo := persistence.NewGormExperimentRepository(db.DB)
	resultRepo := persistence.NewGormResultRepository(db.DB)
	wellRepo := persistence.NewGormWellRepository(db.DB)
	plateRepo := persistence.NewGormPlateRepository(db.DB)
	stockRepo := persistence.NewGormStockRepository(db.DB)
	wasteRepo := persistence.NewGormWasteRepository(db.DB)
	pipetteRepo := persistence.NewGormPipetteRepository(db.DB)
	queueRepo := persistence.NewGormQueueRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Restore the tip ledger, or start a fresh one on an empty table
	ctx := context.Background()
	tip, err := pipetteRepo.Load(ctx)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			log.Fatal("Failed to load pipette state", zap.Error(err))
		}
		tip, err = pipette.NewTracker(decimal.NewFromFloat(cfg.Pipetting.TipCapacity))
		if err != nil {
			log.Fatal("Invalid tip capacity", zap.Error(err))
		}
		if err := pipetteRepo.Save(ctx, tip); err != nil {
			log.Fatal("Failed to persist initial pipette state", zap.Error(err))
		}
		log.Info("Initialized new tip ledger", zap.String("capacity", tip.Capacity.String()))
	} else {
		log.Info("Restored tip ledger",
			zap.String("volume", tip.Volume.String()),
			zap.Int("uses", tip.Uses),
		)
	}

	// Hardware drivers. Serial drivers for the gantry, syringe pump and
	// potentiostat have not landed yet, so the rig runs on mocks.
	if !cfg.Hardware.UseMocks {
		log.Fatal("Real hardware drivers are not available in this build, set hardware.use_mocks",
			zap.String("motion_port", cfg.Hardware.MotionPort),
		)
	}
	motion := hardware.NewMockMotion(cfg.Hardware.MockStepTime, log)
	pump := hardware.NewMockPump(cfg.Hardware.MockStepTime, log)
	stat := hardware.NewMockPotentiostat(cfg.Hardware.MockStepTime, log)
	log.Info("Hardware mocks initialized", zap.Duration("step_time", cfg.Hardware.MockStepTime))

	// Initialize application services
	protocolService, err := protocolapp.NewService(protocolapp.ServiceParams{
		Motion:  motion,
		Pump:    pump,
		Tip:     tip,
		TipRepo: pipetteRepo,
		Stocks:  stockRepo,
		Wastes:  wasteRepo,
		Wells:   wellRepo,
		Constants: protocolapp.Constants{
			AirGap:              decimal.NewFromFloat(cfg.Pipetting.AirGap),
			DripStop:            decimal.NewFromFloat(cfg.Pipetting.DripStop),
			PurgeVolume:         decimal.NewFromFloat(cfg.Pipetting.PurgeVolume),
			WellOverdraw:        decimal.NewFromFloat(cfg.Pipetting.WellOverdraw),
			StockMarginFraction: decimal.NewFromFloat(cfg.Pipetting.StockMarginFraction),
			ClearOffsetMM:       cfg.Pipetting.ClearOffsetMM,
			VialClearanceMM:     cfg.Pipetting.VialClearanceMM,
		},
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create protocol service", zap.Error(err))
	}

	// Event bus carries experiment lifecycle events to in-process handlers
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	allocator := schedulingapp.NewAllocator(txScope, log,
		schedulingapp.WithAllocatorEvents(eventBus))

	var schedulerOpts []schedulingapp.SchedulerOption
	if cfg.Scheduler.RandomTiebreak {
		schedulerOpts = append(schedulerOpts, schedulingapp.WithRandomTiebreak(cfg.Scheduler.TiebreakSeed))
	}
	scheduler := schedulingapp.NewScheduler(txScope, log, schedulerOpts...)

	runner, err := runapp.NewRunner(runapp.RunnerParams{
		Queue:         scheduler,
		Protocols:     protocolService,
		Potentiostat:  stat,
		Experiments:   experimentRepo,
		Results:       resultRepo,
		Wells:         wellRepo,
		Events:        eventBus,
		RinseSolution: cfg.Runner.RinseSolution,
		Logger:        log,
	})
	if err != nil {
		log.Fatal("Failed to create runner", zap.Error(err))
	}

	// Execution loop. Polls the queue and runs one experiment at a time;
	// failed experiments are marked and the loop moves on.
	runCtx, stopRunner := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	if cfg.Runner.Enabled {
		go func() {
			defer close(runnerDone)
			ticker := time.NewTicker(cfg.Scheduler.PollInterval)
			defer ticker.Stop()
			log.Info("Runner started", zap.Duration("poll_interval", cfg.Scheduler.PollInterval))
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
				}
				for {
					err := runner.RunNext(runCtx)
					if err == nil {
						continue
					}
					if errors.Is(err, schedulingapp.ErrQueueEmpty) || errors.Is(err, context.Canceled) {
						break
					}
					log.Error("Experiment run failed", zap.Error(err))
					break
				}
			}
		}()
	} else {
		close(runnerDone)
		log.Info("Runner disabled, experiments will queue but not execute")
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Initialize HTTP handlers
	experimentHandler := handler.NewExperimentHandler(allocator, scheduler, experimentRepo, resultRepo, queueRepo)
	labwareHandler := handler.NewLabwareHandler(wellRepo, plateRepo, stockRepo, wasteRepo, pipetteRepo)
	systemHandler := handler.NewSystemHandler()

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Experiment domain (submission, queue, results)
	experimentRoutes := router.NewDomainGroup("experiments", "/experiments")
	experimentRoutes.POST("", experimentHandler.Create)
	experimentRoutes.GET("", experimentHandler.List)
	experimentRoutes.GET("/queue", experimentHandler.ListQueue)
	experimentRoutes.GET("/:id", experimentHandler.GetByID)
	experimentRoutes.GET("/:id/results", experimentHandler.ListResults)
	experimentRoutes.PATCH("/:id/priority", experimentHandler.UpdatePriority)

	// Labware domain (deck inspection, read only)
	labwareRoutes := router.NewDomainGroup("labware", "/labware")
	labwareRoutes.GET("/wells", labwareHandler.ListWells)
	labwareRoutes.GET("/wells/:well_id", labwareHandler.GetWell)
	labwareRoutes.GET("/vials", labwareHandler.ListVials)
	labwareRoutes.GET("/pipette", labwareHandler.GetPipette)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(experimentRoutes).
		Register(labwareRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Stop the runner first so no experiment is claimed mid-shutdown
	stopRunner()
	select {
	case <-runnerDone:
	case <-time.After(30 * time.Second):
		log.Warn("Runner did not stop in time")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
