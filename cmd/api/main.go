package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/api/handlers"
	redisc "github.com/contact-recon/backend/internal/cache/redis"
	"github.com/contact-recon/backend/internal/domainpattern"
	"github.com/contact-recon/backend/internal/extraction"
	"github.com/contact-recon/backend/internal/llm"
	"github.com/contact-recon/backend/internal/matcher"
	"github.com/contact-recon/backend/internal/metrics"
	"github.com/contact-recon/backend/internal/middleware/ratelimit"
	"github.com/contact-recon/backend/internal/middleware/security"
	"github.com/contact-recon/backend/internal/middleware/validation"
	"github.com/contact-recon/backend/internal/pipeline"
	"github.com/contact-recon/backend/internal/queue"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/config"
	appLogger "github.com/contact-recon/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting contact reconciliation API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *redisc.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisc.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache tier", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
			cfg.LLM.TimeoutSec,
		)
	} else {
		appLogger.Warn("No LLM API key configured, extraction runs heuristics only")
	}

	patternCache := domainpattern.NewCache(sqliteClient, redisClient,
		time.Duration(cfg.Pipeline.DomainPatternTTLMin)*time.Minute)
	analyzer := domainpattern.NewAnalyzer(sqliteClient, llmClient, patternCache)
	extractor := extraction.NewPipeline(llmClient, cfg.Pipeline)
	recordMatcher := matcher.NewMatcher(sqliteClient, llmClient, cfg.Pipeline.ArbitrationThreshold)

	broker := queue.NewBroker()
	queueManager := queue.NewManager(sqliteClient, broker, cfg.Queue)

	processor := pipeline.NewProcessor(sqliteClient, extractor, analyzer, recordMatcher, queueManager, cfg.Pipeline)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Reviewer-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		MaxBodySize: cfg.Server.BodyLimit,
		Logger:      appLogger.GetLogger(),
	}))

	recordsHandler := handlers.NewRecordsHandler(sqliteClient)
	queueHandler := handlers.NewQueueHandler(queueManager)
	processHandler := handlers.NewProcessHandler(processor)
	domainHandler := handlers.NewDomainHandler(analyzer)
	dashboardHandler := handlers.NewDashboardHandler(sqliteClient, redisClient,
		time.Duration(cfg.Queue.DashboardCacheSec)*time.Second)
	healthHandler := handlers.NewHealthHandler(sqliteClient, redisClient)
	wsHandler := handlers.NewWebSocketHandler(broker)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Post("/records", recordsHandler.IngestRecords)
	api.Get("/records/:id", recordsHandler.GetRecord)

	api.Get("/queue", queueHandler.ListEntries)
	api.Get("/queue/:id", queueHandler.GetEntry)
	api.Post("/queue/:id/approve", queueHandler.ApproveEntry)
	api.Post("/queue/:id/reject", queueHandler.RejectEntry)
	api.Post("/queue/bulk-approve", queueHandler.BulkApprove)
	api.Post("/queue/cleanup", queueHandler.Cleanup)

	api.Post("/process/record/:id", processHandler.ProcessRecord)
	api.Post("/process/batch", processHandler.ProcessBatch)
	api.Post("/process/duplicates", processHandler.ProcessDuplicates)
	api.Post("/process/splits", processHandler.ProcessSplits)
	api.Post("/process/full", processHandler.ProcessFull)

	api.Get("/domains/:domain", domainHandler.GetPattern)
	api.Post("/domains/:domain/refresh", domainHandler.RefreshPattern)

	api.Get("/dashboard/summary", dashboardHandler.GetSummary)
	api.Get("/health", healthHandler.Check)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/queue", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
