package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "procurement/api/swagger" // swagger docs
	"procurement/internal/cache"
	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/events"
	"procurement/internal/handler"
	"procurement/internal/logger"
	"procurement/internal/metrics"
	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/quotation"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Procurement API
// @version         1.0
// @description     RFPs, vendor quotations with live totals, and purchase orders.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	db, err := database.NewConnection(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Msg("connected to postgres")

	engine := quotation.NewEngine(nil)
	if cfg.TaxRateTiers != "" {
		rates, err := quotation.ParseTiers(cfg.TaxRateTiers)
		if err != nil {
			log.Fatal().Err(err).Str("tiers", cfg.TaxRateTiers).Msg("invalid TAX_RATE_TIERS")
		}
		engine = quotation.NewEngine(rates)
	}
	pricing := service.NewPricing(engine, cfg.DefaultTaxRate, cfg.TotalEpsilon)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()

	var (
		rdb        *redis.Client
		comparison cache.Cache = cache.Nop{}
	)
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedisClient(startCtx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, caching and shared rate limits disabled")
		} else {
			defer rdb.Close()
			comparison = cache.NewRedisCache(rdb, cfg.CacheTTL, log)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	}
	defer publisher.Close()

	m := metrics.New(cfg.MetricsNamespace)

	limiterStore, err := middleware.NewLimiterStore(rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rate limiter store")
	}
	recalcLimit, err := middleware.RateLimit(limiterStore, cfg.RecalcRateLimit)
	if err != nil {
		log.Fatal().Err(err).Str("rate", cfg.RecalcRateLimit).Msg("invalid RECALC_RATE_LIMIT")
	}

	wsHub := websocket.NewHub(log)
	go wsHub.Run()
	defer wsHub.Stop()

	auth := middleware.NewAuth(cfg.JWTSecret)

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	vendorRepo := repository.NewVendorRepository(db)
	rfpRepo := repository.NewRFPRepository(db)
	quotationRepo := repository.NewQuotationRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	liveDrafts := service.NewLiveDrafts()
	auditService := service.NewAuditService(auditRepo, log)
	vendorService := service.NewVendorService(vendorRepo, txManager, auditService)
	rfpService := service.NewRFPService(service.RFPServiceDeps{
		RFPRepo:       rfpRepo,
		VendorRepo:    vendorRepo,
		QuotationRepo: quotationRepo,
		TxManager:     txManager,
		Pricing:       pricing,
		Cache:         comparison,
		Publisher:     publisher,
		Metrics:       m,
		Audit:         auditService,
		Logger:        log,
		Live:          liveDrafts,
	})
	quotationService := service.NewQuotationService(service.QuotationServiceDeps{
		RFPRepo:       rfpRepo,
		QuotationRepo: quotationRepo,
		TxManager:     txManager,
		Pricing:       pricing,
		Cache:         comparison,
		Publisher:     publisher,
		Notifier:      wsHub,
		Metrics:       m,
		Audit:         auditService,
		Logger:        log,
		Live:          liveDrafts,
	})
	poService := service.NewPurchaseOrderService(service.PurchaseOrderServiceDeps{
		PORepo:        poRepo,
		RFPRepo:       rfpRepo,
		QuotationRepo: quotationRepo,
		VendorRepo:    vendorRepo,
		TxManager:     txManager,
		Pricing:       pricing,
		Cache:         comparison,
		Publisher:     publisher,
		Metrics:       m,
		Audit:         auditService,
		Logger:        log,
		Live:          liveDrafts,
	})
	statisticsService := service.NewStatisticsService(statsRepo)
	taxService := service.NewTaxService(pricing)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics(m))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Vendors only join rooms of RFPs they can read.
	roomGuard := func(ctx context.Context, actor model.Actor, rfpID string) error {
		_, err := rfpService.GetRFP(ctx, actor, rfpID)
		return err
	}
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth, roomGuard)
	})

	handler.NewVendorHandler(vendorService, auth).RegisterRoutes(router.Group(""))
	handler.NewRFPHandler(rfpService, auth).RegisterRoutes(router.Group(""))
	handler.NewQuotationHandler(quotationService, auth, recalcLimit).RegisterRoutes(router.Group(""))
	handler.NewPurchaseOrderHandler(poService, auth).RegisterRoutes(router.Group(""))
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(router.Group(""))
	handler.NewStatisticsHandler(statisticsService, auth).RegisterRoutes(router.Group(""))
	handler.NewTaxHandler(taxService, auth).RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
