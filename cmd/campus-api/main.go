package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/campus-ops-api/api/swagger"
	"github.com/noah-isme/campus-ops-api/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-ops-api/internal/middleware"
	"github.com/noah-isme/campus-ops-api/internal/repository"
	"github.com/noah-isme/campus-ops-api/internal/service"
	"github.com/noah-isme/campus-ops-api/pkg/cache"
	"github.com/noah-isme/campus-ops-api/pkg/config"
	"github.com/noah-isme/campus-ops-api/pkg/database"
	"github.com/noah-isme/campus-ops-api/pkg/jobs"
	"github.com/noah-isme/campus-ops-api/pkg/logger"
	"github.com/noah-isme/campus-ops-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/campus-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-ops-api/pkg/middleware/requestid"
	securemiddleware "github.com/noah-isme/campus-ops-api/pkg/middleware/secure"
	"github.com/noah-isme/campus-ops-api/pkg/ratelimit"
	"github.com/noah-isme/campus-ops-api/pkg/realtime"
	"github.com/noah-isme/campus-ops-api/pkg/storage"
)

// @title Campus Ops API
// @version 1.0.0
// @description Complaints, library seats, hostel resource usage, alerts and events for a residential campus.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
	logr.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	loc := cfg.Location()
	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(rdb, logr), metrics, cfg.Dashboard.CacheTTL, logr, true)

	hub := realtime.NewHub(originChecker(cfg.CORS.AllowedOrigins), logr)
	hub.OnCountChange(metrics.RealtimeConnections)
	defer hub.Close()

	images, uploads, err := newImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	libraryRepo := repository.NewLibraryRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	eventRepo := repository.NewEventRepository(db)
	foodRepo := repository.NewFoodRepository(db)

	gamification := service.NewGamificationService(userRepo, complaintRepo, loc, logr)
	authSvc := service.NewAuthService(userRepo, gamification, usageRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "campus-ops-api",
		Location:          loc,
	})
	userSvc := service.NewUserService(userRepo, validate, logr, loc)
	complaintSvc := service.NewComplaintService(complaintRepo, userRepo, gamification, gamification, images, metrics, validate, logr, service.ComplaintConfig{
		AutoAssignThreshold: cfg.Complaints.AutoAssignThreshold,
		MaxEmployeeLoad:     cfg.Complaints.MaxEmployeeLoad,
		EscalationDwell:     cfg.Complaints.EscalationDwell,
		StrictTransitions:   cfg.Complaints.StrictTransitions,
		FallbackAssigneeID:  cfg.Complaints.FallbackAssigneeID,
		ImageURLTTL:         cfg.Storage.SignedURLTTL,
	})
	librarySvc := service.NewLibraryService(libraryRepo, userRepo, cacheSvc, hub, metrics, validate, logr, service.LibraryConfig{
		SweepInterval:   cfg.Library.SweepInterval,
		DefaultDuration: cfg.Library.DefaultDuration,
		MaxDuration:     cfg.Library.MaxDuration,
		CacheTTL:        cfg.Library.CacheTTL,
	})
	alertSvc := service.NewAlertService(alertRepo, cacheSvc, hub, metrics, validate, logr)
	usageSvc := service.NewUsageService(usageRepo, alertSvc, userRepo, cacheSvc, validate, logr, loc, cfg.Dashboard.CacheTTL)
	foodSvc := service.NewFoodService(foodRepo, usageRepo, alertSvc, validate, logr, loc)
	insightSvc := service.NewInsightService(usageRepo, librarySvc, cacheSvc, logr, loc, cfg.Dashboard.CacheTTL)

	mailQueue := jobs.NewQueue("event-mail", service.ConfirmationMailHandler(mailer.New(cfg.SMTP, logr), loc), jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 3,
		RetryDelay: 10 * time.Second,
		Logger:     logr,
	})
	eventSvc := service.NewEventService(eventRepo, userRepo, mailQueue, validate, logr)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(reqidmiddleware.Middleware())
	router.Use(logger.GinMiddleware(logr))
	router.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	router.Use(securemiddleware.Headers("/docs"))
	router.Use(internalmiddleware.Metrics(metrics))

	checks := map[string]handler.Pinger{
		"postgres": db.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	router.GET("/health", metricsHandler.Health)
	router.GET("/ready", metricsHandler.Ready)
	router.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := router.Group(cfg.APIPrefix)
	if cfg.RateLimit.Enabled {
		limiter, err := newLimiter(rdb, cfg.RateLimit)
		if err != nil {
			return err
		}
		api.Use(internalmiddleware.RateLimit(limiter, int(cfg.RateLimit.Window.Seconds()), logr))
	}

	handlers := handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Users:      handler.NewUserHandler(userSvc),
		Complaints: handler.NewComplaintHandler(complaintSvc, cfg.Storage.MaxUploadBytes),
		Library:    handler.NewLibraryHandler(librarySvc),
		Usage:      handler.NewUsageHandler(usageSvc, cfg.Storage.MaxUploadBytes),
		Alerts:     handler.NewAlertHandler(alertSvc),
		Events:     handler.NewEventHandler(eventSvc),
		Food:       handler.NewFoodHandler(foodSvc),
		Insights:   handler.NewInsightHandler(insightSvc),
		Realtime:   handler.NewRealtimeHandler(hub, logr),
		Metrics:    metricsHandler,
	}
	if uploads != nil {
		handlers.Uploads = handler.NewUploadHandler(uploads)
	}
	handler.RegisterRoutes(api, handlers, handler.RouteOptions{
		Tokens: authSvc,
		Audit:  userRepo,
		Logger: logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return librarySvc.Run(gctx) })
	g.Go(func() error { return mailQueue.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newImageStore picks the complaint image backend. The local driver also
// returns the opener behind the signed uploads route.
func newImageStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, *storage.LocalStorage, error) {
	switch cfg.Storage.Driver {
	case "minio":
		store, err := storage.NewMinioStore(ctx,
			cfg.Storage.MinioEndpoint,
			cfg.Storage.MinioAccessKey,
			cfg.Storage.MinioSecretKey,
			cfg.Storage.MinioBucket,
			cfg.Storage.MinioUseSSL,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("init minio store: %w", err)
		}
		return store, nil, nil
	case "", "local":
		signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		local, err := storage.NewLocalStorage(cfg.Storage.Dir, signer, cfg.APIPrefix+"/uploads")
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newLimiter(rdb *redis.Client, cfg config.RateLimitConfig) (*ratelimit.FixedWindowLimiter, error) {
	limiter, err := ratelimit.NewFixedWindowLimiter(rdb, cfg.Prefix, cfg.Limit, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}
	return limiter, nil
}

func originChecker(origins []string) func(r *http.Request) bool {
	set := corsmiddleware.OriginSet(origins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || corsmiddleware.Allowed(set, origin)
	}
}
