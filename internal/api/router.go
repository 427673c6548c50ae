package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/exposehub/expose-gateway/docs"
	"github.com/exposehub/expose-gateway/internal/api/handler"
	"github.com/exposehub/expose-gateway/internal/api/middleware"
	"github.com/exposehub/expose-gateway/internal/core/service"
	mongodb "github.com/exposehub/expose-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/exposehub/expose-gateway/internal/infrastructure/db/redis"
	"github.com/exposehub/expose-gateway/internal/infrastructure/queue"
	"github.com/exposehub/expose-gateway/internal/infrastructure/upstream"
	"github.com/exposehub/expose-gateway/internal/pkg/config"
	"github.com/exposehub/expose-gateway/pkg/logger"
)

// NewRouter builds the Echo instance with all routes registered and starts
// the background refresher (and the sweep, when enabled). ctx bounds the
// lifetime of those background workers. The registry service is constructed
// here once and passed by reference into every handler; there is no ambient
// global registry state.
func NewRouter(ctx context.Context, db *mongo.Database, rdb *redis.Client, cfg *config.Config) *echo.Echo {
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("expose"))
	e.Use(middleware.Identity(cfg.JWTSecret))

	// --- Dependencies ---
	instanceRepo := mongodb.NewInstanceRepository(db)
	if err := instanceRepo.EnsureIndexes(ctx); err != nil {
		log.Error().Err(err).Msg("instance index creation failed")
	}
	instanceCache := redisdb.NewInstanceCache(rdb, cfg.CacheTTL)
	registry := service.NewRegistryService(instanceRepo, instanceCache, cfg.LivenessTTL, logger.Component("registry"))

	forwarder := upstream.NewForwarder(cfg.ForwardTimeout, logger.Component("forwarder"))
	snapshotClient := upstream.NewSnapshotClient(cfg.SnapshotTimeout)
	snapshotCache := service.NewSnapshotCache(snapshotClient, instanceRepo, logger.Component("snapshots"))
	gate := upstream.NewAccessClient(cfg.AccessTimeout, cfg.AccessDefault == "allow", logger.Component("access"))
	gateway := service.NewGateway(registry, forwarder, snapshotCache, gate, cfg.LivenessTTL, logger.Component("gateway"))

	refresher := queue.NewRefresher(0, registry, snapshotCache, logger.Component("refresher"))
	refresher.Start(ctx)

	if cfg.Sweep.Enabled {
		sweeper := queue.NewSweeper(instanceRepo, cfg.Sweep.Interval, cfg.Sweep.After, logger.Component("sweeper"))
		sweeper.Start(ctx)
	}

	operatorRepo := mongodb.NewOperatorRepository(db)
	if err := operatorRepo.EnsureIndexes(ctx); err != nil {
		log.Error().Err(err).Msg("operator index creation failed")
	}
	authService := service.NewAuthService(operatorRepo, cfg.JWTSecret, 0)

	registryHandler := handler.NewRegistryHandler(registry, refresher)
	proxyHandler := handler.NewProxyHandler(gateway)
	viewHandler := handler.NewViewHandler(gateway)
	authHandler := handler.NewAuthHandler(authService)
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	// --- Registry routes ---
	e.POST("/register", registryHandler.Register)
	e.POST("/heartbeat/:token", registryHandler.Heartbeat)
	e.DELETE("/deregister/:token", registryHandler.Deregister)
	e.GET("/", registryHandler.ListOnline)
	e.GET("/instances/mine", registryHandler.ListMine, middleware.RequireIdentity())

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Read views ---
	e.GET("/view/:username/:kind", viewHandler.Get)

	// --- Probes, metrics, docs ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Reverse proxy catch-all (static routes above take precedence) ---
	proxyMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodPatch,
	}
	e.Match(proxyMethods, "/:username/*", proxyHandler.Forward)

	return e
}
