// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/config"
	"github.com/ecodeli/ecodeli-backend/internal/handler"
	"github.com/ecodeli/ecodeli-backend/internal/middleware"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Requests  *handler.RequestHandler
	Providers *handler.ProviderHandler
	Accounts  *handler.AccountHandler
	DB        handler.Pinger
}

// Options carries the redis client and the middleware settings.  A nil
// Redis disables cache and rate limiting.
type Options struct {
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// Register installs the global middleware and every route on e.
func Register(e *echo.Echo, h Handlers, opts Options, log *zap.Logger) {
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))

	e.GET("/healthz", handler.Health(h.DB))

	registerRequests(e, h.Requests, opts, log)
	registerProviders(e, h.Providers, opts, log)

	e.POST("/api/utilisateurs", h.Accounts.Register)
}

func registerRequests(e *echo.Echo, rh *handler.RequestHandler, opts Options, log *zap.Logger) {
	cache := middleware.NewRedisCache(opts.Cache, opts.Redis, log)
	purge := middleware.NewCachePurge(opts.Cache, opts.Redis, log)

	g := e.Group("/api/demandes-service")
	g.POST("", rh.Create, purge)
	g.GET("", rh.List)
	g.GET("/disponibles", rh.Available, cache)
	g.GET("/statistiques", rh.Statistics, cache)
	g.GET("/categorie/:category", rh.ByCategory, cache)
	g.GET("/client/:clientId", rh.ByClient)
	g.POST("/recherche", rh.Search)
	g.GET("/:id", rh.Get)
	g.PUT("/:id", rh.Update, purge)
	g.PUT("/:id/statut", rh.ChangeStatus, purge)
	g.DELETE("/:id", rh.Cancel, purge)
}

func registerProviders(e *echo.Echo, ph *handler.ProviderHandler, opts Options, log *zap.Logger) {
	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis, log)

	g := e.Group("/api/prestataires/:id")
	g.GET("/demandes", ph.EligibleRequests)
	g.GET("/demandes/paginated", ph.EligibleRequestsPaginated)
	g.POST("/candidatures", ph.Apply, limit)
	g.GET("/candidatures", ph.Applications)
	g.GET("/statistiques", ph.Stats)
	g.GET("/validation", ph.Validation)
	g.POST("/justificatifs", ph.Upload, limit)
	g.GET("/justificatifs", ph.Justifications)
	g.DELETE("/justificatifs/:jid", ph.DeleteJustification, limit)
}
