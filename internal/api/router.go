package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reposcout/reposcout/internal/cache"
	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/feed"
	"github.com/reposcout/reposcout/pkg/config"
	"github.com/reposcout/reposcout/pkg/logging"
)

// Router sets up API routes
type Router struct {
	db           *db.DB
	redisCache   *cache.Cache
	resultCache  *cache.ResultCache
	feedAPI      *FeedAPI
	interactions *InteractionsAPI
	clusters     *ClustersAPI
	logger       *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(cfg *config.Config, database *db.DB, redisCache *cache.Cache) *Router {
	resultCache := cache.NewResultCache(cfg.Cache.SeenTTL, cfg.Cache.SavedTTL)
	builder := feed.NewBuilder(database, resultCache)
	base := db.NewRepository(database.DB)

	return &Router{
		db:           database,
		redisCache:   redisCache,
		resultCache:  resultCache,
		feedAPI:      NewFeedAPI(builder, db.NewProfileRepository(base)),
		interactions: NewInteractionsAPI(db.NewSeenRepository(base), resultCache),
		clusters:     NewClustersAPI(cfg, database, redisCache),
		logger:       logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/feed", r.feedAPI.GetFeed)
		v1.POST("/interactions", r.interactions.RecordInteraction)
		v1.GET("/users/:user_id/saved", r.feedAPI.GetSaved)
		v1.GET("/clusters", r.clusters.ListClusters)
		v1.GET("/clusters/:cluster_id/repos", r.clusters.GetClusterRepos)
	}
}

func (r *Router) healthHandler(c *gin.Context) {
	if err := r.db.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DEGRADED",
			"error":  "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "reposcout-api",
	})
}
