package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reposcout/reposcout/internal/cache"
	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/models"
	"github.com/reposcout/reposcout/pkg/config"
	"github.com/reposcout/reposcout/pkg/logging"
)

const clusterBrowseMaxLimit = 100

// ClustersAPI serves the non-personalized cluster browse endpoints
type ClustersAPI struct {
	cfg      *config.Config
	db       *db.DB
	clusters *db.ClusterRepository
	cache    *cache.Cache
	logger   *zap.Logger
}

// NewClustersAPI creates a new clusters API
func NewClustersAPI(cfg *config.Config, database *db.DB, redisCache *cache.Cache) *ClustersAPI {
	return &ClustersAPI{
		cfg:      cfg,
		db:       database,
		clusters: db.NewClusterRepository(db.NewRepository(database.DB)),
		cache:    redisCache,
		logger:   logging.GetLogger().With(zap.String("component", "clusters-api")),
	}
}

// ClusterResponse is the wire form of one cluster catalog entry
type ClusterResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RepoCount   int64  `json:"repo_count"`
}

// ListClusters handles GET /api/v1/clusters
func (a *ClustersAPI) ListClusters(c *gin.Context) {
	clusters, err := a.clusters.GetAll(c.Request.Context())
	if err != nil {
		a.logger.Error("Failed to list clusters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list clusters"})
		return
	}

	out := make([]ClusterResponse, len(clusters))
	for i, cl := range clusters {
		out[i] = ClusterResponse{
			ID:          cl.ID,
			Name:        cl.Name,
			Description: cl.Description,
			RepoCount:   cl.RepoCount,
		}
	}
	c.JSON(http.StatusOK, gin.H{"clusters": out})
}

// GetClusterRepos handles GET /api/v1/clusters/:cluster_id/repos. The
// listing is the same for every caller, so pages are cached in redis.
func (a *ClustersAPI) GetClusterRepos(c *gin.Context) {
	clusterID := c.Param("cluster_id")

	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > clusterBrowseMaxLimit {
		limit = clusterBrowseMaxLimit
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	cluster, err := a.clusters.GetByID(c.Request.Context(), clusterID)
	if err != nil {
		a.logger.Error("Failed to load cluster", zap.String("cluster", clusterID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster"})
		return
	}
	if cluster == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
		return
	}

	cacheKey := cache.HashKey("cluster-repos", clusterID, strconv.Itoa(limit), strconv.Itoa(offset))
	var cached []RepoResponse
	if err := a.cache.GetJSON(cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"cluster": clusterID, "items": cached})
		return
	}

	var repos []*models.Repo
	err = a.db.DB.WithContext(c.Request.Context()).
		Joins("JOIN scout_cluster_memberships ON scout_cluster_memberships.repo_id = scout_repos.id").
		Where("scout_cluster_memberships.cluster_id = ?", clusterID).
		Order("scout_repos.sc_recommend DESC, scout_repos.id ASC").
		Limit(limit).
		Offset(offset).
		Preload("Topics").
		Find(&repos).Error
	if err != nil {
		a.logger.Error("Failed to list cluster repos", zap.String("cluster", clusterID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list cluster repos"})
		return
	}

	items := toRepoResponses(repos)
	if err := a.cache.SetJSON(cacheKey, items, a.cfg.Cache.ClusterTTL); err != nil && err != cache.ErrCacheDisabled {
		a.logger.Warn("Failed to cache cluster repos", zap.String("cluster", clusterID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"cluster": clusterID, "items": items})
}
