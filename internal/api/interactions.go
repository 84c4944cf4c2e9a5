package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reposcout/reposcout/internal/cache"
	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/models"
	"github.com/reposcout/reposcout/pkg/logging"
)

// InteractionsAPI records user interactions with feed repositories
type InteractionsAPI struct {
	seen        *db.SeenRepository
	resultCache *cache.ResultCache
	logger      *zap.Logger
}

// NewInteractionsAPI creates a new interactions API
func NewInteractionsAPI(seen *db.SeenRepository, resultCache *cache.ResultCache) *InteractionsAPI {
	return &InteractionsAPI{
		seen:        seen,
		resultCache: resultCache,
		logger:      logging.GetLogger().With(zap.String("component", "interactions-api")),
	}
}

type interactionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	RepoID int64  `json:"repo_id" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// RecordInteraction handles POST /api/v1/interactions. The write is only
// reported successful once the user's cached id sets are invalidated, so
// the next feed request cannot serve the repo from a stale set.
func (i *InteractionsAPI) RecordInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, repo_id and action are required"})
		return
	}
	if !models.ValidAction(req.Action) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	rec := &models.SeenRecord{
		UserID:    req.UserID,
		RepoID:    req.RepoID,
		Action:    req.Action,
		CreatedAt: time.Now(),
	}
	if err := i.seen.Record(c.Request.Context(), rec); err != nil {
		i.logger.Error("Failed to record interaction",
			zap.String("user_id", req.UserID),
			zap.Int64("repo_id", req.RepoID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record interaction"})
		return
	}

	if err := i.invalidate(req.UserID, req.Action); err != nil {
		i.logger.Error("Failed to invalidate cached sets after interaction",
			zap.String("user_id", req.UserID),
			zap.String("action", req.Action),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh cached state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (i *InteractionsAPI) invalidate(userID, action string) error {
	if err := i.resultCache.Invalidate(userID, cache.FamilySeen); err != nil {
		return err
	}
	if action == models.ActionLiked || action == models.ActionSaved {
		return i.resultCache.Invalidate(userID, cache.FamilySaved)
	}
	return nil
}
