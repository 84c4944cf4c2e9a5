package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/feed"
	"github.com/reposcout/reposcout/internal/models"
	"github.com/reposcout/reposcout/pkg/logging"
)

// FeedAPI serves the personalized feed and saved-repos endpoints
type FeedAPI struct {
	builder  *feed.Builder
	profiles *db.ProfileRepository
	logger   *zap.Logger
}

// NewFeedAPI creates a new feed API
func NewFeedAPI(builder *feed.Builder, profiles *db.ProfileRepository) *FeedAPI {
	return &FeedAPI{
		builder:  builder,
		profiles: profiles,
		logger:   logging.GetLogger().With(zap.String("component", "feed-api")),
	}
}

// RepoResponse is the wire form of one feed repository
type RepoResponse struct {
	ID          int64    `json:"id"`
	FullName    string   `json:"full_name"`
	Owner       string   `json:"owner"`
	Description string   `json:"description"`
	Homepage    string   `json:"homepage,omitempty"`
	Language    string   `json:"language,omitempty"`
	License     string   `json:"license,omitempty"`
	Stars       int64    `json:"stars"`
	Forks       int64    `json:"forks"`
	Topics      []string `json:"topics,omitempty"`
	Score       float64  `json:"score"`
}

// FeedResponse is one page of the personalized feed
type FeedResponse struct {
	Items      []RepoResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// GetFeed handles GET /api/v1/feed
func (f *FeedAPI) GetFeed(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	cur, err := feed.DecodeCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	pageSize := feed.DefaultPageSize
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			pageSize = parsed
		}
	}

	profile, err := f.profiles.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		f.logger.Error("Failed to load profile", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	page, err := f.builder.BuildFeed(c.Request.Context(), profile, cur, pageSize)
	if err != nil {
		f.logger.Error("Failed to build feed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build feed"})
		return
	}

	resp := FeedResponse{Items: toRepoResponses(page.Repos)}
	if page.NextCursor != nil {
		resp.NextCursor = page.NextCursor.Encode()
	}
	c.JSON(http.StatusOK, resp)
}

// GetSaved handles GET /api/v1/users/:user_id/saved
func (f *FeedAPI) GetSaved(c *gin.Context) {
	userID := c.Param("user_id")

	ids, err := f.builder.SavedIDs(c.Request.Context(), userID)
	if err != nil {
		f.logger.Error("Failed to load saved repos", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load saved repos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"repo_ids": ids})
}

func toRepoResponses(repos []*models.Repo) []RepoResponse {
	out := make([]RepoResponse, len(repos))
	for i, r := range repos {
		out[i] = RepoResponse{
			ID:          r.ID,
			FullName:    r.FullName,
			Owner:       r.Owner,
			Description: r.Description,
			Homepage:    r.Homepage,
			Language:    r.Language,
			License:     r.License,
			Stars:       r.Stars,
			Forks:       r.Forks,
			Topics:      r.TopicList(),
			Score:       r.SCRecommend,
		}
	}
	return out
}
