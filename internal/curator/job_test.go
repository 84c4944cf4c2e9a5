package curator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/github"
	"github.com/reposcout/reposcout/internal/models"
	"github.com/reposcout/reposcout/pkg/config"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	database := &db.DB{DB: gdb}
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func testJobConfig(apiURL string) *config.Config {
	return &config.Config{
		GitHub: config.GitHubConfig{
			APIURL:            apiURL,
			PerPage:           10,
			PagesPerQuery:     1,
			RequestsPerMinute: 6000,
		},
		Curator: config.CuratorConfig{
			TopK:              10,
			MinStars:          100,
			StalenessMonths:   12,
			ListStarThreshold: 5000,
			CorpStarThreshold: 20000,
			JobTimeout:        time.Minute,
		},
	}
}

func TestRunCluster_UpstreamOutageKeepsMemberships(t *testing.T) {
	// Every search request fails, so the pass yields zero candidates.
	// The previously curated membership set must survive the pass
	// instead of being pruned against the empty result.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	database := newTestDB(t)
	now := time.Now().UTC()
	for i := int64(1); i <= 3; i++ {
		repo := &models.Repo{
			ID:        i,
			FullName:  "org/repo-" + string(rune('a'+i)),
			Owner:     "org",
			CreatedAt: now,
			UpdatedAt: now,
			PushedAt:  now,
		}
		if err := database.DB.Create(repo).Error; err != nil {
			t.Fatalf("seed repo %d: %v", i, err)
		}
		m := &models.ClusterMembership{
			ClusterID:        "frontend",
			RepoID:           i,
			RotationPriority: 0.5,
			UpdatedAt:        now,
		}
		if err := database.DB.Create(m).Error; err != nil {
			t.Fatalf("seed membership %d: %v", i, err)
		}
	}

	cfg := testJobConfig(srv.URL)
	gh, err := github.New(&cfg.GitHub)
	if err != nil {
		t.Fatalf("github.New() error: %v", err)
	}

	job := NewJob(cfg, gh, database)
	job.runCluster(context.Background(), "frontend", now.AddDate(0, -12, 0))

	count, err := db.NewMembershipRepository(db.NewRepository(database.DB)).
		CountByCluster(context.Background(), "frontend")
	if err != nil {
		t.Fatalf("CountByCluster() error: %v", err)
	}
	if count != 3 {
		t.Errorf("memberships after failed pass = %d, want 3 kept", count)
	}
}
