package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/reposcout/reposcout/internal/cache"
	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/models"
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

func newTestBuilder(t *testing.T, database *db.DB) *Builder {
	t.Helper()
	return NewBuilder(database, cache.NewResultCache(time.Minute, time.Minute))
}

func seedRepo(t *testing.T, database *db.DB, id int64, score float64, clusterIDs []string, topics ...string) {
	t.Helper()
	now := time.Now().UTC()
	repo := &models.Repo{
		ID:          id,
		FullName:    fmt.Sprintf("org/repo-%d", id),
		Owner:       "org",
		SCRecommend: score,
		CreatedAt:   now,
		UpdatedAt:   now,
		PushedAt:    now,
	}
	if err := database.DB.Create(repo).Error; err != nil {
		t.Fatalf("seed repo %d: %v", id, err)
	}
	for _, topic := range topics {
		if err := database.DB.Create(&models.RepoTopic{RepoID: id, Topic: topic}).Error; err != nil {
			t.Fatalf("seed topic %q: %v", topic, err)
		}
	}
	for _, clusterID := range clusterIDs {
		m := &models.ClusterMembership{
			ClusterID:        clusterID,
			RepoID:           id,
			RotationPriority: 0.5,
			UpdatedAt:        now,
		}
		if err := database.DB.Create(m).Error; err != nil {
			t.Fatalf("seed membership %s/%d: %v", clusterID, id, err)
		}
	}
}

func markSeen(t *testing.T, database *db.DB, userID string, repoID int64) {
	t.Helper()
	rec := &models.SeenRecord{
		UserID:    userID,
		RepoID:    repoID,
		Action:    models.ActionViewed,
		CreatedAt: time.Now().UTC(),
	}
	if err := database.DB.Create(rec).Error; err != nil {
		t.Fatalf("seed seen record: %v", err)
	}
}

func TestBuildFeed_ExcludesSeen(t *testing.T) {
	database := newTestDB(t)
	for i := int64(1); i <= 5; i++ {
		seedRepo(t, database, i, float64(100-i), []string{"frontend"})
	}
	markSeen(t, database, "u1", 2)
	markSeen(t, database, "u1", 4)

	builder := newTestBuilder(t, database)
	profile := &models.UserProfile{UserID: "u1", PrimaryCluster: "frontend"}

	page, err := builder.BuildFeed(context.Background(), profile, nil, 10)
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}
	if len(page.Repos) != 3 {
		t.Fatalf("got %d repos, want 3", len(page.Repos))
	}
	for _, r := range page.Repos {
		if r.ID == 2 || r.ID == 4 {
			t.Errorf("seen repo %d served in feed", r.ID)
		}
	}
}

func TestBuildFeed_TierDegradation(t *testing.T) {
	// Primary cluster has no curated members; the page comes from the
	// secondary cluster, then the fallback
	database := newTestDB(t)
	seedRepo(t, database, 1, 60, []string{"backend"})
	seedRepo(t, database, 2, 90, []string{"backend"})
	seedRepo(t, database, 3, 70, []string{"backend"})
	seedRepo(t, database, 4, 99, nil)
	seedRepo(t, database, 5, 40, nil)

	builder := newTestBuilder(t, database)
	profile := &models.UserProfile{
		UserID:            "u1",
		PrimaryCluster:    "frontend",
		SecondaryClusters: "backend",
	}

	page, err := builder.BuildFeed(context.Background(), profile, nil, 10)
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}
	if len(page.Repos) != 5 {
		t.Fatalf("got %d repos, want 5", len(page.Repos))
	}

	// Cluster tiers come before the fallback regardless of score
	wantOrder := []int64{2, 3, 1, 4, 5}
	for i, want := range wantOrder {
		if page.Repos[i].ID != want {
			t.Fatalf("position %d = repo %d, want %d", i, page.Repos[i].ID, want)
		}
	}
}

func TestBuildFeed_PaginationPartition(t *testing.T) {
	// 15 primary-cluster repos scoring 100..44 and 10 unclustered repos
	// scoring 90..72: a full first page drains the primary tier and tops
	// up from the fallback, whose scores interleave with already-served
	// primary scores. Later pages must neither repeat nor skip anything.
	database := newTestDB(t)
	for i := int64(1); i <= 15; i++ {
		seedRepo(t, database, i, float64(104-4*i), []string{"frontend"})
	}
	for i := int64(1); i <= 10; i++ {
		seedRepo(t, database, 100+i, float64(92-2*i), nil)
	}

	builder := newTestBuilder(t, database)
	profile := &models.UserProfile{UserID: "u1", PrimaryCluster: "frontend"}

	served := make(map[int64]int)
	var cur *Cursor
	for pages := 0; ; pages++ {
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
		page, err := builder.BuildFeed(context.Background(), profile, cur, 20)
		if err != nil {
			t.Fatalf("BuildFeed() error: %v", err)
		}
		for _, r := range page.Repos {
			served[r.ID]++
		}
		if page.NextCursor == nil {
			break
		}
		cur = page.NextCursor
	}

	if len(served) != 25 {
		t.Errorf("session served %d distinct repos, want all 25", len(served))
	}
	for id, n := range served {
		if n > 1 {
			t.Errorf("repo %d served %d times across the session", id, n)
		}
	}
}

func TestBuildFeed_CrossTierSingleAppearance(t *testing.T) {
	// A repo curated into both the primary and a secondary cluster
	// belongs to the primary tier only
	database := newTestDB(t)
	seedRepo(t, database, 1, 90, []string{"frontend"})
	seedRepo(t, database, 7, 80, []string{"frontend", "backend"})
	seedRepo(t, database, 2, 70, []string{"backend"})

	builder := newTestBuilder(t, database)
	profile := &models.UserProfile{
		UserID:            "u1",
		PrimaryCluster:    "frontend",
		SecondaryClusters: "backend",
	}

	served := make(map[int64]int)
	var cur *Cursor
	for pages := 0; ; pages++ {
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
		page, err := builder.BuildFeed(context.Background(), profile, cur, 2)
		if err != nil {
			t.Fatalf("BuildFeed() error: %v", err)
		}
		for _, r := range page.Repos {
			served[r.ID]++
		}
		if page.NextCursor == nil {
			break
		}
		cur = page.NextCursor
	}

	if len(served) != 3 {
		t.Errorf("session served %d distinct repos, want 3", len(served))
	}
	if served[7] != 1 {
		t.Errorf("dual-cluster repo served %d times, want exactly once", served[7])
	}
}

func TestBuildFeed_LoadsTopics(t *testing.T) {
	database := newTestDB(t)
	seedRepo(t, database, 1, 90, []string{"frontend"}, "react", "typescript")
	seedRepo(t, database, 2, 80, nil, "cli")

	builder := newTestBuilder(t, database)
	profile := &models.UserProfile{UserID: "u1", PrimaryCluster: "frontend"}

	page, err := builder.BuildFeed(context.Background(), profile, nil, 10)
	if err != nil {
		t.Fatalf("BuildFeed() error: %v", err)
	}
	if len(page.Repos) != 2 {
		t.Fatalf("got %d repos, want 2", len(page.Repos))
	}
	for _, r := range page.Repos {
		if len(r.TopicList()) == 0 {
			t.Errorf("repo %d served without its topics", r.ID)
		}
	}
}

func repoList(ids ...int64) []*models.Repo {
	repos := make([]*models.Repo, len(ids))
	for i, id := range ids {
		repos[i] = &models.Repo{ID: id, SCRecommend: float64(100 - id)}
	}
	return repos
}

func TestAppendDeduped(t *testing.T) {
	got := make(map[int64]bool)

	repos := appendDeduped(nil, repoList(1, 2, 3), got, 5)
	if len(repos) != 3 {
		t.Fatalf("first append kept %d, want 3", len(repos))
	}

	// A second tier repeating ids 2 and 3 contributes only id 4
	repos = appendDeduped(repos, repoList(2, 3, 4), got, 5)
	if len(repos) != 4 {
		t.Fatalf("second append kept %d, want 4", len(repos))
	}

	seen := make(map[int64]bool)
	for _, r := range repos {
		if seen[r.ID] {
			t.Errorf("repo %d appears twice in one page", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestAppendDeduped_RespectsPageSize(t *testing.T) {
	got := make(map[int64]bool)

	repos := appendDeduped(nil, repoList(1, 2, 3, 4, 5, 6), got, 4)
	if len(repos) != 4 {
		t.Errorf("appendDeduped kept %d, want page size 4", len(repos))
	}
}

func TestNextCursor(t *testing.T) {
	// Full page continues from its last item, in the tier it ended in
	full := repoList(1, 2, 3)
	cur := nextCursor(full, 3, 2)
	if cur == nil {
		t.Fatal("full page should produce a continuation cursor")
	}
	if cur.Tier != 2 || cur.ID != 3 || cur.Score != full[2].SCRecommend {
		t.Errorf("cursor = %+v, want tier 2 and last item's sort key and id", cur)
	}

	// Short page means every tier is exhausted
	if nextCursor(repoList(1, 2), 3, 0) != nil {
		t.Error("short page should end pagination")
	}
	if nextCursor(nil, 3, 0) != nil {
		t.Error("empty page should end pagination")
	}
}

func TestSetSliceRoundTrip(t *testing.T) {
	ids := []int64{5, 9, 14}
	set := sliceToSet(ids)

	if len(set) != 3 {
		t.Fatalf("sliceToSet kept %d, want 3", len(set))
	}
	back := setToSlice(set)
	if len(back) != 3 {
		t.Fatalf("setToSlice returned %d, want 3", len(back))
	}
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			t.Errorf("id %d missing after round trip", id)
		}
	}
}
