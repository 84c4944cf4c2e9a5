package feed

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reposcout/reposcout/internal/cache"
	"github.com/reposcout/reposcout/internal/cluster"
	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/models"
	"github.com/reposcout/reposcout/pkg/logging"
	"github.com/reposcout/reposcout/pkg/telemetry"
)

const (
	// DefaultPageSize is used when the caller does not ask for a size
	DefaultPageSize = 20
	// MaxPageSize caps a single feed page
	MaxPageSize = 100
)

// Page is one feed page. NextCursor is nil at end of results.
type Page struct {
	Repos      []*models.Repo
	NextCursor *Cursor
}

// Builder assembles personalized feed pages from the curated pool.
// Candidates are sourced by priority tier (primary cluster, secondary
// clusters, tag fallback), always excluding the user's seen union. Each
// tier excludes repositories belonging to any earlier tier's cluster, so
// the tiers partition the pool and a repository has exactly one position
// in the session. The builder only reads; cancellation at any query cannot
// corrupt state.
type Builder struct {
	db     *gorm.DB
	seen   *db.SeenRepository
	cache  *cache.ResultCache
	logger *zap.Logger
}

// NewBuilder creates a pool builder. The result cache must be the same
// instance the interaction write path invalidates.
func NewBuilder(database *db.DB, resultCache *cache.ResultCache) *Builder {
	return &Builder{
		db:     database.DB,
		seen:   db.NewSeenRepository(db.NewRepository(database.DB)),
		cache:  resultCache,
		logger: logging.GetLogger().With(zap.String("component", "pool-builder")),
	}
}

// BuildFeed composes one feed page for the user's preference profile
func (b *Builder) BuildFeed(ctx context.Context, profile *models.UserProfile, cur *Cursor, pageSize int) (*Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.build")
	defer span.End()

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	seenIDs, err := b.seenIDs(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	tags := profile.TagList()
	tiers := tierClusters(profile)

	// The fallback tier sits after the cluster tiers
	startTier := 0
	if cur != nil {
		startTier = cur.Tier
	}
	if startTier < 0 {
		startTier = 0
	}
	if startTier > len(tiers) {
		startTier = len(tiers)
	}

	var repos []*models.Repo
	got := make(map[int64]bool)
	lastTier := startTier

	for t := startTier; t <= len(tiers) && len(repos) < pageSize; t++ {
		// The position only applies inside the tier it was issued in;
		// deeper tiers start from their top
		var tierCur *Cursor
		if cur != nil && t == cur.Tier {
			tierCur = cur
		}

		var batch []*models.Repo
		var err error
		if t < len(tiers) {
			batch, err = b.clusterTier(ctx, tiers[t], tiers[:t], tags, tierCur, seenIDs, got, pageSize-len(repos))
		} else {
			batch, err = b.tagFallback(ctx, tiers, tags, tierCur, seenIDs, got, pageSize-len(repos))
		}
		if err != nil {
			// Misconfigured or not-yet-curated tier degrades to the next
			// one rather than failing the feed
			b.logger.Warn("Feed tier failed",
				zap.Int("tier", t),
				zap.Error(err))
			continue
		}
		if len(batch) > 0 {
			lastTier = t
		}
		repos = appendDeduped(repos, batch, got, pageSize)
	}

	return &Page{
		Repos:      repos,
		NextCursor: nextCursor(repos, pageSize, lastTier),
	}, nil
}

// tierClusters resolves the ordered cluster tiers for a profile: primary
// first, then secondaries, duplicates dropped
func tierClusters(profile *models.UserProfile) []string {
	primary := profile.PrimaryCluster
	if primary == "" {
		// Legacy profiles predate primary clusters; infer one from the
		// tech stack
		primary = cluster.FromTechStack(models.SplitList(profile.TechStack))
	}

	tiers := []string{primary}
	seen := map[string]bool{primary: true}
	for _, c := range profile.SecondaryClusterList() {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		tiers = append(tiers, c)
	}
	return tiers
}

// SavedIDs returns the user's saved/liked repo-id set, via the
// saved-family cache
func (b *Builder) SavedIDs(ctx context.Context, userID string) ([]int64, error) {
	if set, ok := b.cache.Get(userID, cache.FamilySaved); ok {
		return setToSlice(set), nil
	}
	ids, err := b.seen.RepoIDsByAction(ctx, userID, []string{models.ActionLiked, models.ActionSaved})
	if err != nil {
		return nil, err
	}
	b.cache.Set(userID, cache.FamilySaved, sliceToSet(ids))
	return ids, nil
}

// seenIDs returns the user's full seen union, via the seen-family cache
func (b *Builder) seenIDs(ctx context.Context, userID string) ([]int64, error) {
	if set, ok := b.cache.Get(userID, cache.FamilySeen); ok {
		return setToSlice(set), nil
	}
	ids, err := b.seen.SeenRepoIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	b.cache.Set(userID, cache.FamilySeen, sliceToSet(ids))
	return ids, nil
}

// clusterTier fetches candidates from one cluster's curated membership,
// filtered by the user's tags when present. Repositories also belonging
// to an earlier tier's cluster are excluded so every repository lives in
// exactly one tier. Rotation priority breaks exact score ties so equally
// scored repos rotate between curation passes.
func (b *Builder) clusterTier(ctx context.Context, clusterID string, prior []string, tags []string, cur *Cursor, seenIDs []int64, got map[int64]bool, limit int) ([]*models.Repo, error) {
	q := b.db.WithContext(ctx).
		Model(&models.Repo{}).
		Joins("INNER JOIN scout_cluster_memberships ON scout_cluster_memberships.repo_id = scout_repos.id AND scout_cluster_memberships.cluster_id = ?", clusterID)

	if len(tags) > 0 {
		q = q.Where(
			"(EXISTS (SELECT 1 FROM scout_repo_topics WHERE scout_repo_topics.repo_id = scout_repos.id AND scout_repo_topics.topic IN ?) OR LOWER(scout_repos.language) IN ?)",
			tags, tags)
	}

	q = excludeClusters(q, prior)
	q = applyExclusions(q, seenIDs, got)
	q = applyCursor(q, cur)

	var repos []*models.Repo
	err := q.Order("scout_repos.sc_recommend DESC, scout_cluster_memberships.rotation_priority DESC, scout_repos.id ASC").
		Limit(limit).
		Preload("Topics").
		Find(&repos).Error
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// tagFallback searches the whole curated pool by the user's tags,
// excluding the cluster tiers already walked. With no tags at all it
// degrades to the global ranking, so a page is only empty when the store
// has no usable content.
func (b *Builder) tagFallback(ctx context.Context, tierIDs []string, tags []string, cur *Cursor, seenIDs []int64, got map[int64]bool, limit int) ([]*models.Repo, error) {
	q := b.db.WithContext(ctx).Model(&models.Repo{})

	if len(tags) > 0 {
		q = q.Where(
			"(EXISTS (SELECT 1 FROM scout_repo_topics WHERE scout_repo_topics.repo_id = scout_repos.id AND scout_repo_topics.topic IN ?) OR LOWER(scout_repos.language) IN ?)",
			tags, tags)
	}

	q = excludeClusters(q, tierIDs)
	q = applyExclusions(q, seenIDs, got)
	q = applyCursor(q, cur)

	var repos []*models.Repo
	err := q.Order("scout_repos.sc_recommend DESC, scout_repos.id ASC").
		Limit(limit).
		Preload("Topics").
		Find(&repos).Error
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// excludeClusters filters out repositories that are members of any of the
// given clusters
func excludeClusters(q *gorm.DB, clusterIDs []string) *gorm.DB {
	if len(clusterIDs) == 0 {
		return q
	}
	return q.Where(
		"NOT EXISTS (SELECT 1 FROM scout_cluster_memberships prior_m WHERE prior_m.repo_id = scout_repos.id AND prior_m.cluster_id IN ?)",
		clusterIDs)
}

func applyExclusions(q *gorm.DB, seenIDs []int64, got map[int64]bool) *gorm.DB {
	exclude := make([]int64, 0, len(seenIDs)+len(got))
	exclude = append(exclude, seenIDs...)
	for id := range got {
		exclude = append(exclude, id)
	}
	if len(exclude) > 0 {
		q = q.Where("scout_repos.id NOT IN ?", exclude)
	}
	return q
}

func applyCursor(q *gorm.DB, cur *Cursor) *gorm.DB {
	if cur == nil {
		return q
	}
	return q.Where(
		"(scout_repos.sc_recommend < ? OR (scout_repos.sc_recommend = ? AND scout_repos.id > ?))",
		cur.Score, cur.Score, cur.ID)
}

// appendDeduped appends batch items whose ids are unseen, up to pageSize
func appendDeduped(repos []*models.Repo, batch []*models.Repo, got map[int64]bool, pageSize int) []*models.Repo {
	for _, r := range batch {
		if len(repos) >= pageSize {
			break
		}
		if got[r.ID] {
			continue
		}
		got[r.ID] = true
		repos = append(repos, r)
	}
	return repos
}

// nextCursor derives the continuation token: the tier the page ended in
// plus the last item's position inside it. A short page means every tier
// is exhausted.
func nextCursor(repos []*models.Repo, pageSize int, tier int) *Cursor {
	if len(repos) < pageSize || len(repos) == 0 {
		return nil
	}
	last := repos[len(repos)-1]
	return &Cursor{Tier: tier, Score: last.SCRecommend, ID: last.ID}
}

func setToSlice(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func sliceToSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
