package curator

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/reposcout/reposcout/internal/cluster"
	"github.com/reposcout/reposcout/internal/db"
	"github.com/reposcout/reposcout/internal/github"
	"github.com/reposcout/reposcout/internal/models"
	"github.com/reposcout/reposcout/pkg/config"
	"github.com/reposcout/reposcout/pkg/logging"
	"github.com/reposcout/reposcout/pkg/telemetry"
)

// Job drives one ingestion and curation pass: search, dedupe, filter,
// score, rank, upsert, prune. All writes are upserts keyed by stable
// identifiers, so the job is safely re-runnable and partial ingestion is
// acceptable.
type Job struct {
	cfg         *config.Config
	gh          *github.Client
	repos       *db.RepoRepository
	memberships *db.MembershipRepository
	clusters    *db.ClusterRepository
	logger      *zap.Logger
	now         func() time.Time

	// facetKeep tracks repo ids added to each cluster by facet passes so
	// the cluster prune does not delete them.
	facetKeep map[string][]int64
}

// NewJob creates a curation job
func NewJob(cfg *config.Config, gh *github.Client, database *db.DB) *Job {
	base := db.NewRepository(database.DB)
	return &Job{
		cfg:         cfg,
		gh:          gh,
		repos:       db.NewRepoRepository(base),
		memberships: db.NewMembershipRepository(base),
		clusters:    db.NewClusterRepository(base),
		logger:      logging.GetLogger().With(zap.String("component", "curator")),
		now:         time.Now,
		facetKeep:   make(map[string][]int64),
	}
}

// Run executes one curation pass. With onlyCluster set, facet passes and
// other clusters are skipped (partial re-run). The run is bounded by the
// configured job timeout; rate-limit waits inside count against it.
func (j *Job) Run(ctx context.Context, onlyCluster string) error {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Curator.JobTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "curator.run")
	defer span.End()

	start := j.now().UTC()
	horizon := j.cfg.Curator.StalenessHorizon(start)

	j.logger.Info("Starting curation pass",
		zap.String("only_cluster", onlyCluster),
		zap.Time("staleness_horizon", horizon))

	if err := j.clusters.Ensure(ctx, cluster.Catalog()); err != nil {
		return err
	}

	if onlyCluster == "" {
		j.runFacetPasses(ctx, horizon)
	}

	for _, c := range cluster.Catalog() {
		if onlyCluster != "" && c.ID != onlyCluster {
			continue
		}
		if len(cluster.TagVocabulary(c.ID)) == 0 {
			// The general cluster is fed by facet passes only
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		j.runCluster(ctx, c.ID, horizon)
	}

	if onlyCluster == "" {
		swept, err := j.repos.DeleteStale(ctx, horizon)
		if err != nil {
			j.logger.Error("Staleness sweep failed", zap.Error(err))
		} else if swept > 0 {
			j.logger.Info("Swept stale repos", zap.Int64("count", swept))
		}
	}

	j.refreshClusterCounts(ctx, onlyCluster)

	j.logger.Info("Curation pass complete",
		zap.Duration("elapsed", j.now().UTC().Sub(start)))
	return nil
}

// runCluster curates one cluster: fetch its queries, filter and rank the
// candidates, keep the top K and prune the rest
func (j *Job) runCluster(ctx context.Context, clusterID string, horizon time.Time) {
	logger := j.logger.With(zap.String("cluster_id", clusterID))

	queries := ForCluster(clusterID, j.cfg.Curator.MinStars, horizon)
	items := j.fetchQueries(ctx, queries, logger)
	items = Dedupe(items)

	if len(items) == 0 {
		// Every query failed or came back empty. Pruning against an
		// empty candidate set would wipe the cluster's curated pool, so
		// keep what the last successful pass produced.
		logger.Warn("No candidates fetched, keeping existing memberships")
		return
	}

	params := j.filterParams(horizon)
	vocab := cluster.TagVocabulary(clusterID)
	now := j.now().UTC()

	var cands []Candidate
	skips := make(map[string]int)
	for i := range items {
		if reason := Filter(&items[i], params); reason != "" {
			skips[reason]++
			continue
		}
		cands = append(cands, BuildCandidate(&items[i], vocab, now))
	}
	for reason, count := range skips {
		logger.Debug("Filtered candidates", zap.String("reason", reason), zap.Int("count", count))
	}

	Rank(cands)
	if len(cands) > j.cfg.Curator.TopK {
		cands = cands[:j.cfg.Curator.TopK]
	}

	keep := make([]int64, 0, len(cands))
	var failed []int64
	for _, cand := range cands {
		if err := j.upsertCandidate(ctx, cand, clusterID); err != nil {
			// Per-item failure must not abort the batch
			failed = append(failed, cand.Item.ID)
			logger.Error("Failed to upsert candidate",
				zap.Int64("repo_id", cand.Item.ID),
				zap.Error(err))
			continue
		}
		keep = append(keep, cand.Item.ID)
	}

	keep = append(keep, j.facetKeep[clusterID]...)
	pruned, err := j.memberships.PruneExcept(ctx, clusterID, keep)
	if err != nil {
		logger.Error("Failed to prune memberships", zap.Error(err))
	}

	logger.Info("Cluster curated",
		zap.Int("fetched", len(items)),
		zap.Int("selected", len(keep)),
		zap.Int("failed", len(failed)),
		zap.Int64("pruned", pruned))
}

// runFacetPasses curates the language, goal and project-type facets.
// Facet results are assigned to their primary cluster individually.
func (j *Job) runFacetPasses(ctx context.Context, horizon time.Time) {
	minStars := j.cfg.Curator.MinStars
	var queries []Query
	queries = append(queries, ForLanguages(j.cfg.Curator.Languages, minStars, horizon)...)
	queries = append(queries, ForGoals(minStars, horizon)...)
	queries = append(queries, ForProjectTypes(minStars, horizon)...)

	items := Dedupe(j.fetchQueries(ctx, queries, j.logger))
	params := j.filterParams(horizon)
	now := j.now().UTC()

	var kept, skipped int
	for i := range items {
		if reason := Filter(&items[i], params); reason != "" {
			skipped++
			continue
		}

		clusterID := cluster.Assign(cluster.RepoFacts{
			Topics:      items[i].Topics,
			Language:    items[i].Language,
			Description: items[i].Description,
		})
		cand := BuildCandidate(&items[i], cluster.TagVocabulary(clusterID), now)
		if err := j.upsertCandidate(ctx, cand, clusterID); err != nil {
			j.logger.Error("Failed to upsert facet candidate",
				zap.Int64("repo_id", items[i].ID),
				zap.String("cluster_id", clusterID),
				zap.Error(err))
			continue
		}
		j.facetKeep[clusterID] = append(j.facetKeep[clusterID], items[i].ID)
		kept++
	}

	j.logger.Info("Facet passes complete",
		zap.Int("fetched", len(items)),
		zap.Int("kept", kept),
		zap.Int("skipped", skipped))
}

// fetchQueries runs each query across its page budget. Queries that fail
// after the client's rate-limit retry are skipped and logged, not fatal.
func (j *Job) fetchQueries(ctx context.Context, queries []Query, logger *zap.Logger) []github.SearchItem {
	var items []github.SearchItem
	for _, q := range queries {
		for page := 1; page <= j.cfg.GitHub.PagesPerQuery; page++ {
			result, err := j.gh.Search(ctx, q.Term, page, j.cfg.GitHub.PerPage)
			if err != nil {
				logger.Warn("Query failed, skipping",
					zap.String("term", q.Term),
					zap.String("facet", q.Facet),
					zap.Int("page", page),
					zap.Error(err))
				break
			}
			items = append(items, result.Items...)
			if len(result.Items) < j.cfg.GitHub.PerPage {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return items
}

// upsertCandidate persists a candidate's repo row, topics and cluster
// membership
func (j *Job) upsertCandidate(ctx context.Context, cand Candidate, clusterID string) error {
	repo := toRepo(cand)
	if err := j.repos.Upsert(ctx, repo); err != nil {
		return err
	}
	if err := j.repos.ReplaceTopics(ctx, repo.ID, cand.Item.Topics); err != nil {
		return err
	}
	return j.memberships.Upsert(ctx, &models.ClusterMembership{
		ClusterID:        clusterID,
		RepoID:           repo.ID,
		Tags:             models.JoinList(cand.Tags),
		QualityScore:     cand.Scores.Quality,
		RotationPriority: rand.Float64(),
		UpdatedAt:        j.now().UTC(),
	})
}

func (j *Job) filterParams(horizon time.Time) FilterParams {
	return FilterParams{
		MinStars:          j.cfg.Curator.MinStars,
		ListStarThreshold: j.cfg.Curator.ListStarThreshold,
		CorpStarThreshold: j.cfg.Curator.CorpStarThreshold,
		Horizon:           horizon.Unix(),
	}
}

func (j *Job) refreshClusterCounts(ctx context.Context, onlyCluster string) {
	for _, c := range cluster.Catalog() {
		if onlyCluster != "" && c.ID != onlyCluster {
			continue
		}
		count, err := j.memberships.CountByCluster(ctx, c.ID)
		if err != nil {
			j.logger.Error("Failed to count cluster members",
				zap.String("cluster_id", c.ID),
				zap.Error(err))
			continue
		}
		if err := j.clusters.UpdateRepoCount(ctx, c.ID, count); err != nil {
			j.logger.Error("Failed to update cluster repo count",
				zap.String("cluster_id", c.ID),
				zap.Error(err))
		}
	}
}

// toRepo converts a scored candidate into the persisted repo row
func toRepo(cand Candidate) *models.Repo {
	item := cand.Item
	return &models.Repo{
		ID:           item.ID,
		FullName:     item.FullName,
		Owner:        item.Owner.Login,
		Description:  item.Description,
		Homepage:     item.Homepage,
		Language:     item.Language,
		License:      item.LicenseKey(),
		Stars:        item.Stars,
		Forks:        item.Forks,
		Watchers:     item.Watchers,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
		PushedAt:     item.PushedAt,
		SCPopularity: cand.Scores.Popularity,
		SCActivity:   cand.Scores.Activity,
		SCFreshness:  cand.Scores.Freshness,
		SCQuality:    cand.Scores.Quality,
		SCTrending:   cand.Scores.Trending,
		SCRecommend:  cand.Scores.Recommend,
	}
}
