package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reposcout/reposcout/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// RepoRepository provides repository-table database operations
type RepoRepository struct {
	*Repository
}

// NewRepoRepository creates a new repo repository
func NewRepoRepository(repo *Repository) *RepoRepository {
	return &RepoRepository{Repository: repo}
}

// GetByID retrieves a repo by its upstream identifier
func (r *RepoRepository) GetByID(ctx context.Context, id int64) (*models.Repo, error) {
	var repo models.Repo
	if err := r.db.WithContext(ctx).Preload("Topics").First(&repo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &repo, nil
}

// Upsert inserts or updates a repo keyed by its stable identifier.
// Counts, timestamps and scores are refreshed; the id never changes, so
// re-ingestion can never duplicate a row.
func (r *RepoRepository) Upsert(ctx context.Context, repo *models.Repo) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name", "owner", "description", "homepage", "language",
			"license", "stars", "forks", "watchers", "updated_at", "pushed_at",
			"sc_popularity", "sc_activity", "sc_freshness", "sc_quality",
			"sc_trending", "sc_recommend",
		}),
	}).Create(repo).Error
}

// ReplaceTopics replaces the topic set for a repo
func (r *RepoRepository) ReplaceTopics(ctx context.Context, repoID int64, topics []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("repo_id = ?", repoID).Delete(&models.RepoTopic{}).Error; err != nil {
			return err
		}
		if len(topics) == 0 {
			return nil
		}
		rows := make([]models.RepoTopic, 0, len(topics))
		for _, t := range topics {
			rows = append(rows, models.RepoTopic{RepoID: repoID, Topic: t})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

// DeleteStale removes repos whose last push predates the horizon, along
// with their topics and memberships. Returns the number of repos removed.
func (r *RepoRepository) DeleteStale(ctx context.Context, horizon time.Time) (int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.Repo{}).
		Where("pushed_at < ?", horizon).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("repo_id IN ?", ids).Delete(&models.ClusterMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("repo_id IN ?", ids).Delete(&models.RepoTopic{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Repo{}).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// MembershipRepository provides cluster-membership database operations
type MembershipRepository struct {
	*Repository
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(repo *Repository) *MembershipRepository {
	return &MembershipRepository{Repository: repo}
}

// Upsert inserts or updates a membership keyed by (cluster, repo)
func (r *MembershipRepository) Upsert(ctx context.Context, m *models.ClusterMembership) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cluster_id"}, {Name: "repo_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tags", "quality_score", "rotation_priority", "updated_at",
		}),
	}).Create(m).Error
}

// PruneExcept deletes memberships of a cluster not in the keep set.
// Returns the number of rows removed.
func (r *MembershipRepository) PruneExcept(ctx context.Context, clusterID string, keep []int64) (int64, error) {
	q := r.db.WithContext(ctx).Where("cluster_id = ?", clusterID)
	if len(keep) > 0 {
		q = q.Where("repo_id NOT IN ?", keep)
	}
	res := q.Delete(&models.ClusterMembership{})
	return res.RowsAffected, res.Error
}

// CountByCluster counts memberships of a cluster
func (r *MembershipRepository) CountByCluster(ctx context.Context, clusterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ClusterMembership{}).
		Where("cluster_id = ?", clusterID).
		Count(&count).Error
	return count, err
}

// ClusterRepository provides cluster-catalog database operations
type ClusterRepository struct {
	*Repository
}

// NewClusterRepository creates a new cluster repository
func NewClusterRepository(repo *Repository) *ClusterRepository {
	return &ClusterRepository{Repository: repo}
}

// GetAll retrieves the cluster catalog
func (r *ClusterRepository) GetAll(ctx context.Context) ([]*models.Cluster, error) {
	var clusters []*models.Cluster
	if err := r.db.WithContext(ctx).Order("id").Find(&clusters).Error; err != nil {
		return nil, err
	}
	return clusters, nil
}

// GetByID retrieves one cluster
func (r *ClusterRepository) GetByID(ctx context.Context, id string) (*models.Cluster, error) {
	var cluster models.Cluster
	if err := r.db.WithContext(ctx).First(&cluster, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cluster, nil
}

// Ensure upserts the configured cluster catalog
func (r *ClusterRepository) Ensure(ctx context.Context, clusters []*models.Cluster) error {
	for _, c := range clusters {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description"}),
		}).Create(c).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateRepoCount refreshes the aggregate repo count of a cluster
func (r *ClusterRepository) UpdateRepoCount(ctx context.Context, clusterID string, count int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Cluster{}).
		Where("id = ?", clusterID).
		Updates(map[string]interface{}{
			"repo_count": count,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ProfileRepository provides user-profile database operations
type ProfileRepository struct {
	*Repository
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(repo *Repository) *ProfileRepository {
	return &ProfileRepository{Repository: repo}
}

// GetByUserID retrieves a user's preference profile
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Save creates or updates a user's preference profile
func (r *ProfileRepository) Save(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"primary_cluster", "secondary_clusters", "tech_stack", "goals",
			"project_types", "experience_level", "activity_weight",
			"popularity_weight", "docs_weight", "updated_at",
		}),
	}).Create(profile).Error
}

// SeenRepository provides seen-history database operations
type SeenRepository struct {
	*Repository
}

// NewSeenRepository creates a new seen repository
func NewSeenRepository(repo *Repository) *SeenRepository {
	return &SeenRepository{Repository: repo}
}

// Record appends an interaction. Repeating the same (user, repo, action)
// refreshes the timestamp rather than adding a row.
func (r *SeenRepository) Record(ctx context.Context, rec *models.SeenRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "repo_id"}, {Name: "action"}},
		DoUpdates: clause.AssignmentColumns([]string{"created_at"}),
	}).Create(rec).Error
}

// SeenRepoIDs returns the distinct repo ids a user has interacted with,
// across all action types
func (r *SeenRepository) SeenRepoIDs(ctx context.Context, userID string) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.SeenRecord{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("repo_id", &ids).Error
	return ids, err
}

// RepoIDsByAction returns the distinct repo ids a user has interacted with
// through the given actions
func (r *SeenRepository) RepoIDsByAction(ctx context.Context, userID string, actions []string) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.SeenRecord{}).
		Where("user_id = ? AND action IN ?", userID, actions).
		Distinct().
		Pluck("repo_id", &ids).Error
	return ids, err
}
