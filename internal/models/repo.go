package models

import (
	"time"
)

// Repo is the canonical record for one upstream GitHub repository.
// The primary key is GitHub's numeric repository id, so re-ingestion of the
// same repository is always an upsert.
type Repo struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false;column:id"`
	FullName    string    `gorm:"type:varchar(255);not null;uniqueIndex;column:full_name"`
	Owner       string    `gorm:"type:varchar(100);not null;column:owner"`
	Description string    `gorm:"type:text;column:description"`
	Homepage    string    `gorm:"type:varchar(1024);column:homepage"`
	Language    string    `gorm:"type:varchar(64);index;column:language"`
	License     string    `gorm:"type:varchar(64);column:license"`
	Stars       int64     `gorm:"not null;default:0;column:stars"`
	Forks       int64     `gorm:"not null;default:0;column:forks"`
	Watchers    int64     `gorm:"not null;default:0;column:watchers"`
	CreatedAt   time.Time `gorm:"not null;column:created_at"`
	UpdatedAt   time.Time `gorm:"not null;column:updated_at"`
	PushedAt    time.Time `gorm:"not null;index;column:pushed_at"`

	// Computed score fields, recomputed on every ingestion
	SCPopularity float64 `gorm:"type:float;column:sc_popularity"`
	SCActivity   float64 `gorm:"type:float;column:sc_activity"`
	SCFreshness  float64 `gorm:"type:float;column:sc_freshness"`
	SCQuality    float64 `gorm:"type:float;column:sc_quality"`
	SCTrending   float64 `gorm:"type:float;column:sc_trending"`
	SCRecommend  float64 `gorm:"type:float;index:idx_repos_sc_recommend,sort:desc;column:sc_recommend"`

	// Relationships
	Topics []RepoTopic `gorm:"foreignKey:RepoID;references:ID"`
}

// TableName specifies the table name for Repo
func (Repo) TableName() string {
	return "scout_repos"
}

// TopicList returns the topic strings of the loaded Topics relation
func (r *Repo) TopicList() []string {
	topics := make([]string, len(r.Topics))
	for i, t := range r.Topics {
		topics[i] = t.Topic
	}
	return topics
}

// RepoTopic represents a repo-to-topic mapping
type RepoTopic struct {
	RepoID int64  `gorm:"primaryKey;column:repo_id"`
	Topic  string `gorm:"type:varchar(64);primaryKey;index;column:topic"`
}

// TableName specifies the table name for RepoTopic
func (RepoTopic) TableName() string {
	return "scout_repo_topics"
}
