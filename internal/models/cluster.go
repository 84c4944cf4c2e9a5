package models

import (
	"time"
)

// Cluster represents a named topical bucket of repositories
type Cluster struct {
	ID          string    `gorm:"primaryKey;type:varchar(32);column:id"`
	Name        string    `gorm:"type:varchar(64);not null;column:name"`
	Description string    `gorm:"type:text;column:description"`
	RepoCount   int64     `gorm:"not null;default:0;column:repo_count"`
	UpdatedAt   time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Cluster
func (Cluster) TableName() string {
	return "scout_clusters"
}

// ClusterMembership associates one repository with one cluster.
// A repository may belong to several clusters but appears at most once per
// cluster.
type ClusterMembership struct {
	ClusterID string  `gorm:"primaryKey;type:varchar(32);column:cluster_id"`
	RepoID    int64   `gorm:"primaryKey;column:repo_id"`
	// Tags is the comma-joined set of facet tags this repository matched
	// during curation.
	Tags         string    `gorm:"type:varchar(512);column:tags"`
	QualityScore float64   `gorm:"type:float;not null;default:0;column:quality_score"`
	// RotationPriority is a reshuffle key reassigned on every curation pass
	// so that identical queries do not return a frozen ordering forever.
	RotationPriority float64   `gorm:"type:float;not null;default:0;column:rotation_priority"`
	UpdatedAt        time.Time `gorm:"not null;column:updated_at"`

	// Relationships
	Cluster *Cluster `gorm:"foreignKey:ClusterID;references:ID"`
	Repo    *Repo    `gorm:"foreignKey:RepoID;references:ID"`
}

// TableName specifies the table name for ClusterMembership
func (ClusterMembership) TableName() string {
	return "scout_cluster_memberships"
}
