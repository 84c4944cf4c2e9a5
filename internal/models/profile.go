package models

import (
	"strings"
	"time"
)

// UserProfile holds a user's onboarding preferences. It is read-only for
// the recommendation path; edits come through the account surface.
type UserProfile struct {
	UserID         string `gorm:"primaryKey;type:varchar(64);column:user_id"`
	PrimaryCluster string `gorm:"type:varchar(32);column:primary_cluster"`
	// SecondaryClusters is a comma-joined ordered list of cluster ids.
	SecondaryClusters string `gorm:"type:varchar(255);column:secondary_clusters"`
	// TechStack, Goals and ProjectTypes are comma-joined tag lists.
	TechStack       string    `gorm:"type:varchar(512);column:tech_stack"`
	Goals           string    `gorm:"type:varchar(512);column:goals"`
	ProjectTypes    string    `gorm:"type:varchar(512);column:project_types"`
	ExperienceLevel string    `gorm:"type:varchar(32);column:experience_level"`
	ActivityWeight  float64   `gorm:"type:float;not null;default:1;column:activity_weight"`
	PopularityWeight float64  `gorm:"type:float;not null;default:1;column:popularity_weight"`
	DocsWeight      float64   `gorm:"type:float;not null;default:1;column:docs_weight"`
	CreatedAt       time.Time `gorm:"not null;column:created_at"`
	UpdatedAt       time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for UserProfile
func (UserProfile) TableName() string {
	return "scout_user_profiles"
}

// SecondaryClusterList returns the ordered secondary cluster ids
func (p *UserProfile) SecondaryClusterList() []string {
	return SplitList(p.SecondaryClusters)
}

// TagList returns the union of tech-stack, goal and project-type tags
func (p *UserProfile) TagList() []string {
	var tags []string
	tags = append(tags, SplitList(p.TechStack)...)
	tags = append(tags, SplitList(p.Goals)...)
	tags = append(tags, SplitList(p.ProjectTypes)...)
	return tags
}

// SplitList splits a comma-joined list column into trimmed, lowercased,
// non-empty elements
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList joins list elements into the comma-joined column format
func JoinList(items []string) string {
	return strings.Join(items, ",")
}
