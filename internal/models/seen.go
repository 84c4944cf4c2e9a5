package models

import (
	"time"
)

// SeenRecord represents one user interaction with a repository. The union
// of all actions for a user drives feed exclusion: a skipped repository is
// excluded exactly as readily as a liked one.
type SeenRecord struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64);column:user_id"`
	RepoID    int64     `gorm:"primaryKey;column:repo_id"`
	Action    string    `gorm:"primaryKey;type:varchar(8);column:action"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for SeenRecord
func (SeenRecord) TableName() string {
	return "scout_seen_records"
}

// Interaction action constants
const (
	ActionViewed  = "viewed"
	ActionLiked   = "liked"
	ActionSaved   = "saved"
	ActionSkipped = "skipped"
)

// ValidAction reports whether action is one of the recognized interaction
// types
func ValidAction(action string) bool {
	switch action {
	case ActionViewed, ActionLiked, ActionSaved, ActionSkipped:
		return true
	}
	return false
}
