package curator

import (
	"strings"

	"github.com/reposcout/reposcout/internal/github"
)

// FilterParams carries the thresholds the quality filter reads
type FilterParams struct {
	MinStars          int
	ListStarThreshold int
	CorpStarThreshold int
	// Horizon is the staleness cutoff; older last pushes are rejected.
	Horizon int64 // unix seconds
}

// RejectRule is one hard-reject predicate. Each rule is independently
// sufficient to exclude a candidate; Name is what the skip decision is
// logged under.
type RejectRule struct {
	Name   string
	Reject func(item *github.SearchItem, p FilterParams) bool
}

// rejectRules is the ordered quality-filter table. Candidates are checked
// top to bottom and the first matching rule names the skip reason.
var rejectRules = []RejectRule{
	{
		Name: "below-min-stars",
		Reject: func(item *github.SearchItem, p FilterParams) bool {
			return item.Stars < int64(p.MinStars)
		},
	},
	{
		Name: "empty-description",
		Reject: func(item *github.SearchItem, p FilterParams) bool {
			return len(strings.TrimSpace(item.Description)) < 20
		},
	},
	{
		Name: "awesome-list",
		Reject: func(item *github.SearchItem, p FilterParams) bool {
			if item.Stars <= int64(p.ListStarThreshold) {
				return false
			}
			name := strings.ToLower(item.FullName)
			desc := strings.ToLower(item.Description)
			return strings.Contains(name, "awesome") ||
				strings.Contains(desc, "curated list") ||
				strings.Contains(desc, "awesome list")
		},
	},
	{
		Name: "mega-corp",
		Reject: func(item *github.SearchItem, p FilterParams) bool {
			if item.Stars <= int64(p.CorpStarThreshold) {
				return false
			}
			if !megaOwners[strings.ToLower(item.Owner.Login)] {
				return false
			}
			return !tutorialFlavored(item)
		},
	},
	{
		Name: "stale",
		Reject: func(item *github.SearchItem, p FilterParams) bool {
			return item.PushedAt.Unix() < p.Horizon
		},
	},
}

// megaOwners are organizations whose flagship repositories are already
// universally known; surfacing them adds no discovery value unless the
// repository is explicitly a learning resource.
var megaOwners = map[string]bool{
	"google":     true,
	"microsoft":  true,
	"facebook":   true,
	"meta":       true,
	"apple":      true,
	"amazon":     true,
	"aws":        true,
	"azure":      true,
	"netflix":    true,
	"alibaba":    true,
	"tencent":    true,
	"uber":       true,
	"airbnb":     true,
}

var tutorialMarkers = []string{"tutorial", "learning", "example", "sample", "course", "exercise"}

func tutorialFlavored(item *github.SearchItem) bool {
	desc := strings.ToLower(item.Description)
	for _, marker := range tutorialMarkers {
		if strings.Contains(desc, marker) {
			return true
		}
	}
	for _, topic := range item.Topics {
		topic = strings.ToLower(topic)
		for _, marker := range tutorialMarkers {
			if strings.Contains(topic, marker) {
				return true
			}
		}
	}
	return false
}

// Filter checks a candidate against the reject table. A non-empty reason
// means the candidate is excluded; this is a skip decision, not an error,
// and is never retried.
func Filter(item *github.SearchItem, p FilterParams) (reason string) {
	for _, rule := range rejectRules {
		if rule.Reject(item, p) {
			return rule.Name
		}
	}
	return ""
}
