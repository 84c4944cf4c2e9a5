package curator

import (
	"sort"
	"strings"
	"time"

	"github.com/reposcout/reposcout/internal/github"
	"github.com/reposcout/reposcout/internal/scoring"
)

// Candidate is one filtered search item with its derived scores and the
// facet tags it matched
type Candidate struct {
	Item   *github.SearchItem
	Scores scoring.ScoreSet
	Tags   []string
	// Combined is the curation ranking score:
	// quality x 0.7 + (matched tags / configured tags) x 100 x 0.3.
	Combined float64
}

// BuildCandidate scores an item against a cluster's tag vocabulary
func BuildCandidate(item *github.SearchItem, vocab []string, now time.Time) Candidate {
	scores := scoring.Compute(scoring.Input{
		Stars:       item.Stars,
		Forks:       item.Forks,
		Watchers:    item.Watchers,
		Description: item.Description,
		Topics:      item.Topics,
		Language:    item.Language,
		License:     item.LicenseKey(),
		Homepage:    item.Homepage,
		CreatedAt:   item.CreatedAt,
		PushedAt:    item.PushedAt,
	}, now)

	tags := MatchTags(item, vocab)

	overlap := 0.0
	if len(vocab) > 0 {
		overlap = float64(len(tags)) / float64(len(vocab)) * 100
	}

	return Candidate{
		Item:     item,
		Scores:   scores,
		Tags:     tags,
		Combined: scores.Quality*0.7 + overlap*0.3,
	}
}

// MatchTags intersects an item's topics and language with a tag vocabulary
func MatchTags(item *github.SearchItem, vocab []string) []string {
	if len(vocab) == 0 {
		return nil
	}
	have := make(map[string]bool, len(item.Topics)+1)
	for _, t := range item.Topics {
		have[strings.ToLower(t)] = true
	}
	if item.Language != "" {
		have[strings.ToLower(item.Language)] = true
	}

	var matched []string
	for _, tag := range vocab {
		if have[tag] {
			matched = append(matched, tag)
		}
	}
	return matched
}

// Rank orders candidates by combined score descending. Ties break first by
// raw tag-overlap count, then by quality score, then by id for stable
// output.
func Rank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Combined != cands[j].Combined {
			return cands[i].Combined > cands[j].Combined
		}
		if len(cands[i].Tags) != len(cands[j].Tags) {
			return len(cands[i].Tags) > len(cands[j].Tags)
		}
		if cands[i].Scores.Quality != cands[j].Scores.Quality {
			return cands[i].Scores.Quality > cands[j].Scores.Quality
		}
		return cands[i].Item.ID < cands[j].Item.ID
	})
}

// Dedupe drops repeated repository ids, keeping the first occurrence
func Dedupe(items []github.SearchItem) []github.SearchItem {
	seen := make(map[int64]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
