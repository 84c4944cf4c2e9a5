package scoring

import (
	"math"
	"strings"
	"time"
)

// ScoreSet holds the derived scores for one repository. Every component is
// bounded to [0,100] and Recommend is the fixed weighted combination of the
// other five. A ScoreSet is a pure function of the repository attributes
// and the evaluation time, so recomputation is idempotent.
type ScoreSet struct {
	Popularity float64
	Activity   float64
	Freshness  float64
	Quality    float64
	Trending   float64
	Recommend  float64
}

// Composite weights. Documented here once; they sum to 1.0.
const (
	WeightPopularity = 0.30
	WeightActivity   = 0.25
	WeightQuality    = 0.20
	WeightFreshness  = 0.15
	WeightTrending   = 0.10
)

// Log-scale star/fork/watcher weights for the popularity score. The log
// keeps mega-popular repositories from saturating the scale.
const (
	starWeight    = 18.0
	forkWeight    = 12.0
	watcherWeight = 6.0
)

// Quality checklist thresholds
const (
	minDescriptionLen = 30
	minTopicCount     = 3
)

// Input carries the repository attributes the scorer reads. Missing fields
// degrade to neutral scores; there is no error path.
type Input struct {
	Stars       int64
	Forks       int64
	Watchers    int64
	Description string
	Topics      []string
	Language    string
	License     string
	Homepage    string
	CreatedAt   time.Time
	PushedAt    time.Time
}

// Compute derives the full score set for a repository at the given time
func Compute(in Input, now time.Time) ScoreSet {
	s := ScoreSet{
		Popularity: PopularityScore(in.Stars, in.Forks, in.Watchers),
		Activity:   ActivityScore(in.PushedAt, now),
		Freshness:  FreshnessScore(in.CreatedAt, now),
		Quality:    QualityScore(in),
	}
	s.Trending = TrendingScore(s.Popularity, s.Activity)
	s.Recommend = clamp(
		s.Popularity*WeightPopularity+
			s.Activity*WeightActivity+
			s.Quality*WeightQuality+
			s.Freshness*WeightFreshness+
			s.Trending*WeightTrending,
		0, 100)
	return s
}

// PopularityScore scores stars, forks and watchers on a logarithmic scale
func PopularityScore(stars, forks, watchers int64) float64 {
	score := math.Log10(float64(stars)+1)*starWeight +
		math.Log10(float64(forks)+1)*forkWeight +
		math.Log10(float64(watchers)+1)*watcherWeight
	return clamp(score, 0, 100)
}

// ActivityScore maps days since the last push onto recency bands. Bands
// are easier to tune than a continuous decay and avoid over-penalizing
// slow-but-maintained projects.
func ActivityScore(pushedAt, now time.Time) float64 {
	if pushedAt.IsZero() {
		return 10
	}
	days := now.Sub(pushedAt).Hours() / 24
	switch {
	case days <= 7:
		return 100
	case days <= 30:
		return 90
	case days <= 90:
		return 70
	case days <= 180:
		return 50
	case days <= 365:
		return 30
	default:
		return 10
	}
}

// FreshnessScore maps days since creation onto bands biased toward new
// repositories
func FreshnessScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 15
	}
	days := now.Sub(createdAt).Hours() / 24
	switch {
	case days <= 30:
		return 100
	case days <= 90:
		return 85
	case days <= 180:
		return 70
	case days <= 365:
		return 50
	case days <= 730:
		return 30
	default:
		return 15
	}
}

// QualityScore is a weighted checklist of completeness signals, normalized
// to [0,100]
func QualityScore(in Input) float64 {
	var score float64
	if len(strings.TrimSpace(in.Description)) >= minDescriptionLen {
		score += 25
	}
	if len(in.Topics) >= minTopicCount {
		score += 20
	}
	if in.License != "" {
		score += 20
	}
	if in.Language != "" {
		score += 15
	}
	if in.Homepage != "" {
		score += 20
	}
	return score
}

// TrendingScore blends popularity and activity. True growth-rate telemetry
// needs historical star snapshots this system does not retain, so the
// blend stands in for stars-gained-per-day.
func TrendingScore(popularity, activity float64) float64 {
	return clamp(popularity*0.6+activity*0.4, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
