package curator

import (
	"fmt"
	"time"

	"github.com/reposcout/reposcout/internal/cluster"
)

// Query is one upstream search to run during a curation pass
type Query struct {
	// ClusterID is the cluster the results feed, or empty for facet
	// queries whose results are assigned a cluster individually.
	ClusterID string
	// Facet names the non-cluster dimension that produced the query
	// (language, goal, project-type), empty for cluster queries.
	Facet string
	// Term is the upstream search expression.
	Term string
}

// queryTopicsPerCluster caps how many topic queries one cluster generates,
// keeping the total request count bounded.
const queryTopicsPerCluster = 5

// Goal and project-type facet topics queried in addition to clusters.
// Results are assigned to their primary cluster individually.
var (
	goalTopics        = []string{"tutorial", "learning", "beginner-friendly", "starter-kit", "good-first-issue"}
	projectTypeTopics = []string{"cli", "library", "framework", "boilerplate", "self-hosted"}
)

// ForCluster generates the bounded query set for one cluster
func ForCluster(clusterID string, minStars int, horizon time.Time) []Query {
	vocab := cluster.TagVocabulary(clusterID)
	if len(vocab) > queryTopicsPerCluster {
		vocab = vocab[:queryTopicsPerCluster]
	}

	queries := make([]Query, 0, len(vocab))
	for _, topic := range vocab {
		queries = append(queries, Query{
			ClusterID: clusterID,
			Term:      searchTerm("topic:"+topic, minStars, horizon),
		})
	}
	return queries
}

// ForLanguages generates the language facet queries
func ForLanguages(languages []string, minStars int, horizon time.Time) []Query {
	queries := make([]Query, 0, len(languages))
	for _, lang := range languages {
		queries = append(queries, Query{
			Facet: "language:" + lang,
			Term:  searchTerm("language:"+lang, minStars, horizon),
		})
	}
	return queries
}

// ForGoals generates the goal facet queries
func ForGoals(minStars int, horizon time.Time) []Query {
	queries := make([]Query, 0, len(goalTopics))
	for _, topic := range goalTopics {
		queries = append(queries, Query{
			Facet: "goal:" + topic,
			Term:  searchTerm("topic:"+topic, minStars, horizon),
		})
	}
	return queries
}

// ForProjectTypes generates the project-type facet queries
func ForProjectTypes(minStars int, horizon time.Time) []Query {
	queries := make([]Query, 0, len(projectTypeTopics))
	for _, topic := range projectTypeTopics {
		queries = append(queries, Query{
			Facet: "project-type:" + topic,
			Term:  searchTerm("topic:"+topic, minStars, horizon),
		})
	}
	return queries
}

// searchTerm builds one search expression with the shared star floor and
// staleness window
func searchTerm(base string, minStars int, horizon time.Time) string {
	return fmt.Sprintf("%s stars:>=%d pushed:>%s", base, minStars, horizon.Format("2006-01-02"))
}
