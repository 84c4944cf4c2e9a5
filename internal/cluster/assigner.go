package cluster

import (
	"strings"

	"github.com/reposcout/reposcout/internal/models"
)

// Cluster identifiers. The set is fixed by configuration; ClusterGeneral
// is the catch-all for repositories no rule claims.
const (
	ClusterFrontend    = "frontend"
	ClusterBackend     = "backend"
	ClusterMobile      = "mobile"
	ClusterAIML        = "ai-ml"
	ClusterDataScience = "data-science"
	ClusterDevOps      = "devops"
	ClusterGameDev     = "game-dev"
	ClusterDesktop     = "desktop"
	ClusterGeneral     = "general"
)

// Rule tests a repository against one cluster's keyword sets. Topics and
// languages match exactly (case-insensitive); keywords match as substrings
// of the description.
type Rule struct {
	Cluster   string
	Topics    []string
	Languages []string
	Keywords  []string
}

// Rules is the ordered assignment table. Order is part of the contract:
// earlier rules win, so a React Native repo tagged both "react" and
// "android" lands in frontend, not mobile. Reordering changes
// classifications and must be treated as a behavior change.
var Rules = []Rule{
	{
		Cluster:  ClusterFrontend,
		Topics:   []string{"react", "vue", "angular", "svelte", "frontend", "css", "ui", "webapp", "nextjs", "tailwindcss"},
		Keywords: []string{"frontend", "user interface", "web app", "component library"},
	},
	{
		Cluster:   ClusterBackend,
		Topics:    []string{"backend", "api", "rest-api", "graphql", "microservices", "server", "database", "orm", "grpc"},
		Languages: []string{"go", "java", "c#", "php", "ruby", "elixir"},
		Keywords:  []string{"backend", "web framework", "api server", "microservice"},
	},
	{
		Cluster:   ClusterMobile,
		Topics:    []string{"android", "ios", "flutter", "react-native", "mobile", "swiftui", "kotlin-android"},
		Languages: []string{"swift", "kotlin", "dart", "objective-c"},
		Keywords:  []string{"mobile app", "android", "ios app"},
	},
	{
		Cluster:  ClusterAIML,
		Topics:   []string{"machine-learning", "deep-learning", "llm", "ai", "neural-network", "nlp", "computer-vision", "transformers"},
		Keywords: []string{"machine learning", "deep learning", "language model", "neural network"},
	},
	{
		Cluster:   ClusterDataScience,
		Topics:    []string{"data-science", "data-analysis", "data-visualization", "pandas", "jupyter", "etl", "data-engineering"},
		Languages: []string{"r", "julia"},
		Keywords:  []string{"data science", "data analysis", "data pipeline", "visualization"},
	},
	{
		Cluster:  ClusterDevOps,
		Topics:   []string{"devops", "kubernetes", "docker", "terraform", "ci-cd", "infrastructure", "monitoring", "observability", "cloud-native"},
		Keywords: []string{"devops", "kubernetes", "infrastructure as code", "deployment"},
	},
	{
		Cluster:   ClusterGameDev,
		Topics:    []string{"game", "gamedev", "game-engine", "unity", "godot", "unreal-engine", "pixel-art"},
		Languages: []string{"gdscript"},
		Keywords:  []string{"game engine", "game development", "2d game", "3d game"},
	},
	{
		Cluster:  ClusterDesktop,
		Topics:   []string{"desktop", "electron", "tauri", "gtk", "qt", "desktop-app", "cross-platform"},
		Keywords: []string{"desktop app", "desktop application"},
	},
}

// RepoFacts is the slice of repository attributes assignment reads
type RepoFacts struct {
	Topics      []string
	Language    string
	Description string
}

// Assign maps a repository to its primary cluster: first matching rule
// wins, general is the fallback. Deterministic for unchanged input.
func Assign(facts RepoFacts) string {
	topics := make(map[string]bool, len(facts.Topics))
	for _, t := range facts.Topics {
		topics[strings.ToLower(t)] = true
	}
	language := strings.ToLower(facts.Language)
	description := strings.ToLower(facts.Description)

	for _, rule := range Rules {
		if rule.matches(topics, language, description) {
			return rule.Cluster
		}
	}
	return ClusterGeneral
}

func (r Rule) matches(topics map[string]bool, language, description string) bool {
	for _, t := range r.Topics {
		if topics[t] {
			return true
		}
	}
	for _, l := range r.Languages {
		if language == l {
			return true
		}
	}
	for _, k := range r.Keywords {
		if strings.Contains(description, k) {
			return true
		}
	}
	return false
}

// Catalog returns the configured cluster records, ready for upsert
func Catalog() []*models.Cluster {
	return []*models.Cluster{
		{ID: ClusterFrontend, Name: "Frontend", Description: "Web UI frameworks, component libraries and styling tools"},
		{ID: ClusterBackend, Name: "Backend", Description: "Servers, APIs, databases and service frameworks"},
		{ID: ClusterMobile, Name: "Mobile", Description: "Android, iOS and cross-platform mobile development"},
		{ID: ClusterAIML, Name: "AI & ML", Description: "Machine learning, deep learning and language models"},
		{ID: ClusterDataScience, Name: "Data Science", Description: "Analysis, visualization and data engineering"},
		{ID: ClusterDevOps, Name: "DevOps", Description: "Infrastructure, orchestration, CI/CD and observability"},
		{ID: ClusterGameDev, Name: "Game Dev", Description: "Game engines, frameworks and tooling"},
		{ID: ClusterDesktop, Name: "Desktop", Description: "Native and cross-platform desktop applications"},
		{ID: ClusterGeneral, Name: "General", Description: "Everything that does not fit a topical cluster"},
	}
}

// TagVocabulary returns the facet tags curation matches against for a
// cluster: its rule's topics plus languages
func TagVocabulary(clusterID string) []string {
	for _, rule := range Rules {
		if rule.Cluster == clusterID {
			vocab := make([]string, 0, len(rule.Topics)+len(rule.Languages))
			vocab = append(vocab, rule.Topics...)
			vocab = append(vocab, rule.Languages...)
			return vocab
		}
	}
	return nil
}

// FromTechStack infers a cluster from tech-stack tags. Legacy path for
// profiles created before primary clusters existed; only consulted when no
// primary cluster is set at all.
func FromTechStack(tags []string) string {
	for _, tag := range tags {
		facts := RepoFacts{Topics: []string{strings.ToLower(tag)}}
		if c := Assign(facts); c != ClusterGeneral {
			return c
		}
	}
	return ClusterGeneral
}
