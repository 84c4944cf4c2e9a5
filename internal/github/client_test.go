package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reposcout/reposcout/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(&config.GitHubConfig{
		APIURL:            srv.URL,
		PerPage:           100,
		RequestsPerMinute: 60,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	// No pacing in tests
	client.minInterval = 0
	return client, srv
}

func TestSearch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/repositories" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "topic:react stars:>100" {
			t.Errorf("unexpected query %q", q)
		}
		w.Header().Set("X-RateLimit-Remaining", "29")
		w.Header().Set("X-RateLimit-Reset", "1750000000")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_count": 2,
			"items": []map[string]interface{}{
				{
					"id":               42,
					"full_name":        "facebook/react",
					"stargazers_count": 230000,
					"language":         "JavaScript",
					"topics":           []string{"react", "ui"},
					"owner":            map[string]string{"login": "facebook"},
					"license":          map[string]string{"key": "mit"},
				},
				{
					"id":        43,
					"full_name": "someone/widgets",
					"owner":     map[string]string{"login": "someone"},
				},
			},
		})
	})

	result, err := client.Search(context.Background(), "topic:react stars:>100", 1, 100)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if result.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", result.TotalCount)
	}
	if len(result.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(result.Items))
	}
	if result.Items[0].ID != 42 || result.Items[0].Owner.Login != "facebook" {
		t.Errorf("unexpected first item: %+v", result.Items[0])
	}
	if result.Items[0].LicenseKey() != "mit" {
		t.Errorf("LicenseKey() = %q, want mit", result.Items[0].LicenseKey())
	}
	if result.Items[1].LicenseKey() != "" {
		t.Errorf("LicenseKey() on unlicensed item = %q, want empty", result.Items[1].LicenseKey())
	}
	if result.RateRemaining != 29 {
		t.Errorf("RateRemaining = %d, want 29", result.RateRemaining)
	}
}

func TestSearch_RateLimitRetry(t *testing.T) {
	var calls int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// Reset already in the past so the retry is immediate-ish
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(-time.Minute).Unix()))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_count": 1,
			"items":       []map[string]interface{}{{"id": 7, "full_name": "a/b"}},
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Search(ctx, "topic:go", 1, 50)
	if err != nil {
		t.Fatalf("Search() error after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly one retry, got %d calls", calls)
	}
	if len(result.Items) != 1 || result.Items[0].ID != 7 {
		t.Errorf("unexpected result after retry: %+v", result)
	}
}

func TestSearch_RateLimitExhausted(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(-time.Minute).Unix()))
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := client.Search(ctx, "topic:go", 1, 50)
	if err == nil {
		t.Fatal("expected error when both attempts are rate limited")
	}
}

func TestSearch_CancelDuringBackoff(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(10*time.Minute).Unix()))
		w.WriteHeader(http.StatusForbidden)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Search(ctx, "topic:go", 1, 50)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation should interrupt the backoff sleep promptly")
	}
}

func TestWaitForReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		result *SearchResult
		want   time.Duration
	}{
		{
			name:   "nil result defaults to a minute",
			result: nil,
			want:   time.Minute,
		},
		{
			name:   "missing header defaults to a minute",
			result: &SearchResult{},
			want:   time.Minute,
		},
		{
			name:   "reset in the past gets the floor",
			result: &SearchResult{RateReset: now.Add(-time.Hour)},
			want:   5 * time.Second,
		},
		{
			name:   "reset far ahead is capped",
			result: &SearchResult{RateReset: now.Add(2 * time.Hour)},
			want:   15 * time.Minute,
		},
		{
			name:   "normal reset waits until just past it",
			result: &SearchResult{RateReset: now.Add(30 * time.Second)},
			want:   31 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := waitForReset(tt.result, now); got != tt.want {
				t.Errorf("waitForReset() = %s, want %s", got, tt.want)
			}
		})
	}
}
