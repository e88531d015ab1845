package ratings

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(ClientOptions{
		BaseURL:        baseURL,
		APIBaseURL:     baseURL,
		SchoolID:       "696",
		UserAgent:      "test-agent",
		ConnectTimeout: time.Second,
		TotalTimeout:   5 * time.Second,
		MaxRetries:     0,
		BackoffMin:     time.Millisecond,
		BackoffMax:     10 * time.Millisecond,
		JitterPct:      0,
		MaxConcurrent:  1,
		RPM:            1000,
		RobotsTTL:      time.Hour,
	}, discardLogger())
}

func TestFetchReviewsPagesThroughFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/paginate/professors/ratings", r.URL.Path)
		require.Equal(t, "12345", r.URL.Query().Get("tid"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ratings": []map[string]any{
					{
						"attendance": "Mandatory",
						"quality":    "awesome",
						"rClarity":   5,
						"rEasy":      2,
						"rHelpful":   5,
						"rOverall":   5,
						"rComments":  "Great lectures.",
						"rDate":      "01/15/2024",
						"rClass":     "CS2550",
						"extraField": "dropped on decode",
					},
					{
						"quality":  "average",
						"rOverall": 3,
						"rClarity": 3,
						"rEasy":    3,
						"rHelpful": 3,
					},
				},
				"remaining": 1,
			})
		case "2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ratings": []map[string]any{
					{"quality": "poor", "rOverall": 1, "rClarity": 1, "rEasy": 5, "rHelpful": 1},
				},
				"remaining": 0,
			})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	reviews, err := client.FetchReviews(context.Background(), "12345")
	require.NoError(t, err)
	require.Len(t, reviews, 3)

	assert.Equal(t, "Mandatory", reviews[0].Attendance)
	assert.Equal(t, "awesome", reviews[0].Quality)
	assert.Equal(t, 5.0, reviews[0].RClarity)
	assert.Equal(t, 2.0, reviews[0].REasy)
	assert.Equal(t, "Great lectures.", reviews[0].RComments)
	assert.Equal(t, "01/15/2024", reviews[0].RDate)
	assert.Equal(t, "CS2550", reviews[0].RClass)
	assert.Equal(t, 1.0, reviews[2].ROverall)
}

func TestFetchReviewsEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ratings": []any{}, "remaining": 0})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	reviews, err := client.FetchReviews(context.Background(), "12345")
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestFetchReviewsMaxPagesGuard(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/json")
		// Feed that never reports itself drained.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ratings":   []map[string]any{{"quality": "average"}},
			"remaining": 100,
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	client.opts.MaxReviewPages = 2

	reviews, err := client.FetchReviews(context.Background(), "12345")
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	assert.Equal(t, 2, pages)
}

func TestFetchReviewsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.FetchReviews(context.Background(), "12345")
	assert.Error(t, err)
}

func TestFetchProfileHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/professor/12345", r.URL.Path)
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><body>profile</body></html>"))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	html, err := client.FetchProfileHTML(context.Background(), "12345")
	require.NoError(t, err)
	assert.Contains(t, html, "profile")
}

func TestFetchRoster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/paginate/professors", r.URL.Path)
		require.Equal(t, "696", r.URL.Query().Get("sid"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"professors": []map[string]any{
					{"tid": 111, "tFname": "Jane", "tLname": "Doe", "tDept": "Computer Science", "tSid": 696},
					{"tid": 222, "tFname": "John", "tLname": "Smith", "tDept": "Mathematics", "tSid": 696},
				},
				"remaining": 0,
			})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	roster, err := client.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, roster, 2)

	assert.Equal(t, 111, roster[0].ID)
	assert.Equal(t, "Jane", roster[0].FirstName)
	assert.Equal(t, "Doe", roster[0].LastName)
	assert.Equal(t, "Computer Science", roster[0].Department)
	assert.Equal(t, 222, roster[1].ID)
}

func TestConnectTimeoutBoundsDial(t *testing.T) {
	// Non-routable address: the dial never completes, so the connect
	// timeout must cut it off well before the total timeout would.
	client := NewClient(ClientOptions{
		BaseURL:        "http://10.255.255.1",
		APIBaseURL:     "http://10.255.255.1",
		UserAgent:      "test-agent",
		ConnectTimeout: 100 * time.Millisecond,
		TotalTimeout:   30 * time.Second,
		MaxRetries:     0,
		BackoffMin:     time.Millisecond,
		BackoffMax:     10 * time.Millisecond,
		MaxConcurrent:  1,
		RPM:            1000,
		RobotsTTL:      time.Hour,
	}, discardLogger())

	start := time.Now()
	_, err := client.FetchProfileHTML(context.Background(), "12345")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 10*time.Second)
}

func TestCalculateBackoffBounds(t *testing.T) {
	client := NewClient(ClientOptions{
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: time.Second,
		JitterPct:  0,
	}, discardLogger())

	assert.Equal(t, 100*time.Millisecond, client.calculateBackoff(1))
	assert.Equal(t, 200*time.Millisecond, client.calculateBackoff(2))
	assert.Equal(t, 400*time.Millisecond, client.calculateBackoff(3))
	// Capped at the configured max.
	assert.Equal(t, time.Second, client.calculateBackoff(10))
}
