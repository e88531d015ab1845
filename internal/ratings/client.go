package ratings

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientOptions carries everything the ratings client needs; the caller
// maps them from the run configuration.
type ClientOptions struct {
	BaseURL        string
	APIBaseURL     string
	SchoolID       string
	UserAgent      string
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	MaxRetries     int
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	JitterPct      int
	MaxConcurrent  int
	RPM            int
	RobotsTTL      time.Duration
	MaxReviewPages int
}

// Client fetches rendered profile pages and the paginated review feed.
type Client struct {
	http    *resty.Client
	opts    ClientOptions
	limiter *RateLimiter
	robots  *RobotsCache
	logger  *slog.Logger
}

func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	c := &Client{
		opts:    opts,
		limiter: NewRateLimiter(opts.MaxConcurrent, opts.RPM),
		logger:  logger,
	}

	// Connect and total timeouts are split: the dialer bounds connection
	// establishment, the client timeout bounds the whole exchange.
	c.http = resty.New().
		SetTransport(&http.Transport{
			DialContext:         (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
			TLSHandshakeTimeout: opts.ConnectTimeout,
		}).
		SetTimeout(opts.TotalTimeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/json;q=0.9,*/*;q=0.8").
		SetRetryCount(opts.MaxRetries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == 429
		}).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			return c.calculateBackoff(resp.Request.Attempt), nil
		})

	c.robots = NewRobotsCache(opts.RobotsTTL, c.http)
	return c
}

// FetchProfileHTML returns the rendered profile page for one professor.
func (c *Client) FetchProfileHTML(ctx context.Context, professorID string) (string, error) {
	pageURL := fmt.Sprintf("%s/professor/%s", c.opts.BaseURL, professorID)
	if err := c.gate(ctx, pageURL); err != nil {
		return "", err
	}

	resp, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch profile %s: %w", professorID, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("fetch profile %s: status %d", professorID, resp.StatusCode())
	}
	return resp.String(), nil
}

type reviewsPage struct {
	Ratings   []Review `json:"ratings"`
	Remaining int      `json:"remaining"`
}

// FetchReviews pages through the review feed until the API reports nothing
// remaining. An empty feed is a valid result, not an error.
func (c *Client) FetchReviews(ctx context.Context, professorID string) ([]Review, error) {
	feedURL := c.opts.APIBaseURL + "/paginate/professors/ratings"
	var reviews []Review

	for page := 1; ; page++ {
		if err := c.gate(ctx, feedURL); err != nil {
			return reviews, err
		}

		var body reviewsPage
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"tid":  professorID,
				"page": strconv.Itoa(page),
			}).
			SetResult(&body).
			Get(feedURL)
		if err != nil {
			return reviews, fmt.Errorf("reviews for %s page %d: %w", professorID, page, err)
		}
		if resp.StatusCode() != 200 {
			return reviews, fmt.Errorf("reviews for %s page %d: status %d", professorID, page, resp.StatusCode())
		}

		reviews = append(reviews, body.Ratings...)
		c.logger.Debug("Review page fetched",
			"professor_id", professorID,
			"page", page,
			"reviews", len(body.Ratings),
			"remaining", body.Remaining,
		)

		if body.Remaining <= 0 || len(body.Ratings) == 0 {
			break
		}
		if c.opts.MaxReviewPages > 0 && page >= c.opts.MaxReviewPages {
			c.logger.Warn("Stopping at max_review_pages guard",
				"professor_id", professorID,
				"page", page,
			)
			break
		}
	}

	return reviews, nil
}

type rosterPage struct {
	Professors []RosterEntry `json:"professors"`
	Remaining  int           `json:"remaining"`
}

// FetchRoster pages through the school's professor roster.
func (c *Client) FetchRoster(ctx context.Context) ([]RosterEntry, error) {
	rosterURL := c.opts.APIBaseURL + "/paginate/professors"
	var roster []RosterEntry

	for page := 1; ; page++ {
		if err := c.gate(ctx, rosterURL); err != nil {
			return roster, err
		}

		var body rosterPage
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"sid":  c.opts.SchoolID,
				"page": strconv.Itoa(page),
			}).
			SetResult(&body).
			Get(rosterURL)
		if err != nil {
			return roster, fmt.Errorf("roster page %d: %w", page, err)
		}
		if resp.StatusCode() != 200 {
			return roster, fmt.Errorf("roster page %d: status %d", page, resp.StatusCode())
		}

		roster = append(roster, body.Professors...)
		if body.Remaining <= 0 || len(body.Professors) == 0 {
			break
		}
	}

	return roster, nil
}

// gate applies the robots policy and the per-host rate limit before any
// outbound request.
func (c *Client) gate(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	allowed, err := c.robots.IsAllowed(ctx, parsed.Host, rawURL)
	if err != nil {
		return fmt.Errorf("robots.txt check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("URL disallowed by robots.txt: %s", rawURL)
	}

	if err := c.limiter.Wait(ctx, parsed.Host); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}
	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	minMS := int(c.opts.BackoffMin / time.Millisecond)
	maxMS := int(c.opts.BackoffMax / time.Millisecond)

	// Exponential backoff: min * 2^attempt
	exponential := minMS * (1 << uint(attempt-1))
	if exponential > maxMS {
		exponential = maxMS
	}

	// Apply jitter: ±jitterPct%
	jitterRange := float64(exponential) * float64(c.opts.JitterPct) / 100
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	finalMS := math.Max(float64(exponential)+jitter, float64(minMS))

	return time.Duration(math.Max(finalMS, 0)) * time.Millisecond
}
