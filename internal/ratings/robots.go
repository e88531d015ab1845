package ratings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// RobotsCache keeps per-host robots.txt content with a TTL so the policy
// file is not re-fetched on every request.
type RobotsCache struct {
	cache map[string]*robotsEntry
	ttl   time.Duration
	http  *resty.Client
	mu    sync.RWMutex
}

type robotsEntry struct {
	content   string
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, http *resty.Client) *RobotsCache {
	return &RobotsCache{
		cache: make(map[string]*robotsEntry),
		ttl:   ttl,
		http:  http,
	}
}

func (rc *RobotsCache) IsAllowed(ctx context.Context, host, urlStr string) (bool, error) {
	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return !isDisallowedByRobots(cached.content, urlStr), nil
	}

	robotsURL := fmt.Sprintf("https://%s/robots.txt", host)
	resp, err := rc.http.R().SetContext(ctx).Get(robotsURL)
	if err != nil {
		// Network error: assume allowed
		return true, nil
	}
	if resp.StatusCode() != 200 {
		// No robots.txt: assume allowed
		return true, nil
	}

	content := resp.String()

	rc.mu.Lock()
	rc.cache[host] = &robotsEntry{
		content:   content,
		expiresAt: time.Now().Add(rc.ttl),
	}
	rc.mu.Unlock()

	return !isDisallowedByRobots(content, urlStr), nil
}

// isDisallowedByRobots applies the wildcard agent's Disallow prefixes.
func isDisallowedByRobots(robotsContent, urlStr string) bool {
	path := urlStr
	if idx := strings.Index(urlStr, "://"); idx > -1 {
		rest := urlStr[idx+3:]
		if slash := strings.Index(rest, "/"); slash > -1 {
			path = rest[slash:]
		} else {
			path = "/"
		}
	}

	wildcardAgent := false
	for _, line := range strings.Split(robotsContent, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			wildcardAgent = value == "*"
		case "disallow":
			if wildcardAgent && value != "" && strings.HasPrefix(path, value) {
				return true
			}
		}
	}
	return false
}
