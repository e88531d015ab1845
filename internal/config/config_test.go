package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:           true,
			PageTimeoutS:       60,
			WaitStableTimeoutS: 30,
			StableWindowMS:     800,
			MinActionSpacingMS: 400,
			SettleRetries:      2,
		},
		Survey: SurveyConfig{
			PortalURL:      "https://eval.example.edu/reportbrowser",
			BaseURL:        "https://eval.example.edu",
			ContentFrame:   "iframe#contentFrame",
			SelectorsFile:  "selectors_survey.yaml",
			TermExclusions: []string{"LAW", "MLS"},
			QuestionOffset: 6,
		},
		Ratings: RatingsConfig{
			BaseURL:       "https://ratings.example.com",
			APIBaseURL:    "https://ratings.example.com",
			SchoolID:      "696",
			SelectorsFile: "selectors_ratings.yaml",
		},
		HTTP: HttpConfig{
			UserAgent:        "test-agent",
			ConnectTimeoutMS: 10000,
			TotalTimeoutMS:   30000,
			MaxRetries:       3,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 2,
			RPM:                  30,
		},
		Backoff: BackoffConfig{
			MinMS:     500,
			MaxMS:     10000,
			JitterPct: 20,
		},
		Scheduler: SchedulerConfig{Mode: "oneshot"},
		Observability: ObservabilityConfig{
			LogPath:  "logs/test.log",
			LogLevel: "info",
		},
		RobotsCacheTTLHours: 24,
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			"missing portal url",
			func(c *Config) { c.Survey.PortalURL = "" },
			"survey.portal_url",
		},
		{
			"negative question offset",
			func(c *Config) { c.Survey.QuestionOffset = -1 },
			"survey.question_offset",
		},
		{
			"missing ratings api",
			func(c *Config) { c.Ratings.APIBaseURL = "" },
			"ratings.api_base_url",
		},
		{
			"missing user agent",
			func(c *Config) { c.HTTP.UserAgent = "" },
			"http.user_agent",
		},
		{
			"backoff min above max",
			func(c *Config) { c.Backoff.MinMS = 20000 },
			"backoff.min_ms",
		},
		{
			"storage enabled without dsn",
			func(c *Config) { c.Storage = StorageConfig{Enabled: true, Driver: "mssql", CommandTimeoutMS: 1000} },
			"storage.dsn",
		},
		{
			"unknown scheduler mode",
			func(c *Config) { c.Scheduler.Mode = "cron" },
			"scheduler.mode",
		},
		{
			"interval mode without interval",
			func(c *Config) { c.Scheduler = SchedulerConfig{Mode: "interval"} },
			"scheduler.interval_s",
		},
		{
			"zero stable window",
			func(c *Config) { c.Browser.StableWindowMS = 0 },
			"browser.stable_window_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler = SchedulerConfig{Mode: "interval", IntervalS: 3600}

	if got := cfg.GetTotalTimeout(); got != 30*time.Second {
		t.Errorf("GetTotalTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetBackoffMin(); got != 500*time.Millisecond {
		t.Errorf("GetBackoffMin() = %v, want 500ms", got)
	}
	if got := cfg.GetSchedulerInterval(); got != time.Hour {
		t.Errorf("GetSchedulerInterval() = %v, want 1h", got)
	}
	if got := cfg.GetRobotsCacheTTL(); got != 24*time.Hour {
		t.Errorf("GetRobotsCacheTTL() = %v, want 24h", got)
	}
	if got := cfg.GetStableWindow(); got != 800*time.Millisecond {
		t.Errorf("GetStableWindow() = %v, want 800ms", got)
	}
}
