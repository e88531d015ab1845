package config

import (
	"fmt"
	"time"
)

type Config struct {
	Browser       BrowserConfig       `yaml:"browser"`
	Survey        SurveyConfig        `yaml:"survey"`
	Ratings       RatingsConfig       `yaml:"ratings"`
	HTTP          HttpConfig          `yaml:"http"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Backoff       BackoffConfig       `yaml:"backoff"`
	Storage       StorageConfig       `yaml:"storage"`
	Export        ExportConfig        `yaml:"export"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`

	RobotsCacheTTLHours int `yaml:"robots_cache_ttl_hours"`
}

type BrowserConfig struct {
	// ControlURL attaches to an already running, already authenticated
	// browser. When empty a fresh browser is launched and the operator
	// completes the login flow by hand; credentials never pass through here.
	ControlURL         string `yaml:"control_url"`
	ChromePath         string `yaml:"chrome_path"`
	Headless           bool   `yaml:"headless"`
	PageTimeoutS       int    `yaml:"page_timeout_s"`
	WaitStableTimeoutS int    `yaml:"wait_stable_timeout_s"`
	StableWindowMS     int    `yaml:"stable_window_ms"`
	MinActionSpacingMS int    `yaml:"min_action_spacing_ms"`
	SettleRetries      int    `yaml:"settle_retries"`
}

type SurveyConfig struct {
	PortalURL      string   `yaml:"portal_url"`
	BaseURL        string   `yaml:"base_url"`
	ContentFrame   string   `yaml:"content_frame"`
	SelectorsFile  string   `yaml:"selectors_file"`
	TermExclusions []string `yaml:"term_exclusions"`
	QuestionOffset int      `yaml:"question_offset"`
	// MaxPages is a runaway guard only; 0 means unbounded and traversal
	// stops when the next-page affordance is exhausted.
	MaxPages int `yaml:"max_pages"`
}

type RatingsConfig struct {
	BaseURL        string   `yaml:"base_url"`
	APIBaseURL     string   `yaml:"api_base_url"`
	SchoolID       string   `yaml:"school_id"`
	ProfessorIDs   []string `yaml:"professor_ids"`
	SelectorsFile  string   `yaml:"selectors_file"`
	MaxReviewPages int      `yaml:"max_review_pages"`
}

type HttpConfig struct {
	UserAgent        string `yaml:"user_agent"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS   int    `yaml:"total_timeout_ms"`
	MaxRetries       int    `yaml:"max_retries"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type StorageConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ExportConfig struct {
	CSVDir string `yaml:"csv_dir"`
}

type SchedulerConfig struct {
	Mode      string `yaml:"mode"`
	IntervalS int    `yaml:"interval_s"`
}

type ObservabilityConfig struct {
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
}

// Validation
func (c *Config) Validate() error {
	if c.Survey.PortalURL == "" {
		return fmt.Errorf("survey.portal_url is required")
	}
	if c.Survey.BaseURL == "" {
		return fmt.Errorf("survey.base_url is required")
	}
	if c.Survey.ContentFrame == "" {
		return fmt.Errorf("survey.content_frame is required")
	}
	if c.Survey.SelectorsFile == "" {
		return fmt.Errorf("survey.selectors_file is required")
	}
	if c.Survey.QuestionOffset < 0 {
		return fmt.Errorf("survey.question_offset must be >= 0")
	}
	if c.Survey.MaxPages < 0 {
		return fmt.Errorf("survey.max_pages must be >= 0")
	}
	if c.Ratings.BaseURL == "" {
		return fmt.Errorf("ratings.base_url is required")
	}
	if c.Ratings.APIBaseURL == "" {
		return fmt.Errorf("ratings.api_base_url is required")
	}
	if c.Ratings.SelectorsFile == "" {
		return fmt.Errorf("ratings.selectors_file is required")
	}
	if c.Ratings.MaxReviewPages < 0 {
		return fmt.Errorf("ratings.max_review_pages must be >= 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Storage.Enabled {
		if c.Storage.Driver != "mssql" {
			return fmt.Errorf("storage.driver must be 'mssql'")
		}
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required")
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
	}
	if c.Scheduler.Mode == "" || (c.Scheduler.Mode != "interval" && c.Scheduler.Mode != "oneshot") {
		return fmt.Errorf("scheduler.mode must be 'interval' or 'oneshot'")
	}
	if c.Scheduler.Mode == "interval" && c.Scheduler.IntervalS <= 0 {
		return fmt.Errorf("scheduler.interval_s must be > 0 when mode is 'interval'")
	}
	if c.Observability.LogPath == "" {
		return fmt.Errorf("observability.log_path is required")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	if c.RobotsCacheTTLHours <= 0 {
		return fmt.Errorf("robots_cache_ttl_hours must be > 0")
	}
	if c.Browser.PageTimeoutS <= 0 {
		return fmt.Errorf("browser.page_timeout_s must be > 0")
	}
	if c.Browser.WaitStableTimeoutS <= 0 {
		return fmt.Errorf("browser.wait_stable_timeout_s must be > 0")
	}
	if c.Browser.StableWindowMS <= 0 {
		return fmt.Errorf("browser.stable_window_ms must be > 0")
	}
	if c.Browser.MinActionSpacingMS < 0 {
		return fmt.Errorf("browser.min_action_spacing_ms must be >= 0")
	}
	if c.Browser.SettleRetries < 0 {
		return fmt.Errorf("browser.settle_retries must be >= 0")
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalS) * time.Second
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetPageTimeout() time.Duration {
	return time.Duration(c.Browser.PageTimeoutS) * time.Second
}

func (c *Config) GetWaitStableTimeout() time.Duration {
	return time.Duration(c.Browser.WaitStableTimeoutS) * time.Second
}

func (c *Config) GetStableWindow() time.Duration {
	return time.Duration(c.Browser.StableWindowMS) * time.Millisecond
}

func (c *Config) GetMinActionSpacing() time.Duration {
	return time.Duration(c.Browser.MinActionSpacingMS) * time.Millisecond
}
