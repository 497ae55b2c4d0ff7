package types

import "time"

// HTTPConfig holds shared HTTP settings for calls to the research API.
type HTTPConfig struct {
	// BaseURL is the API root (e.g. "https://api.tavily.com").
	BaseURL string `json:"api_url" yaml:"api_url" mapstructure:"api_url"`

	// Timeout bounds a single non-streaming request such as a status poll.
	Timeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ResearchConfig holds the resolved settings for one research job.
type ResearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// APIKey authenticates against the research API. Resolved once at
	// startup and passed explicitly to the transport.
	APIKey string `json:"-" yaml:"-" mapstructure:"-"`

	// PollInterval is the delay between status fetches in polling mode (default 5s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	// Timeout is the wall-clock limit for the whole job (default 10m).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries bounds retries of a failed status fetch (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// HistoryDB is the path of the SQLite job ledger. Empty disables it.
	HistoryDB string `json:"history_db" yaml:"history_db" mapstructure:"history_db"`
}

const (
	DefaultBaseURL        = "https://api.tavily.com"
	DefaultPollInterval   = 5 * time.Second
	DefaultTimeout        = 10 * time.Minute
	DefaultMaxRetries     = 3
	DefaultRequestTimeout = 30 * time.Second
	DefaultUserAgent      = "research-skills/0.1"
)

// WithDefaults returns a copy of c with zero fields set to their defaults.
func (c ResearchConfig) WithDefaults() ResearchConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.HTTPConfig.Timeout <= 0 {
		c.HTTPConfig.Timeout = DefaultRequestTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}
