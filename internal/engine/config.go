package engine

import (
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
)

const (
	defaultMaxPatchLines   = 600
	defaultMaxFiles        = 50
	defaultMaxThinkSteps   = 6
	defaultFileTimeout     = 2 * time.Minute
	defaultSessionTimeout  = 15 * time.Minute
	defaultConcurrency     = 4
	defaultEventWorkers    = 8
	defaultMaxRetries      = 3
	defaultRetryDelay      = 2 * time.Second
	defaultMaxFetchBytes   = 64 * 1024
	defaultTokenModel      = "gpt-4o"
	defaultMaxSearchHits   = 10
	defaultMaxObservations = 16 * 1024
)

// Config controls the review orchestration pipeline
type Config struct {
	// Context builder
	MaxPatchLines int    `yaml:"max_patch_lines" env:"ENGINE_MAX_PATCH_LINES"`
	MaxFiles      int    `yaml:"max_files" env:"ENGINE_MAX_FILES"`
	TokenModel    string `yaml:"token_model" env:"ENGINE_TOKEN_MODEL"`

	// Focused reviewer loop bounds
	MaxThinkSteps int           `yaml:"max_think_steps" env:"ENGINE_MAX_THINK_STEPS"`
	FileTimeout   time.Duration `yaml:"file_timeout" env:"ENGINE_FILE_TIMEOUT"`

	// Session bounds
	SessionTimeout time.Duration `yaml:"session_timeout" env:"ENGINE_SESSION_TIMEOUT"`

	// Pools
	Concurrency  int `yaml:"concurrency" env:"ENGINE_CONCURRENCY"`
	EventWorkers int `yaml:"event_workers" env:"ENGINE_EVENT_WORKERS"`

	// Transient-failure retry inside LLM stages
	MaxRetries int           `yaml:"max_retries" env:"ENGINE_MAX_RETRIES"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"ENGINE_RETRY_DELAY"`

	// Session retention; zero keeps terminal sessions for the process lifetime
	RetentionWindow time.Duration `yaml:"retention_window" env:"ENGINE_RETENTION_WINDOW"`

	// ReviewAllFiles ignores the risk plan's focus targets and reviews
	// every file in the diff context
	ReviewAllFiles bool `yaml:"review_all_files" env:"ENGINE_REVIEW_ALL_FILES"`

	// Tool limits
	MaxFetchBytes int `yaml:"max_fetch_bytes" env:"ENGINE_MAX_FETCH_BYTES"`
	MaxSearchHits int `yaml:"max_search_hits" env:"ENGINE_MAX_SEARCH_HITS"`
}

func (c *Config) PrepareAndValidate() error {
	c.MaxPatchLines = lang.Check(c.MaxPatchLines, defaultMaxPatchLines)
	c.MaxFiles = lang.Check(c.MaxFiles, defaultMaxFiles)
	c.TokenModel = lang.Check(c.TokenModel, defaultTokenModel)
	c.MaxThinkSteps = lang.Check(c.MaxThinkSteps, defaultMaxThinkSteps)
	c.FileTimeout = lang.Check(c.FileTimeout, defaultFileTimeout)
	c.SessionTimeout = lang.Check(c.SessionTimeout, defaultSessionTimeout)
	c.Concurrency = lang.Check(c.Concurrency, defaultConcurrency)
	c.EventWorkers = lang.Check(c.EventWorkers, defaultEventWorkers)
	c.MaxRetries = lang.Check(c.MaxRetries, defaultMaxRetries)
	c.RetryDelay = lang.Check(c.RetryDelay, defaultRetryDelay)
	c.MaxFetchBytes = lang.Check(c.MaxFetchBytes, defaultMaxFetchBytes)
	c.MaxSearchHits = lang.Check(c.MaxSearchHits, defaultMaxSearchHits)

	if c.MaxThinkSteps < 1 {
		return errm.New("max_think_steps must be at least 1")
	}
	if c.FileTimeout >= c.SessionTimeout {
		return errm.New("file_timeout must be smaller than session_timeout")
	}
	return nil
}
