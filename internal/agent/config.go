package agent

import (
	"slices"
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 8000
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultRetryDelay  = 2 * time.Second
	defaultUserAgent   = "ai-code-review/0.1.0 (https://github.com/williamChen26/ai-code-review)"
)

// AgentType represents the type of AI agent
type AgentType string

// Every OpenAI-compatible endpoint (OpenAI, Azure OpenAI, local gateways)
// goes through the openai backend with a custom base URL
const (
	OpenAI AgentType = "openai"
)

var supportedAgentTypes = []AgentType{OpenAI}

// Config represents AI agent configuration
type Config struct {
	Type        AgentType `yaml:"type" env:"AGENT_TYPE"`
	APIKey      string    `yaml:"api_key" env:"AGENT_API_KEY"`
	Model       string    `yaml:"model" env:"AGENT_MODEL"`
	Temperature float32   `yaml:"temperature" env:"AGENT_TEMPERATURE"`
	MaxTokens   int       `yaml:"max_tokens" env:"AGENT_MAX_TOKENS"`

	BaseURL    string        `yaml:"base_url" env:"AGENT_BASE_URL"` // Azure OpenAI, local models, etc.
	ProxyURL   string        `yaml:"proxy_url" env:"AGENT_PROXY_URL"`
	MaxRetries int           `yaml:"max_retries" env:"AGENT_MAX_RETRIES"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"AGENT_RETRY_DELAY"`
	Timeout    time.Duration `yaml:"timeout" env:"AGENT_TIMEOUT"`
	UserAgent  string        `yaml:"user_agent" env:"AGENT_USER_AGENT"`
	IsTest     bool          `yaml:"is_test" env:"AGENT_IS_TEST"`
}

func (c *Config) PrepareAndValidate() error {
	if c.APIKey == "" {
		return erro.New("api key is required")
	}
	c.Type = lang.Check(c.Type, OpenAI)
	if !slices.Contains(supportedAgentTypes, c.Type) {
		return erro.New("invalid agent type: %s", c.Type)
	}

	c.Temperature = lang.Check(c.Temperature, defaultTemperature)
	c.MaxTokens = lang.Check(c.MaxTokens, defaultMaxTokens)
	c.Timeout = lang.Check(c.Timeout, defaultTimeout)
	c.MaxRetries = lang.Check(c.MaxRetries, defaultMaxRetries)
	c.RetryDelay = lang.Check(c.RetryDelay, defaultRetryDelay)
	c.UserAgent = lang.Check(c.UserAgent, defaultUserAgent)

	return nil
}
