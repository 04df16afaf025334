package model

import "time"

// ModelConfig is the configuration passed to a concrete LLM backend
type ModelConfig struct {
	APIKey   string
	Model    string
	URL      string
	ProxyURL string
	IsTest   bool
}

// APIRequest is a single request to an LLM API
type APIRequest struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float32
	ResponseType string // "application/json" or "text/plain"
	URL          string
}

// APIResponse is a single response from an LLM API
type APIResponse struct {
	CreateTime       time.Time
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
