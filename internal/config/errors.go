package config

import "github.com/maxbolgarin/errm"

var (
	ErrConfigNotFound    = errm.New("config file not found")
	ErrNoProviderEnabled = errm.New("at least one provider must be enabled")
)
