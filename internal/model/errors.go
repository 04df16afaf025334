package model

import "github.com/maxbolgarin/errm"

// Typed errors shared across pipeline stages. Providers wrap these so the
// engine can classify upstream failures without knowing the provider.
var (
	ErrNotFound    = errm.New("resource not found")
	ErrForbidden   = errm.New("access forbidden")
	ErrUnavailable = errm.New("upstream unavailable")

	ErrDuplicateSession  = errm.New("review session already completed for this revision")
	ErrSessionInProgress = errm.New("review session already in progress for this revision")

	ErrMalformedPlan = errm.New("risk plan failed schema validation")
	ErrEmptyResponse = errm.New("empty response from LLM API")
)
