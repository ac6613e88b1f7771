package store

import "errors"

// Sentinel kinds for tier store errors.
var (
	ErrNotFound       = errors.New("score not found")
	ErrInvalidEntry   = errors.New("invalid score entry")
	ErrInvalidFilter  = errors.New("invalid metadata filter key")
	ErrStoreUnhealthy = errors.New("store unavailable")
)
