package settings

import "errors"

var (
	// ErrFetchFailed means the initial read of either record failed; the form
	// stays disabled for its lifetime.
	ErrFetchFailed = errors.New("settings fetch failed")
	// ErrSubmitFailed means a create or update call failed during submit.
	ErrSubmitFailed = errors.New("settings submit failed")
	// ErrValidation means at least one field failed validation; nothing was sent.
	ErrValidation = errors.New("settings validation failed")
	// ErrNotReady means the form has not finished loading or failed to load.
	ErrNotReady = errors.New("settings form not ready")
	// ErrSubmitInProgress means a submit is already running.
	ErrSubmitInProgress = errors.New("settings submit already in progress")
)
