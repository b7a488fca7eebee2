package git

import "errors"

// Source errors
var (
	ErrNoSource        = errors.New("either a local path or a remote URL is required")
	ErrAmbiguousSource = errors.New("a local path and a remote URL cannot be used together")
)
