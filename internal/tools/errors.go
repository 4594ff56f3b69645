package tools

import "errors"

// Sentinel errors for the tool registry.
var (
	ErrNotFound    = errors.New("tool not found")
	ErrInvalidArgs = errors.New("invalid tool arguments")
)
