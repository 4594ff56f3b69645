package pipeline

import "errors"

var (
	ErrEmptyRequirement = errors.New("pipeline: requirement is empty")
	ErrNoQueries        = errors.New("pipeline: planner produced no queries")
	ErrMissingComponent = errors.New("pipeline: required component is nil")
)
