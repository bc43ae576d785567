package ai

import "errors"

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("ai config")

	// ErrEmptyResponse is returned when a model produces no usable output.
	ErrEmptyResponse = errors.New("model returned an empty response")
)
