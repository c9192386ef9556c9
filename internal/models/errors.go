package models

import "errors"

// Application-wide standard errors
var (
	// Resource errors
	ErrStoryNotFound = errors.New("story not found")

	// Choice application errors
	ErrStoryEnded    = errors.New("story has already ended")
	ErrInvalidChoice = errors.New("choice index out of range")

	// Generation errors
	ErrAIGenerationFailed = errors.New("ai generation failed")
	ErrEmptyModelResponse = errors.New("received empty response from model")

	// General request/server errors
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)
