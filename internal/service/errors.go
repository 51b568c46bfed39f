package service

import "errors"

var (
	// 目录
	ErrNoCredential     = errors.New("tmdb credential not configured")
	ErrUnauthorized     = errors.New("tmdb rejected credential")
	ErrUpstream         = errors.New("tmdb request failed")
	ErrInvalidCategory  = errors.New("invalid catalog category")
	ErrInvalidMediaType = errors.New("invalid media type")
	ErrStaleRequest     = errors.New("request superseded by a newer one")

	// 片单
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrItemNotFound  = errors.New("planning item not found")

	// 会话
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrUnknownUser     = errors.New("unknown demo user")
	ErrNotAttached     = errors.New("session not attached")
	ErrSessionReset    = errors.New("session state discarded, reload required")
)
