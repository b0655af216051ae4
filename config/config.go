// ringside/config/config.go
package config

import "time"

const (
	AppVersion = "0.9.2"

	// Account field limits
	MaxUsernameLen = 20
	MaxPasswordLen = 20
	MaxEmailLen    = 30
	MaxNicknameLen = 10

	// Content limits
	MaxTitleLen          = 50
	MaxContentLen        = 20000
	MaxCommentLen        = 2000
	MaxMessageTitleLen   = 100
	MaxMessageContentLen = 1000

	// Anonymous content secrets
	MinAnonymousPasswordLen = 4

	// File Upload Limits
	MaxFileSize     = 16 * 1024 * 1024 // 16MB
	MaxWidth        = 8000
	MaxHeight       = 8000
	ThumbnailWidth  = 320
	ThumbnailHeight = 320

	// Session & verification windows
	SessionTTL         = 7 * 24 * time.Hour
	VerificationWindow = 600 * time.Second
	ResetTokenTTL      = 24 * time.Hour

	// VIP tiers
	VIPNone   = 0
	VIPYellow = 1
	VIPBlue   = 2

	// Rate Limiting Defaults
	DefaultRateLimitEvery  = "10s"
	DefaultRateLimitBurst  = 5
	DefaultRateLimitPrune  = "1h"
	DefaultRateLimitExpire = "24h"

	// Pagination
	PostsPerPage = 15
	HomeFeedSize = 8
)
