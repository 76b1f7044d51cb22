// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Scanning: Batch sizes and retry policies for the ingest pipeline.
  - Storage: Well-known subdirectories under the data root.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "inkwell-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// Page and cover endpoints stream archive entries, so this is generous.
	DefaultWriteTimeout = 60 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 60 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "inkwell.app"

	// BearerChallenge is the WWW-Authenticate header value sent with 401 responses.
	BearerChallenge = `Bearer realm="inkwell"`
)

// # Scanning & Jobs

const (
	// ScanBatchSize is the number of extraction results committed per write
	// transaction. Small batches keep the SQLite writer lock yielding.
	ScanBatchSize = 50

	// JobPollInterval is the sleep between job table polls by the worker loop.
	JobPollInterval = 2 * time.Second

	// JobIntegritySweepInterval is how often the idle worker reconciles
	// library is_scanning flags against running jobs.
	JobIntegritySweepInterval = 30 * time.Second

	// DefaultBatchWindowSeconds is the watcher debounce window when the
	// scanning.batch_window setting is unset.
	DefaultBatchWindowSeconds = 600

	// WriteRetryAttempts bounds retries of status/flag writes on transient
	// database lock errors.
	WriteRetryAttempts = 5

	// WriteRetryBaseDelay is the initial backoff between write retries.
	WriteRetryBaseDelay = 25 * time.Millisecond
)

// # Storage Layout

// Well-known subdirectories created under the data root at startup.
const (
	DirDatabase = "database"
	DirCache    = "cache"
	DirCover    = "cover"
	DirAvatars  = "avatars"
	DirBackup   = "backup"
	DirLogs     = "logs"
)

const (
	// DatabaseFileName is the SQLite database file under DirDatabase.
	DatabaseFileName = "inkwell.db"

	// LockFileName is the process-coordinator lock file under the data root.
	LockFileName = "inkwell.lock"
)

// # HTTP Headers

const (
	HeaderXRequestID      = "X-Request-ID"
	HeaderXRealIP         = "X-Real-IP"
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderOrigin          = "Origin"
	HeaderAuthorization   = "Authorization"
	HeaderWWWAuthenticate = "WWW-Authenticate"
)

// # JSON Field Identifiers

const (
	FieldDetail = "detail"
	FieldCode   = "code"
	FieldError  = "error"
	FieldStatus = "status"
	FieldApp    = "app"
	FieldChecks = "checks"
)
