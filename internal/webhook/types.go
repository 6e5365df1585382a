package webhook

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mattjoyce/interactions-gw/internal/interaction"
)

// Responder turns a validated interaction into its reply.
type Responder interface {
	Respond(ctx context.Context, req interaction.Request) interaction.Response
}

// Config holds interaction server configuration.
type Config struct {
	// Listen is the bind address (e.g., "0.0.0.0:8000")
	Listen string

	// PublicKey is the platform application's Ed25519 verification key
	PublicKey ed25519.PublicKey

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LivenessResponse is the body of the unauthenticated GET / liveness check.
type LivenessResponse struct {
	Result string `json:"result"`
}

// HealthzResponse is the body of GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse is the JSON response for client errors after authentication.
type ErrorResponse struct {
	Error   string                   `json:"error"`
	Details []interaction.FieldError `json:"details,omitempty"`
}

// Signature headers set by the platform on every interaction POST.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Default values
const (
	DefaultMaxBodySize  = 1048576 // 1 MB
	DefaultListen       = "0.0.0.0:8000"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = 60 * time.Second

	// ShutdownTimeout bounds how long in-flight interactions may finish after cancellation.
	ShutdownTimeout = 5 * time.Second
)

// badSignatureBody is the fixed 401 body. It never varies with the failure reason.
const badSignatureBody = "Bad request signature"
