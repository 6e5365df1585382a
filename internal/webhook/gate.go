package webhook

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Gate authenticates interaction POSTs before any content processing happens.
//
// Non-POST requests (liveness checks) pass through unchecked. A POST must carry both
// signature headers (possibly empty) and a valid Ed25519 signature over timestamp || body; anything else
// is answered with a fixed 401 and never reaches the next handler. The gate keeps no
// state between requests, so the same headers and body always get the same outcome.
type Gate struct {
	key         ed25519.PublicKey
	maxBodySize int64
	logger      *slog.Logger
}

// NewGate creates a gate verifying against key.
func NewGate(key ed25519.PublicKey, maxBodySize int64, logger *slog.Logger) *Gate {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Gate{
		key:         key,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Middleware wraps next with signature verification.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		// Presence matters, not content: an empty timestamp is still signed as "".
		if len(r.Header.Values(HeaderSignature)) == 0 || len(r.Header.Values(HeaderTimestamp)) == 0 {
			g.reject(w, r, ErrMissingSignature)
			return
		}
		signature := r.Header.Get(HeaderSignature)
		timestamp := r.Header.Get(HeaderTimestamp)

		body, err := CaptureBody(r, g.maxBodySize)
		if err != nil {
			g.readFailed(w, r, err)
			return
		}

		if !verifyWithKey(g.key, body, timestamp, signature) {
			g.reject(w, r, ErrInvalidSignature)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithBody(r.Context(), body)))
	})
}

// reject writes the fixed unauthorized response. The payload is never logged.
func (g *Gate) reject(w http.ResponseWriter, r *http.Request, reason error) {
	g.logger.Warn("interaction signature rejected",
		"path", r.URL.Path,
		"reason", reason.Error(),
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, badSignatureBody)
}

func (g *Gate) readFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		g.logger.Warn("interaction body too large",
			"path", r.URL.Path,
			"limit", g.maxBodySize,
			"request_id", middleware.GetReqID(r.Context()),
		)
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	case r.Context().Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Caller went away before the gate passed; nothing else happens for this request.
		g.logger.Debug("interaction abandoned before verification", "path", r.URL.Path, "error", err)
		http.Error(w, "request abandoned", http.StatusRequestTimeout)
	default:
		g.logger.Debug("failed to read interaction body", "path", r.URL.Path, "error", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
	}
}
