// Package webhook serves the platform's interaction endpoint.
//
// Every POST to "/" passes through an Ed25519 signature gate before any JSON is parsed.
// The platform signs the raw request body prefixed by the X-Signature-Timestamp header
// value and sends the hex signature in X-Signature-Ed25519. The gate captures the body
// once, verifies timestamp || body against the application's public key and hands the
// same bytes to the interaction parser.
//
// # Security Model
//
// - Verification runs before parsing; unauthenticated bodies are never decoded
// - Failed verification always returns 401 with the body "Bad request signature"
// - Body size limits are enforced while capturing
// - Request logging excludes payloads
// - The public key is loaded from configuration or the environment
//
// # Configuration
//
//	discord:
//	  public_key: ${DISCORD_APPLICATION_PUBLIC_KEY}
//	http:
//	  listen: "0.0.0.0:8000"
//	  max_body_size: 1MB
//
// # Routes
//
//	GET  /         liveness check, {"result":"pong"}, no signature needed
//	POST /         interaction callback, signature required
//	GET  /healthz  process health
//
// # Request Flow
//
//  1. Request arrives at POST /
//  2. Both signature headers must be present, otherwise 401
//  3. Body captured (up to max_body_size, 413 above it)
//  4. Signature verified over timestamp || body, otherwise 401
//  5. Body parsed into an interaction (400 for bad JSON, 422 for a bad shape)
//  6. Responder builds the callback; 200 with the JSON reply
package webhook
