package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrBodyTooLarge is returned when a request body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("request body too large")

// CapturedBody is the request body read once from the transport.
// Signature verification and JSON decoding both consume these exact bytes.
type CapturedBody []byte

type bodyKey struct{}

// CaptureBody drains r.Body (at most limit bytes) into an owned buffer and rewinds the
// request so later readers of r.Body see the identical bytes.
func CaptureBody(r *http.Request, limit int64) (CapturedBody, error) {
	if r.Body == nil || r.Body == http.NoBody {
		body := CapturedBody{}
		body.rewind(r)
		return body, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}

	body := CapturedBody(data)
	body.rewind(r)
	return body, nil
}

func (b CapturedBody) rewind(r *http.Request) {
	r.Body = b.Reader()
	r.GetBody = func() (io.ReadCloser, error) {
		return b.Reader(), nil
	}
	r.ContentLength = int64(len(b))
}

// Reader returns a fresh reader over the captured bytes.
func (b CapturedBody) Reader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

// WithBody stores the captured body in ctx.
func WithBody(ctx context.Context, b CapturedBody) context.Context {
	return context.WithValue(ctx, bodyKey{}, b)
}

// BodyFromContext returns the body captured by the gate, if any.
func BodyFromContext(ctx context.Context) (CapturedBody, bool) {
	b, ok := ctx.Value(bodyKey{}).(CapturedBody)
	return b, ok
}
