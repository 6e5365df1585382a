package webhook

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/interactions-gw/internal/interaction"
	"github.com/mattjoyce/interactions-gw/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cafeReply    = "사좋돌아 https://sadoljoa.co.kr"
	bmsinfoReply = "븜스 입문용 정보 저장소입니다! https://sites.google.com/view/remilegi-bms"
)

func newTestServer(t *testing.T, maxBodySize int64) (http.Handler, ed25519.PrivateKey) {
	t.Helper()
	pub, priv := newKeyPair(t)
	responder := interaction.NewResponder(interaction.DefaultReplyTable(), log.Discard())
	srv := New(Config{
		Listen:      "127.0.0.1:0",
		PublicKey:   pub,
		MaxBodySize: maxBodySize,
	}, responder, log.Discard())
	return srv.Handler(), priv
}

func postInteraction(t *testing.T, h http.Handler, priv ed25519.PrivateKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedPost(priv, "1700000000", []byte(body)))
	return rec
}

func TestLiveness(t *testing.T) {
	h, _ := newTestServer(t, 0)

	for _, headers := range []map[string]string{
		nil,
		{HeaderSignature: "garbage", HeaderTimestamp: "1"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"result":"pong"}`, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, int64(0))
}

func TestInteractionPing(t *testing.T) {
	h, priv := newTestServer(t, 0)

	rec := postInteraction(t, h, priv, `{"type":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"type":1}`, rec.Body.String())
}

func TestInteractionCommands(t *testing.T) {
	h, priv := newTestServer(t, 0)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "cafe in guild",
			body: `{"type":2,"member":{"user":{"id":"1","username":"kim","global_name":"Kim"}},"data":{"name":"카페"}}`,
			want: cafeReply,
		},
		{
			name: "bmsinfo in dm",
			body: `{"type":2,"user":{"id":"2","username":"lee","global_name":null},"data":{"name":"bmsinfo"}}`,
			want: bmsinfoReply,
		},
		{
			name: "unknown command falls back",
			body: `{"type":2,"data":{"name":"unknown-xyz"}}`,
			want: bmsinfoReply,
		},
		{
			name: "component",
			body: `{"type":3,"data":{"name":"카페"}}`,
			want: cafeReply,
		},
		{
			name: "autocomplete",
			body: `{"type":4,"data":{"name":"bmsinfo"}}`,
			want: bmsinfoReply,
		},
		{
			name: "modal submit",
			body: `{"type":5,"data":{"name":"카페"}}`,
			want: cafeReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postInteraction(t, h, priv, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp interaction.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, interaction.CallbackChannelMessageWithSource, resp.Type)
			require.NotNil(t, resp.Data)
			assert.Equal(t, tt.want, resp.Data.Content)
		})
	}
}

func TestInteractionRejectedSignature(t *testing.T) {
	h, priv := newTestServer(t, 0)

	t.Run("missing headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":1}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bad request signature", rec.Body.String())
	})

	t.Run("signature over a different body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":2,"data":{"name":"카페"}}`))
		req.Header.Set(HeaderTimestamp, "1700000000")
		req.Header.Set(HeaderSignature, signRequest(priv, "1700000000", []byte(`{"type":1}`)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bad request signature", rec.Body.String())
	})

	t.Run("invalid json still rejected first", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
		req.Header.Set(HeaderTimestamp, "1")
		req.Header.Set(HeaderSignature, strings.Repeat("ab", ed25519.SignatureSize))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestInteractionInvalidBodies(t *testing.T) {
	h, priv := newTestServer(t, 0)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{name: "not json", body: `{"type":`, wantStatus: http.StatusBadRequest},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest},
		{name: "missing type", body: `{}`, wantStatus: http.StatusUnprocessableEntity, wantField: "type"},
		{name: "unknown type", body: `{"type":9}`, wantStatus: http.StatusUnprocessableEntity, wantField: "type"},
		{name: "type is a string", body: `{"type":"1"}`, wantStatus: http.StatusUnprocessableEntity, wantField: "type"},
		{name: "command without data", body: `{"type":2}`, wantStatus: http.StatusUnprocessableEntity, wantField: "data"},
		{name: "data without name", body: `{"type":2,"data":{}}`, wantStatus: http.StatusUnprocessableEntity, wantField: "data.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postInteraction(t, h, priv, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)

			if tt.wantField == "" {
				return
			}
			fields := make([]string, 0, len(resp.Details))
			for _, d := range resp.Details {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestInteractionBodyTooLarge(t *testing.T) {
	h, priv := newTestServer(t, 64)

	body := `{"type":2,"data":{"name":"` + strings.Repeat("x", 128) + `"}}`
	rec := postInteraction(t, h, priv, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestInteractionHandlerWithoutGate(t *testing.T) {
	pub, _ := newKeyPair(t)
	srv := New(Config{PublicKey: pub}, interaction.NewResponder(interaction.DefaultReplyTable(), log.Discard()), log.Discard())

	rec := httptest.NewRecorder()
	srv.handleInteraction(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"type":1}`))))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(Config{}, nil, log.Discard())
	assert.Equal(t, DefaultListen, srv.config.Listen)
	assert.Equal(t, int64(DefaultMaxBodySize), srv.config.MaxBodySize)
	assert.Equal(t, DefaultReadTimeout, srv.config.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, srv.config.WriteTimeout)
	assert.Equal(t, DefaultIdleTimeout, srv.config.IdleTimeout)
}

func TestServerStartStops(t *testing.T) {
	pub, _ := newKeyPair(t)
	srv := New(Config{Listen: "127.0.0.1:0", PublicKey: pub}, nil, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}

// heldResponder blocks inside Respond until release is closed.
type heldResponder struct {
	entered chan struct{}
	release chan struct{}
}

func (h *heldResponder) Respond(ctx context.Context, req interaction.Request) interaction.Response {
	close(h.entered)
	<-h.release
	return interaction.Pong()
}

func TestServeDrainsInFlightInteraction(t *testing.T) {
	pub, priv := newKeyPair(t)
	held := &heldResponder{entered: make(chan struct{}), release: make(chan struct{})}
	srv := New(Config{PublicKey: pub}, held, log.Discard())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	type reply struct {
		status int
		body   string
		err    error
	}
	replies := make(chan reply, 1)
	go func() {
		body := []byte(`{"type":1}`)
		req, err := http.NewRequest(http.MethodPost, "http://"+ln.Addr().String()+"/", bytes.NewReader(body))
		if err != nil {
			replies <- reply{err: err}
			return
		}
		req.Header.Set(HeaderTimestamp, "1700000000")
		req.Header.Set(HeaderSignature, signRequest(priv, "1700000000", body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			replies <- reply{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		replies <- reply{status: resp.StatusCode, body: string(b), err: err}
	}()

	select {
	case <-held.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("interaction never reached the responder")
	}

	cancel()

	select {
	case err := <-served:
		t.Fatalf("Serve returned with an interaction in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(held.release)

	select {
	case r := <-replies:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.status)
		assert.JSONEq(t, `{"type":1}`, r.body)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight interaction was not answered")
	}

	select {
	case err := <-served:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after draining")
	}
}
