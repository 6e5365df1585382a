// Package registrar announces the built-in slash commands to the platform API.
//
// Registration is best effort: failures are logged and reported but never stop the
// interaction server from serving.
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattjoyce/interactions-gw/internal/config"
	"github.com/mattjoyce/interactions-gw/internal/interaction"
)

//go:generate mockgen -destination=mocks/mock_registrar.go -package=mocks github.com/mattjoyce/interactions-gw/internal/registrar Doer

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds what the registrar needs to reach the platform API.
type Config struct {
	APIBaseURL    string
	ApplicationID string
	BotToken      string
	Timeout       time.Duration
}

// DefaultTimeout bounds a whole registration run.
const DefaultTimeout = 15 * time.Second

const (
	userAgent       = "interactions-gw (https://github.com/mattjoyce/interactions-gw, 1.0)"
	maxLoggedBody   = 512
	maxResponseBody = 64 * 1024
)

// FromGlobalConfig extracts the registrar settings from the service config.
func FromGlobalConfig(gc *config.Config) Config {
	return Config{
		APIBaseURL:    gc.Discord.APIBaseURL,
		ApplicationID: gc.Discord.ApplicationID,
		BotToken:      gc.Discord.BotToken,
		Timeout:       gc.Registration.Timeout,
	}
}

// Result is the outcome of registering one command.
type Result struct {
	Command    string `json:"command"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the platform accepted the command.
func (r Result) OK() bool {
	return r.Error == ""
}

// Report summarizes one registration run.
type Report struct {
	RunID      string        `json:"run_id"`
	Results    []Result      `json:"results"`
	Registered int           `json:"registered"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// Registrar upserts commands one request at a time.
type Registrar struct {
	cfg      Config
	commands []interaction.Command
	doer     Doer
	logger   *slog.Logger
}

// New creates a registrar. A nil doer uses an http.Client with the configured timeout.
func New(cfg Config, commands []interaction.Command, doer Doer, logger *slog.Logger) *Registrar {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = config.DefaultAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	return &Registrar{
		cfg:      cfg,
		commands: commands,
		doer:     doer,
		logger:   logger,
	}
}

// commandPayload is the body of one command upsert.
type commandPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Endpoint returns the command collection URL for the application.
func (r *Registrar) Endpoint() string {
	return fmt.Sprintf("%s/applications/%s/commands", r.cfg.APIBaseURL, r.cfg.ApplicationID)
}

// Register posts every command and returns the per-command outcome.
// The error is non-nil if any command failed; the report is always complete.
func (r *Registrar) Register(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := r.logger.With("run_id", runID)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	report := &Report{
		RunID:   runID,
		Results: make([]Result, 0, len(r.commands)),
	}

	logger.Info("registering commands", "count", len(r.commands), "endpoint", r.Endpoint())

	var errs []error
	for _, cmd := range r.commands {
		res := r.registerOne(ctx, logger, cmd)
		report.Results = append(report.Results, res)
		if res.OK() {
			report.Registered++
			continue
		}
		report.Failed++
		errs = append(errs, fmt.Errorf("command %q: %s", cmd.Name, res.Error))
	}

	report.Duration = time.Since(start)
	logger.Info("command registration finished",
		"registered", report.Registered,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds(),
	)

	return report, errors.Join(errs...)
}

func (r *Registrar) registerOne(ctx context.Context, logger *slog.Logger, cmd interaction.Command) Result {
	res := Result{Command: cmd.Name}

	payload, err := json.Marshal(commandPayload{Name: cmd.Name, Description: cmd.Description})
	if err != nil {
		res.Error = fmt.Sprintf("encode payload: %v", err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		res.Error = fmt.Sprintf("build request: %v", err)
		return res
	}
	req.Header.Set("Authorization", "Bot "+r.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.doer.Do(req)
	if err != nil {
		logger.Warn("command registration request failed", "command", cmd.Name, "error", err)
		res.Error = fmt.Sprintf("request failed: %v", err)
		return res
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	res.StatusCode = resp.StatusCode

	logger.Info("command registration response",
		"command", cmd.Name,
		"status", resp.StatusCode,
		"body", truncate(string(body), maxLoggedBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return res
}

// RegisterInBackground runs Register on its own goroutine. The returned channel
// receives the report once and is then closed.
func (r *Registrar) RegisterInBackground(ctx context.Context) <-chan *Report {
	done := make(chan *Report, 1)
	go func() {
		defer close(done)
		report, err := r.Register(ctx)
		if err != nil {
			r.logger.Warn("command registration incomplete", "run_id", report.RunID, "error", err)
		}
		done <- report
	}()
	return done
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
