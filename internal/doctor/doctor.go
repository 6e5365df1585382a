// Package doctor validates interactions-gw configuration and the command catalog.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattjoyce/interactions-gw/internal/config"
	"github.com/mattjoyce/interactions-gw/internal/interaction"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Command names accepted by the platform for chat input commands.
var commandNameRe = regexp.MustCompile(`^[-_\p{L}\p{N}]{1,32}$`)

const maxDescriptionLen = 100

// Doctor validates a loaded configuration and the commands it would register.
type Doctor struct {
	cfg      *config.Config
	commands []interaction.Command
}

// New creates a Doctor for cfg and the given command catalog.
func New(cfg *config.Config, commands []interaction.Command) *Doctor {
	return &Doctor{cfg: cfg, commands: commands}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateService(r)
	d.validatePublicKey(r)
	d.validateHTTP(r)
	d.validateRegistration(r)
	d.validateCommands(r)
	d.warnIntegrity(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateService(r *Result) {
	switch strings.ToLower(d.cfg.Service.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		d.addError(r, "service", "service.log_level",
			fmt.Sprintf("unknown log level %q (want debug, info, warn or error)", d.cfg.Service.LogLevel))
	}
	switch strings.ToLower(d.cfg.Service.LogFormat) {
	case "json", "text":
	default:
		d.addError(r, "service", "service.log_format",
			fmt.Sprintf("unknown log format %q (want json or text)", d.cfg.Service.LogFormat))
	}
}

// validatePublicKey checks the verification key. Without it every interaction is rejected.
func (d *Doctor) validatePublicKey(r *Result) {
	key := d.cfg.Discord.PublicKey
	if err := config.CheckUnresolved("discord.public_key", key); err != nil {
		d.addError(r, "env_vars", "discord.public_key", err.Error())
		return
	}
	if key == "" {
		d.addError(r, "discord", "discord.public_key", "public key is required")
		return
	}
	if err := config.ValidatePublicKey(key); err != nil {
		d.addError(r, "discord", "discord.public_key", err.Error())
	}
}

func (d *Doctor) validateHTTP(r *Result) {
	h := d.cfg.HTTP
	if h.Listen == "" {
		d.addError(r, "http", "http.listen", "listen address is required")
	} else if _, _, err := net.SplitHostPort(h.Listen); err != nil {
		d.addError(r, "http", "http.listen", fmt.Sprintf("invalid listen address %q: %v", h.Listen, err))
	}

	if h.ReadTimeout <= 0 {
		d.addError(r, "http", "http.read_timeout", "read_timeout must be positive")
	}
	if h.WriteTimeout <= 0 {
		d.addError(r, "http", "http.write_timeout", "write_timeout must be positive")
	}
	if h.IdleTimeout <= 0 {
		d.addError(r, "http", "http.idle_timeout", "idle_timeout must be positive")
	}
	// The platform expects an answer within three seconds.
	if h.WriteTimeout > 0 && h.WriteTimeout.Seconds() < 3 {
		d.addWarning(r, "http", "http.write_timeout",
			fmt.Sprintf("write_timeout %s is shorter than the platform's 3s response window", h.WriteTimeout))
	}
}

func (d *Doctor) validateRegistration(r *Result) {
	if !d.cfg.Registration.Enabled {
		d.addWarning(r, "registration", "registration.enabled",
			"command registration disabled; commands must be registered some other way")
		return
	}

	for _, f := range []struct{ field, value string }{
		{"discord.application_id", d.cfg.Discord.ApplicationID},
		{"discord.bot_token", d.cfg.Discord.BotToken},
	} {
		field, value := f.field, f.value
		if err := config.CheckUnresolved(field, value); err != nil {
			d.addError(r, "env_vars", field, err.Error())
			continue
		}
		if value == "" {
			d.addError(r, "registration", field, "required when registration is enabled")
		}
	}

	if d.cfg.Registration.Timeout <= 0 {
		d.addError(r, "registration", "registration.timeout", "timeout must be positive")
	}

	u, err := url.ParseRequestURI(d.cfg.Discord.APIBaseURL)
	switch {
	case err != nil:
		d.addError(r, "registration", "discord.api_base_url", fmt.Sprintf("invalid URL: %v", err))
	case u.Scheme != "https":
		d.addWarning(r, "registration", "discord.api_base_url",
			fmt.Sprintf("api_base_url uses %s; the bot token will be sent unencrypted", u.Scheme))
	case d.cfg.Discord.APIBaseURL != config.DefaultAPIBaseURL:
		d.addWarning(r, "registration", "discord.api_base_url",
			fmt.Sprintf("non-default api_base_url %q", d.cfg.Discord.APIBaseURL))
	}
}

// validateCommands checks names and descriptions against the platform's limits.
func (d *Doctor) validateCommands(r *Result) {
	if len(d.commands) == 0 {
		d.addError(r, "commands", "", "no commands defined")
		return
	}

	seen := make(map[string]bool, len(d.commands))
	for i, c := range d.commands {
		field := fmt.Sprintf("commands[%d]", i)
		if !commandNameRe.MatchString(c.Name) {
			d.addError(r, "commands", field+".name", fmt.Sprintf("invalid command name %q", c.Name))
		} else if c.Name != strings.ToLower(c.Name) {
			d.addError(r, "commands", field+".name", fmt.Sprintf("command name %q must be lowercase", c.Name))
		}
		if seen[c.Name] {
			d.addError(r, "commands", field+".name", fmt.Sprintf("duplicate command %q", c.Name))
		}
		seen[c.Name] = true

		n := utf8.RuneCountInString(c.Description)
		if n == 0 || n > maxDescriptionLen {
			d.addError(r, "commands", field+".description",
				fmt.Sprintf("description must be 1-%d characters, got %d", maxDescriptionLen, n))
		}
		if c.Reply == "" {
			d.addWarning(r, "commands", field+".reply", fmt.Sprintf("command %q has an empty reply", c.Name))
		}
	}

	if !seen[interaction.FallbackCommand] {
		d.addError(r, "commands", "", fmt.Sprintf("fallback command %q is not defined", interaction.FallbackCommand))
	}
}

// warnIntegrity flags a config file with no manifest, or one that no longer matches it.
func (d *Doctor) warnIntegrity(r *Result) {
	if d.cfg.SourceFile == "" {
		d.addWarning(r, "integrity", "", "no config file; running from environment only")
		return
	}
	err := config.VerifyConfigFile(d.cfg.SourceFile)
	switch {
	case errors.Is(err, config.ErrNotLocked):
		d.addWarning(r, "integrity", "", "config file is not locked; run 'interactions-gw config lock'")
	case err != nil:
		d.addError(r, "integrity", "", err.Error())
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
