package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load builds the configuration: defaults, then the YAML file at configPath (optional),
// then environment variables, then validation.
// An empty configPath means environment-only mode.
func Load(configPath string) (*Config, error) {
	cfg, err := LoadUnchecked(configPath)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadUnchecked merges defaults, file and environment like Load but skips validation.
// Integrity checks on the file still apply. Used by the doctor to report every problem
// at once instead of stopping at the first.
func LoadUnchecked(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := resolveConfigFile(configPath)
		if err != nil {
			return nil, err
		}

		// Hash-verify the config file if it has been locked
		if err := VerifyConfigFile(absPath); err != nil && !errors.Is(err, ErrNotLocked) {
			return nil, err
		}

		if err := loadConfigFile(absPath, cfg); err != nil {
			return nil, err
		}
		cfg.SourceFile = absPath
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Discover finds a config file by checking standard locations.
// Priority order: $INTERACTIONS_CONFIG, ./config.yaml, ~/.config/interactions-gw/config.yaml,
// /etc/interactions-gw/config.yaml. Returns "" when none exist.
func Discover() string {
	if path := os.Getenv("INTERACTIONS_CONFIG"); path != "" {
		return path
	}

	candidates := []string{"./config.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "interactions-gw", "config.yaml"))
	}
	candidates = append(candidates, "/etc/interactions-gw/config.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// resolveConfigFile turns a file or directory argument into an absolute config file path.
func resolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// ResolveConfigFile is the exported form used by the CLI config commands.
func ResolveConfigFile(configPath string) (string, error) {
	return resolveConfigFile(configPath)
}

// loadConfigFile parses a YAML file over cfg. Keys absent from the file keep their values.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs validation on the merged configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[strings.ToLower(cfg.Service.LogFormat)] {
		return fmt.Errorf("service.log_format must be one of: json, text (got %q)", cfg.Service.LogFormat)
	}

	if err := CheckUnresolved("discord.public_key", cfg.Discord.PublicKey); err != nil {
		return err
	}
	if cfg.Discord.PublicKey == "" {
		return fmt.Errorf("discord.public_key is required (or set DISCORD_APPLICATION_PUBLIC_KEY)")
	}
	if err := ValidatePublicKey(cfg.Discord.PublicKey); err != nil {
		return fmt.Errorf("discord.public_key: %w", err)
	}

	if cfg.HTTP.Listen == "" {
		return fmt.Errorf("http.listen is required")
	}
	if cfg.HTTP.ReadTimeout <= 0 || cfg.HTTP.WriteTimeout <= 0 || cfg.HTTP.IdleTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}

	if cfg.Registration.Enabled {
		if err := CheckUnresolved("discord.application_id", cfg.Discord.ApplicationID); err != nil {
			return err
		}
		if err := CheckUnresolved("discord.bot_token", cfg.Discord.BotToken); err != nil {
			return err
		}
		if cfg.Discord.ApplicationID == "" {
			return fmt.Errorf("discord.application_id is required when registration is enabled")
		}
		if cfg.Discord.BotToken == "" {
			return fmt.Errorf("discord.bot_token is required when registration is enabled")
		}
		if cfg.Registration.Timeout <= 0 {
			return fmt.Errorf("registration.timeout must be positive")
		}
		if _, err := url.ParseRequestURI(cfg.Discord.APIBaseURL); err != nil {
			return fmt.Errorf("discord.api_base_url is not a valid URL: %w", err)
		}
	}

	return nil
}

// ValidatePublicKey checks that key is a hex-encoded 32-byte Ed25519 public key.
func ValidatePublicKey(key string) error {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return fmt.Errorf("not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("must be 32 bytes (64 hex chars), got %d bytes", len(raw))
	}
	return nil
}

// CheckUnresolved reports a ${VAR} placeholder left behind by interpolation.
func CheckUnresolved(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
