package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/interactions-gw/internal/config"
)

// FromGlobalConfig converts the loaded service config to webhook.Config.
// Decodes the public key and parses the max body size.
func FromGlobalConfig(gc *config.Config) (Config, error) {
	if gc == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	key, err := ParsePublicKey(gc.Discord.PublicKey)
	if err != nil {
		return Config{}, fmt.Errorf("discord.public_key: %w", err)
	}

	// Parse max body size (e.g., "1MB", "2048576")
	maxBodySize, err := parseMaxBodySize(gc.HTTP.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid http.max_body_size %q: %w", gc.HTTP.MaxBodySize, err)
	}

	return Config{
		Listen:       gc.HTTP.Listen,
		PublicKey:    key,
		MaxBodySize:  maxBodySize,
		ReadTimeout:  gc.HTTP.ReadTimeout,
		WriteTimeout: gc.HTTP.WriteTimeout,
		IdleTimeout:  gc.HTTP.IdleTimeout,
	}, nil
}

// parseMaxBodySize parses size strings like "1MB", "512KB", "1048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	// Handle unit suffixes (KB, MB, GB)
	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value { // Check for overflow
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}
