package config

import "time"

// Config represents the complete interactions-gw configuration.
type Config struct {
	Service      ServiceConfig      `yaml:"service"`
	Discord      DiscordConfig      `yaml:"discord"`
	HTTP         HTTPConfig         `yaml:"http"`
	Registration RegistrationConfig `yaml:"registration"`

	// SourceFile is the absolute path of the loaded YAML file, empty in env-only mode.
	SourceFile string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name" env:"INTERACTIONS_SERVICE_NAME"`
	LogLevel  string `yaml:"log_level" env:"INTERACTIONS_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"INTERACTIONS_LOG_FORMAT"`
	// PIDFile, when set, is locked for the lifetime of "start" so only one gateway runs.
	PIDFile string `yaml:"pid_file" env:"INTERACTIONS_PID_FILE"`
}

// DiscordConfig holds the remote platform application credentials.
type DiscordConfig struct {
	ApplicationID string `yaml:"application_id" env:"DISCORD_APPLICATION_ID"`
	// BotToken is only used by command registration.
	BotToken string `yaml:"bot_token" env:"DISCORD_BOT_TOKEN"`
	// PublicKey is the hex-encoded Ed25519 key interaction signatures verify against.
	PublicKey  string `yaml:"public_key" env:"DISCORD_APPLICATION_PUBLIC_KEY"`
	APIBaseURL string `yaml:"api_base_url" env:"DISCORD_API_BASE_URL"`
}

// HTTPConfig defines the interaction listener.
type HTTPConfig struct {
	Listen       string        `yaml:"listen" env:"INTERACTIONS_LISTEN"`
	MaxBodySize  string        `yaml:"max_body_size" env:"INTERACTIONS_MAX_BODY_SIZE"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"INTERACTIONS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"INTERACTIONS_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"INTERACTIONS_IDLE_TIMEOUT"`
}

// RegistrationConfig controls the startup command upsert.
type RegistrationConfig struct {
	Enabled bool          `yaml:"enabled" env:"INTERACTIONS_REGISTER_COMMANDS"`
	Timeout time.Duration `yaml:"timeout" env:"INTERACTIONS_REGISTER_TIMEOUT"`
}

// DefaultAPIBaseURL is the platform REST API root used for command registration.
const DefaultAPIBaseURL = "https://discord.com/api/v10"

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "interactions-gw",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Discord: DiscordConfig{
			APIBaseURL: DefaultAPIBaseURL,
		},
		HTTP: HTTPConfig{
			Listen:       "0.0.0.0:8000",
			MaxBodySize:  "1MB",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Registration: RegistrationConfig{
			Enabled: true,
			Timeout: 15 * time.Second,
		},
	}
}
