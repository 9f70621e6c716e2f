package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string        `mapstructure:"mode"`
	LogLevel string        `mapstructure:"log_level"`
	Relay    RelayConfig   `mapstructure:"relay"`
	Auth     AuthConfig    `mapstructure:"auth"`
	Session  SessionConfig `mapstructure:"session"`
	Media    MediaConfig   `mapstructure:"media"`
}

type RelayConfig struct {
	// URL is where clients dial; the remaining keys configure cmd/relay.
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	Port             int           `mapstructure:"port"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	Secret           string        `mapstructure:"secret"`
	ForumLimit       int           `mapstructure:"forum_limit"`
	ForumInterval    time.Duration `mapstructure:"forum_interval"`
}

type AuthConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	StorePath string        `mapstructure:"store_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	SendBuffer int             `mapstructure:"send_buffer"`
	Reconnect  ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig is off by default: a lost connection ends the session.
type ReconnectConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type MediaConfig struct {
	VideoWidth  int `mapstructure:"video_width"`
	VideoHeight int `mapstructure:"video_height"`
}

// NewFlagSet declares the flags shared by both binaries. Flag names equal
// config keys so viper can bind them directly.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("log_level", "info", "log level")
	fs.String("relay.url", "ws://localhost:8080/ws", "relay websocket endpoint")
	fs.Int("relay.port", 8080, "relay listen port")
	fs.String("auth.base_url", "http://localhost:5000", "authentication API base url")
	fs.String("auth.store_path", "", "credential store file")
	fs.Bool("session.reconnect.enabled", false, "redial the relay after a lost connection")
	return fs
}

func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")

	v.SetDefault("relay.url", "ws://localhost:8080/ws")
	v.SetDefault("relay.handshake_timeout", "10s")
	v.SetDefault("relay.port", 8080)
	v.SetDefault("relay.read_limit", 32768)
	v.SetDefault("relay.ping_period", "54s")
	v.SetDefault("relay.secret", "change-me")
	v.SetDefault("relay.forum_limit", 20)
	v.SetDefault("relay.forum_interval", "10s")

	v.SetDefault("auth.base_url", "http://localhost:5000")
	v.SetDefault("auth.store_path", defaultStorePath())
	v.SetDefault("auth.timeout", "15s")

	v.SetDefault("session.send_buffer", 32)
	v.SetDefault("session.reconnect.enabled", false)
	v.SetDefault("session.reconnect.max_attempts", 5)
	v.SetDefault("session.reconnect.initial_backoff", "500ms")
	v.SetDefault("session.reconnect.max_backoff", "15s")

	v.SetDefault("media.video_width", 640)
	v.SetDefault("media.video_height", 480)

	v.SetEnvPrefix("MEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Debug().Str("module", "config").Str("mode", cfg.Mode).Str("relay", cfg.Relay.URL).Int("port", cfg.Relay.Port).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Relay.URL == "" {
		errs = append(errs, errors.New("relay.url is empty"))
	}
	if c.Relay.PingPeriod <= 0 {
		errs = append(errs, errors.New("relay.ping_period must be positive"))
	}
	if c.Session.SendBuffer <= 0 {
		errs = append(errs, errors.New("session.send_buffer must be positive"))
	}
	if c.Session.Reconnect.Enabled && c.Session.Reconnect.MaxAttempts <= 0 {
		errs = append(errs, errors.New("session.reconnect.max_attempts must be positive"))
	}
	return errors.Join(errs...)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".meet-credentials.json"
	}
	return dir + "/meet/credentials.json"
}

// ApplyLogLevel sets the global zerolog level. Unknown levels keep the current one.
func ApplyLogLevel(c *Config) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		log.Warn().Str("module", "config").Str("level", c.LogLevel).Msg("unknown log level, keeping default")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
