package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Auth     AuthConfig     `mapstructure:"auth"`
	Rooms    RoomsConfig    `mapstructure:"rooms"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Media    MediaConfig    `mapstructure:"media"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens; empty falls back to Secret.
	JWTSecret   string `mapstructure:"jwt_secret"`
	AllowGuests bool   `mapstructure:"allow_guests"`
}

type RoomsConfig struct {
	PasswordMaxAttempts int           `mapstructure:"password_max_attempts"`
	PasswordLockout     time.Duration `mapstructure:"password_lockout"`
	MaxActiveRooms      int           `mapstructure:"max_active_rooms"`
	TypingTTL           time.Duration `mapstructure:"typing_ttl"`
	BcryptCost          int           `mapstructure:"bcrypt_cost"`
	EventBuffer         int           `mapstructure:"event_buffer"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MediaConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	PublicURL string `mapstructure:"public_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.allow_guests", true)

	v.SetDefault("rooms.password_max_attempts", 5)
	v.SetDefault("rooms.password_lockout", "5m")
	v.SetDefault("rooms.max_active_rooms", 10000)
	v.SetDefault("rooms.typing_ttl", "5s")
	v.SetDefault("rooms.bcrypt_cost", 10)
	v.SetDefault("rooms.event_buffer", 64)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_conns", 8)
	v.SetDefault("redis.url", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "rooms.events")
	v.SetDefault("media.endpoint", "")
	v.SetDefault("media.access_key", "")
	v.SetDefault("media.secret_key", "")
	v.SetDefault("media.use_ssl", false)
	v.SetDefault("media.bucket", "covers")
	v.SetDefault("media.public_url", "")
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults. Any key can be
// overridden from the environment, e.g. VOICEROOMS_ROOMS_TYPING_TTL=10s.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix("voicerooms")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("storage", cfg.Storage.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres.url is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Media.Endpoint != "" && c.Media.PublicURL == "" {
		errs = append(errs, errors.New("media.public_url is required when media.endpoint is set"))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("secret is required"))
	}
	if c.Rooms.PasswordMaxAttempts < 1 {
		errs = append(errs, errors.New("rooms.password_max_attempts must be positive"))
	}
	if c.Rooms.PasswordLockout <= 0 {
		errs = append(errs, errors.New("rooms.password_lockout must be positive"))
	}
	return errors.Join(errs...)
}

// TokenSecret is the key bearer tokens are verified with.
func (c *Config) TokenSecret() []byte {
	if c.Auth.JWTSecret != "" {
		return []byte(c.Auth.JWTSecret)
	}
	return []byte(c.Secret)
}
