package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config holds the service settings. Every key can be set in the optional YAML file and
// overridden by the upper-case environment variable of the same name (port -> PORT).
type Config struct {
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	GRPCPort           int           `mapstructure:"grpc_port" validate:"omitempty,min=1,max=65535"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" validate:"min=1ms"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" validate:"min=1ms"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size" validate:"min=1"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`

	// MongoURL selects the MongoDB store; empty keeps carts in memory.
	MongoURL      string `mapstructure:"mongodb_url"`
	MongoDatabase string `mapstructure:"mongodb_database" validate:"required"`
	// GuestCartTTL becomes a MongoDB TTL index, which holds at most MaxInt32 seconds.
	GuestCartTTL time.Duration `mapstructure:"guest_cart_ttl" validate:"min=0,max=596523h"`

	// RedisAddr enables the cart cache.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"min=0"`

	// KafkaBrokers enables the checkout consumer.
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" validate:"required"`
	KafkaGroupID string   `mapstructure:"kafka_group_id" validate:"required"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

const (
	defaultPort               = 7463
	defaultMaxRequestBodySize = 1 << 20
)

func Default() *Config {
	return &Config{
		Port:               defaultPort,
		RequestTimeout:     5 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: defaultMaxRequestBodySize,
		CORSAllowedOrigins: []string{"*"},
		MongoDatabase:      "cartdb",
		KafkaTopic:         "checkout-outbox",
		KafkaGroupID:       "cart-service-consumer",
		LogLevel:           "info",
	}
}

// Load reads configFile (skipped when empty) and then the environment on top of Default.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s failed", configFile)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(key), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	cfg.CORSAllowedOrigins = compact(cfg.CORSAllowedOrigins)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
