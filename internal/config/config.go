// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. PRIMER_HTTP_LISTEN_ADDR.
const EnvPrefix = "PRIMER"

// Config holds all configuration for the server.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	HttpListenAddr  string        `mapstructure:"http_listen_addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	TaskWorkers   int           `mapstructure:"task_workers" validate:"gte=1"`
	TaskQueueSize int           `mapstructure:"task_queue_size" validate:"gte=1"`
	TaskDelayUnit time.Duration `mapstructure:"task_delay_unit" validate:"gt=0"`

	ExecutionStore string `mapstructure:"execution_store" validate:"oneof=memory etcd redis"`

	EtcdEndpoints []string      `mapstructure:"etcd_endpoints" validate:"required_if=ExecutionStore etcd"`
	EtcdTimeout   time.Duration `mapstructure:"etcd_timeout"`

	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=ExecutionStore redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	RedisPrefix   string `mapstructure:"redis_prefix"`

	HistoryRetention     time.Duration `mapstructure:"history_retention" validate:"gt=0"`
	HistoryPruneSchedule string        `mapstructure:"history_prune_schedule" validate:"required,cron"`

	RateEnabled   bool          `mapstructure:"rate_enabled"`
	RateRPS       float64       `mapstructure:"rate_rps" validate:"gt=0"`
	RateBurst     int           `mapstructure:"rate_burst" validate:"gte=1"`
	RateKeyHeader string        `mapstructure:"rate_key_header"`
	TrustXFF      bool          `mapstructure:"trust_xff"`
	RetryAfter    time.Duration `mapstructure:"retry_after"`

	ConcurrencyMax     int           `mapstructure:"concurrency_max" validate:"gte=0"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout"`

	TraceEnabled bool `mapstructure:"trace_enabled"`
}

// CronParser accepts the six-field (seconds first) expressions used by the pruner, plus descriptors like @hourly.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("shutdown_timeout", "10s")

	v.SetDefault("task_workers", 4)
	v.SetDefault("task_queue_size", 1024)
	v.SetDefault("task_delay_unit", "1s")

	v.SetDefault("execution_store", "memory")
	v.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "primer")

	v.SetDefault("history_retention", "1h")
	v.SetDefault("history_prune_schedule", "0 */5 * * * *")

	v.SetDefault("rate_enabled", false)
	v.SetDefault("rate_rps", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("rate_key_header", "")
	v.SetDefault("trust_xff", false)
	v.SetDefault("retry_after", "1s")

	v.SetDefault("concurrency_max", 0)
	v.SetDefault("concurrency_timeout", "2s")

	v.SetDefault("trace_enabled", false)
}

// Load loads configuration from defaults, an optional config.yaml and
// environment variables, in increasing order of precedence. Extra search
// paths are tried before ./configs and the working directory.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file: defaults and env vars only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("cron", validateCron); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func validateCron(fl validator.FieldLevel) bool {
	_, err := CronParser.Parse(fl.Field().String())
	return err == nil
}
