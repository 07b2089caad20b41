package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	StorageDriverFilesystem = "filesystem"
	StorageDriverMinio      = "minio"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type ContentConfig struct {
	Dir       string
	MaxBytes  int64
	FieldName string
}

type StorageConfig struct {
	Driver    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type JobsConfig struct {
	SweepSchedule string
	StaleAfter    time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Content          ContentConfig
	Storage          StorageConfig
	Redis            RedisConfig
	Jobs             JobsConfig
	Metrics          MetricsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("DISASTERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port out of range: %d", c.HTTP.Port))
	}
	if c.Content.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("content.maxbytes must be positive"))
	}
	if c.Content.FieldName == "" {
		errs = append(errs, fmt.Errorf("content.fieldname is required"))
	}
	switch c.Storage.Driver {
	case StorageDriverFilesystem:
		if c.Content.Dir == "" {
			errs = append(errs, fmt.Errorf("content.dir is required for the filesystem driver"))
		}
	case StorageDriverMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.endpoint and storage.bucket are required for the minio driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Redis.Enabled && c.Redis.Stream == "" {
		errs = append(errs, fmt.Errorf("redis.stream is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.readtimeout", "30s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("content.dir", "./uploads")
	v.SetDefault("content.maxbytes", 10*1024*1024)
	v.SetDefault("content.fieldname", "image")

	v.SetDefault("storage.driver", StorageDriverFilesystem)
	v.SetDefault("storage.bucket", "disasterwatch-uploads")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "uploads:events")

	v.SetDefault("jobs.sweepschedule", "0 */10 * * * *")
	v.SetDefault("jobs.staleafter", "1h")

	v.SetDefault("metrics.enabled", true)
}
