package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from defaults, an optional config file, and environment
// variables. Environment variables (prefix AGV_, dots replaced by
// underscores, e.g. AGV_SERVER_PORT) take precedence over values from the
// config file, which takes precedence over defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("AGV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; everything has a default or an env
	// override. Any other read failure is surfaced.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8422)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("remote.base_url", "https://www.vidu.cn")
	v.SetDefault("remote.api_base_url", "https://service.vidu.cn")
	v.SetDefault("remote.request_timeout", "30s")
	v.SetDefault("remote.max_retries", 3)
	v.SetDefault("remote.off_peak_hours", []int{0, 1, 2, 3, 4, 5, 6})

	v.SetDefault("storage.data_dir", "data/cache")
	v.SetDefault("storage.input_dir", "data/input_images")
	v.SetDefault("storage.output_dir", "data/output_videos")

	v.SetDefault("behavior.min_delay", "10s")
	v.SetDefault("behavior.max_delay", "40s")
	v.SetDefault("behavior.submit_delay", "5s")
	v.SetDefault("behavior.poll_interval", "1h")
	v.SetDefault("behavior.reconcile_interval", "30m")
	v.SetDefault("behavior.history_page_size", 20)
	v.SetDefault("behavior.history_max_pages", 5)
	v.SetDefault("behavior.retention_days", 30)
}
