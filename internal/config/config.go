package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Remote   RemoteConfig   `mapstructure:"remote" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Behavior BehaviorConfig `mapstructure:"behavior" validate:"required"`
}

// ServerConfig contains the local status API and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// RemoteConfig contains the settings for talking to the generative video
// service.
type RemoteConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	APIBaseURL     string        `mapstructure:"api_base_url" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	// OffPeakHours lists the local hours (0-23) in which the service offers
	// its discounted scheduling mode.
	OffPeakHours []int `mapstructure:"off_peak_hours" validate:"dive,gte=0,lte=23"`
}

// StorageConfig contains every local file location.
type StorageConfig struct {
	// DataDir holds the ledger, the submission log, and the session token.
	DataDir string `mapstructure:"data_dir" validate:"required"`
	// InputDir is scanned for source images during batch submission.
	InputDir string `mapstructure:"input_dir" validate:"required"`
	// OutputDir receives downloaded videos.
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// BehaviorConfig controls the human-like pacing of remote calls and the
// trigger intervals of the monitor loop.
type BehaviorConfig struct {
	// MinDelay and MaxDelay bound the randomized pause inserted between
	// consecutive remote calls.
	MinDelay time.Duration `mapstructure:"min_delay" validate:"gte=0"`
	MaxDelay time.Duration `mapstructure:"max_delay" validate:"gtefield=MinDelay"`
	// SubmitDelay is the pause between batch submissions.
	SubmitDelay time.Duration `mapstructure:"submit_delay" validate:"gte=0"`
	// PollInterval and ReconcileInterval drive the monitor loop.
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"required"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"required"`
	// HistoryPageSize and HistoryMaxPages bound one reconciliation fetch.
	HistoryPageSize int `mapstructure:"history_page_size" validate:"required,gt=0,lte=100"`
	HistoryMaxPages int `mapstructure:"history_max_pages" validate:"required,gt=0"`
	// RetentionDays is the age after which the cleanup sweep removes tasks
	// from the ledger.
	RetentionDays int `mapstructure:"retention_days" validate:"required,gt=0"`
}
