package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the panel service reads from the environment.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required,hostname_port"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json text"`

	PosterSourceURL string `mapstructure:"poster_source_url" validate:"required,url"`
	PosterPageSize  int    `mapstructure:"poster_page_size" validate:"min=1,max=100"`

	UploadURL        string `mapstructure:"upload_url" validate:"required,url"`
	UploadTimeoutSec int    `mapstructure:"upload_timeout_sec" validate:"min=1"`
	PreviewMaxEdge   uint   `mapstructure:"preview_max_edge" validate:"min=16,max=2048"`
	PreviewMaxPixels int64  `mapstructure:"preview_max_pixels" validate:"min=1"`

	PollsEnabled       bool   `mapstructure:"polls_enabled"`
	UploadErrorsInChat bool   `mapstructure:"upload_errors_in_chat"`
	MeetingTokenSecret string `mapstructure:"meeting_token_secret"`
	DatabaseURL        string `mapstructure:"database_url"`

	// ArchiveRetentionHours of 0 keeps archived messages forever.
	ArchiveRetentionHours int `mapstructure:"archive_retention_hours" validate:"min=0"`
	ArchivePurgeEveryMin  int `mapstructure:"archive_purge_every_min" validate:"min=1"`
}

// Load reads .env (if present) and PANEL_* environment variables.
func Load() (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("panel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only resolves keys viper already knows about, so every
	// field needs a default here.
	v.SetDefault("listen_addr", "0.0.0.0:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("poster_source_url", "https://posters.asfischolar.com")
	v.SetDefault("poster_page_size", 12)
	v.SetDefault("upload_url", "http://localhost:34000/asfimeetfileupload")
	v.SetDefault("upload_timeout_sec", 60)
	v.SetDefault("preview_max_edge", 300)
	v.SetDefault("preview_max_pixels", 40_000_000)
	v.SetDefault("polls_enabled", true)
	v.SetDefault("upload_errors_in_chat", true)
	v.SetDefault("meeting_token_secret", "")
	v.SetDefault("database_url", "")
	v.SetDefault("archive_retention_hours", 0)
	v.SetDefault("archive_purge_every_min", 60)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
