package logger

import (
	"io"
	"strings"

	"github.com/spf13/viper"
)

const defaultServiceName = "sitequeue"

// EnvConfig configures a logger from LOG_* environment variables.
type EnvConfig struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // overrides every file/stdout setting below
	ServiceName string
	Environment string // local, dev, prod

	// Outside local, logs are also written to LogFile and rotated.
	LogFile     string
	LogFileOnly bool
	MaxSize     int // MB
	MaxBackups  int
	MaxAge      int // days
	Compress    bool
}

// LoadFromEnv reads the logger settings. Unset or unparsable values fall back
// to the defaults.
func LoadFromEnv() *EnvConfig {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("service_name", defaultServiceName)
	v.SetDefault("app_env", "local")
	v.SetDefault("log_file", "/var/log/sitequeue/app.log")
	v.SetDefault("log_file_only", false)
	v.SetDefault("log_max_size", 100)
	v.SetDefault("log_max_backups", 7)
	v.SetDefault("log_max_age", 30)
	v.SetDefault("log_compress", true)
	v.AutomaticEnv()

	return &EnvConfig{
		Level:       strings.ToLower(v.GetString("log_level")),
		Format:      strings.ToLower(v.GetString("log_format")),
		ServiceName: v.GetString("service_name"),
		Environment: strings.ToLower(v.GetString("app_env")),
		LogFile:     v.GetString("log_file"),
		LogFileOnly: v.GetBool("log_file_only"),
		MaxSize:     positive(v.GetInt("log_max_size"), 100),
		MaxBackups:  positive(v.GetInt("log_max_backups"), 7),
		MaxAge:      positive(v.GetInt("log_max_age"), 30),
		Compress:    v.GetBool("log_compress"),
	}
}

func positive(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
