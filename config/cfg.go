package config

import (
	"fmt"
	"os"
	"strings"

	httpapi "github.com/dineops/pos-insights-manager/internal/api/http"
	"github.com/dineops/pos-insights-manager/internal/cache"
	"github.com/dineops/pos-insights-manager/internal/pos"
	"github.com/dineops/pos-insights-manager/internal/report"
	"github.com/dineops/pos-insights-manager/internal/store"
	"github.com/dineops/pos-insights-manager/log"
	"github.com/spf13/viper"
)

// Config represents the global configuration for the service.
type Config struct {
	DB     store.Config   `mapstructure:"mysql"`
	Logger log.Config     `mapstructure:"logger"`
	HTTP   httpapi.Config `mapstructure:"http"`
	POS    pos.Config     `mapstructure:"pos"`
	Cache  cache.Config   `mapstructure:"cache"`
	Report report.Config  `mapstructure:"report"`
}

// LoadConfig loads the configuration from a file and/or environment
// variables. Environment variables take precedence over config file values.
func LoadConfig(cfgFile string) (*Config, error) {
	viper.SetConfigType("toml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))
	bindEnvVars()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/config/pos-insights-manager")
		viper.AddConfigPath("/etc/pos-insights-manager")
		_ = viper.ReadInConfig()
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}
	return &config, nil
}

// bindEnvVars binds environment variables to config keys so flat env names
// work alongside nested config-file keys.
func bindEnvVars() {
	// MySQL mirror
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.automigrate", "MYSQL_AUTOMIGRATE")
	viper.BindEnv("mysql.max_open_connections", "MYSQL_MAX_OPEN_CONNECTIONS")
	viper.BindEnv("mysql.max_idle_connections", "MYSQL_MAX_IDLE_CONNECTIONS")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	viper.BindEnv("http.port", "HTTP_PORT")
	viper.BindEnv("http.address", "HTTP_ADDRESS")
	viper.BindEnv("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	viper.BindEnv("http.rate_limit", "HTTP_RATE_LIMIT")

	// Upstream POS API
	viper.BindEnv("pos.base_url", "POS_BASE_URL")
	viper.BindEnv("pos.api_key", "POS_API_KEY")
	viper.BindEnv("pos.issuer_id", "POS_ISSUER_ID")
	viper.BindEnv("pos.signing_secret", "POS_SIGNING_SECRET")
	viper.BindEnv("pos.request_timeout", "POS_REQUEST_TIMEOUT")
	viper.BindEnv("pos.max_concurrent_fetches", "POS_MAX_CONCURRENT_FETCHES")
	viper.BindEnv("pos.current_day_cache_ttl", "POS_CURRENT_DAY_CACHE_TTL")

	// Day-page cache
	viper.BindEnv("cache.path", "CACHE_PATH")

	// Report service
	viper.BindEnv("report.exclude_statuses", "REPORT_EXCLUDE_STATUSES")
	viper.BindEnv("report.default_channels", "REPORT_DEFAULT_CHANNELS")
}
