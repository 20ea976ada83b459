package config

import (
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type     string `mapstructure:"TYPE"`
		Host     string `mapstructure:"HOST"`
		Port     string `mapstructure:"PORT"`
		DBNAME   string `mapstructure:"DBNAME"`
		User     string `mapstructure:"USER"`
		Password string `mapstructure:"PASSWORD"`
		SSLMode  string `mapstructure:"SSLMODE"`
		Timezone string `mapstructure:"TIMEZONE"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Points struct {
		// EstimatedValuePerPoint prices the provisional pending balance
		// shown to users before the day settles.
		EstimatedValuePerPoint string `mapstructure:"ESTIMATED_VALUE_PER_POINT"`
	} `mapstructure:"POINTS"`
	Revenue struct {
		// CPMRate is the estimated gross revenue per 1000 in-feed impressions.
		CPMRate   string `mapstructure:"CPM_RATE"`
		Placement string `mapstructure:"PLACEMENT"`
	} `mapstructure:"REVENUE"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Distribution struct {
		// Share is the fraction of estimated ad revenue paid out to creators.
		Share      string        `mapstructure:"SHARE"`
		Hour       int           `mapstructure:"HOUR"`
		Minute     int           `mapstructure:"MINUTE"`
		Timezone   string        `mapstructure:"TIMEZONE"`
		TopEarners int           `mapstructure:"TOP_EARNERS"`
		LockTTL    time.Duration `mapstructure:"LOCK_TTL"`
	} `mapstructure:"DISTRIBUTION"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	setDefaults(config)

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "setledger")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", "15s")
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", "60s")
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", "30s")
	v.SetDefault("FLAGSMITH.ADDR", "https://edge.api.flagsmith.com/api/v1/")
	v.SetDefault("POINTS.ESTIMATED_VALUE_PER_POINT", "0.001")
	v.SetDefault("REVENUE.CPM_RATE", "6.00")
	v.SetDefault("REVENUE.PLACEMENT", "in_feed")
	v.SetDefault("DISTRIBUTION.SHARE", "0.6")
	v.SetDefault("DISTRIBUTION.HOUR", 1)
	v.SetDefault("DISTRIBUTION.MINUTE", 0)
	v.SetDefault("DISTRIBUTION.TIMEZONE", "UTC")
	v.SetDefault("DISTRIBUTION.TOP_EARNERS", 10)
	v.SetDefault("DISTRIBUTION.LOCK_TTL", "10m")
}

// EstimatedValuePerPoint parses the configured flat per-point estimate.
func (c *Config) EstimatedValuePerPoint() decimal.Decimal {
	return parseDecimal(c.Points.EstimatedValuePerPoint)
}

// CPMRate parses the configured revenue-per-1000-impressions rate.
func (c *Config) CPMRate() decimal.Decimal {
	return parseDecimal(c.Revenue.CPMRate)
}

// DistributionShare parses the configured distributable fraction.
func (c *Config) DistributionShare() decimal.Decimal {
	return parseDecimal(c.Distribution.Share)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
