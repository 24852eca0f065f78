package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rl1809/demand-desk/internal/core/calendar"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Redis   RedisConfig   `mapstructure:"redis"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Log     LogConfig     `mapstructure:"log"`
	App     AppConfig     `mapstructure:"app"`
}

type ServerConfig struct {
	HTTPPort        string        `mapstructure:"http_port"`
	GRPCPort        string        `mapstructure:"grpc_port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the backend: "mysql" uses MySQL with Redis
// reservations, "memory" keeps everything in process.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	PoolSize   int           `mapstructure:"pool_size"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expire time.Duration `mapstructure:"expire"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AppConfig struct {
	// FiscalYear is the default year for queries that omit one.
	FiscalYear string `mapstructure:"fiscal_year"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.App.FiscalYear == "" {
		cfg.App.FiscalYear = calendar.CurrentFiscalYear()
	}
	if cfg.App.FiscalYear == "" {
		return nil, fmt.Errorf("today is outside the calendar table, set FISCAL_YEAR")
	}
	if cfg.Storage.Driver != "mysql" && cfg.Storage.Driver != "memory" {
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.grpc_port", ":50051")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.driver", "mysql")

	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/demanddesk?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.catalog_ttl", 5*time.Minute)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.expire", 72*time.Hour)
	v.SetDefault("jwt.issuer", "demand-desk")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("app.fiscal_year", "")
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.http_port", "HTTP_PORT")
	v.BindEnv("server.grpc_port", "GRPC_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")

	v.BindEnv("app.fiscal_year", "FISCAL_YEAR")
}
