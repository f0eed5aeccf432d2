package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	VME      VMEConfig      `mapstructure:"vme"`
	Modules  ModulesConfig  `mapstructure:"modules"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type AuthConfig struct {
	JWTSecretEnv    string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type VMEConfig struct {
	DefaultTimeout      time.Duration `mapstructure:"default_timeout"`
	DefaultPollInterval time.Duration `mapstructure:"default_poll_interval"`
}

type ModulesConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
	Instances   []string `mapstructure:"instances"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("vme.default_timeout", "1s")
	viper.SetDefault("vme.default_poll_interval", "500ms")

	viper.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	viper.SetDefault("auth.access_token_ttl", "60m")
	viper.SetDefault("auth.refresh_token_ttl", "168h")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OSC")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}
