package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort     string        `mapstructure:"HTTPPort"`
		MetricsPort  string        `mapstructure:"metricsPort"`
		ReadTimeout  time.Duration `mapstructure:"readTimeout"`
		WriteTimeout time.Duration `mapstructure:"writeTimeout"`
		IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host         string        `mapstructure:"host"`
			Port         string        `mapstructure:"port"`
			Username     string        `mapstructure:"username"`
			Password     string        `mapstructure:"password"`
			DB           string        `mapstructure:"db"`
			SSLMode      string        `mapstructure:"sslmode"`
			QueryTimeout time.Duration `mapstructure:"queryTimeout"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	JWT       JWTConfig `mapstructure:"jwt"`
	RateLimit struct {
		AuthRequestsPerMinute int `mapstructure:"authRequestsPerMinute"`
		MaxFailedLogins       int `mapstructure:"maxFailedLogins"`
	} `mapstructure:"rateLimit"`
}

type JWTConfig struct {
	SecretKey       string        `mapstructure:"secretKey"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets come from the environment, never from the yaml file.
	v.SetEnvPrefix("TASKHUB")
	v.AutomaticEnv()
	if err := v.BindEnv("jwt.secretKey", "TASKHUB_JWT_SECRET"); err != nil {
		return Config{}, fmt.Errorf("failed to bind jwt secret env: %w", err)
	}
	if err := v.BindEnv("repositories.postgres.password", "TASKHUB_POSTGRES_PASSWORD"); err != nil {
		return Config{}, fmt.Errorf("failed to bind postgres password env: %w", err)
	}

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.JWT.SecretKey == "" {
		return Config{}, fmt.Errorf("jwt secret key is not configured (set TASKHUB_JWT_SECRET)")
	}
	return config, nil
}
