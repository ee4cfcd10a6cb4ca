// Package config resolves runtime settings from flags, the TRAFFICLENS_*
// environment, and an optional .trafficlens.yaml file, in that priority.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	DBPath       string
	ProxyPort    int
	APIPort      int
	APIAddr      string
	TargetDomain string
	LogLevel     string
	LogFormat    string
}

func Default() *Config {
	return &Config{
		DBPath:    "trafficlens.db",
		ProxyPort: 8080,
		APIPort:   8081,
		APIAddr:   "http://localhost:8081",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads configuration via viper. cfgFile overrides the default
// search path ($HOME and the working directory for .trafficlens.yaml).
// A missing config file is not an error; unreadable or malformed files are.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
		v.SetConfigName(".trafficlens")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TRAFFICLENS")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("db", def.DBPath)
	v.SetDefault("proxy_port", def.ProxyPort)
	v.SetDefault("api_port", def.APIPort)
	v.SetDefault("api_addr", def.APIAddr)
	v.SetDefault("target_domain", def.TargetDomain)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		DBPath:       v.GetString("db"),
		ProxyPort:    v.GetInt("proxy_port"),
		APIPort:      v.GetInt("api_port"),
		APIAddr:      v.GetString("api_addr"),
		TargetDomain: v.GetString("target_domain"),
		LogLevel:     v.GetString("log_level"),
		LogFormat:    v.GetString("log_format"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if c.ProxyPort <= 0 || c.ProxyPort > 65535 {
		return fmt.Errorf("proxy_port %d out of range", c.ProxyPort)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("api_port %d out of range", c.APIPort)
	}
	if c.ProxyPort == c.APIPort {
		return fmt.Errorf("proxy_port and api_port must differ")
	}
	return nil
}
