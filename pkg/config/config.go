// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package config loads and validates the platform configuration file:
// platform identity, API listen settings, the metadata store connection,
// tenants and platform resources.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"

	"tracdap.io/tracmeta/metadata/metastore"
)

// Error is the error class for configuration problems.
var Error = errs.Class("config")

// EnvPrefix is the prefix of environment variable overrides, for example
// TRACMETA_API_LISTEN.
const EnvPrefix = "TRACMETA"

// Config is the root of the platform configuration file.
type Config struct {
	Platform  PlatformConfig            `mapstructure:"platform"`
	API       APIConfig                 `mapstructure:"api"`
	Log       LogConfig                 `mapstructure:"log"`
	Metastore metastore.Config          `mapstructure:"metastore"`
	Secrets   SecretsConfig             `mapstructure:"secrets"`
	Tenants   []TenantConfig            `mapstructure:"tenants"`
	Resources map[string]ResourceConfig `mapstructure:"resources"`
}

// PlatformConfig identifies the deployment.
type PlatformConfig struct {
	Environment    string            `mapstructure:"environment"`
	Production     bool              `mapstructure:"production"`
	DeploymentInfo map[string]string `mapstructure:"deploymentInfo"`
}

// APIConfig holds the gateway listen settings.
type APIConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// LogConfig controls log output. When File is set, output rotates through it;
// otherwise logs go to stderr.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMb"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

// SecretsConfig names the secret store backing resource secrets.
type SecretsConfig struct {
	// Store is a URL: env: resolves aliases as environment variables,
	// file:PATH reads a plain YAML map, aes+file:PATH reads a sealed file
	// opened with the secret key.
	Store string `mapstructure:"store"`
}

// TenantConfig declares one tenant to create at startup.
type TenantConfig struct {
	Code        string `mapstructure:"code"`
	Description string `mapstructure:"description"`
}

// ResourceConfig declares one platform resource. Secrets map property names
// to secret store aliases; values are resolved at startup and never logged.
type ResourceConfig struct {
	ResourceType     string            `mapstructure:"resourceType"`
	Protocol         string            `mapstructure:"protocol"`
	PublicProperties map[string]string `mapstructure:"publicProperties"`
	Properties       map[string]string `mapstructure:"properties"`
	Secrets          map[string]string `mapstructure:"secrets"`
}

// Load reads the configuration file and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, Error.New("unable to read config file %s: %w", path, err)
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, Error.New("unable to parse config file %s: %w", path, err)
	}
	if err := conf.Verify(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.listen", ":8090")
	v.SetDefault("api.readTimeout", 30*time.Second)
	v.SetDefault("api.writeTimeout", 30*time.Second)
	v.SetDefault("api.shutdownTimeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.maxSizeMb", 100)
	v.SetDefault("log.maxBackups", 10)
	v.SetDefault("log.maxAgeDays", 30)
	v.SetDefault("secrets.store", "env:")
}

// Verify checks the settings the platform cannot start without.
func (c *Config) Verify() error {
	if c.Platform.Environment == "" {
		return Error.New("platform.environment is required")
	}
	if c.Metastore.ConnStr == "" {
		return Error.New("metastore.conn-str is required")
	}

	seen := map[string]bool{}
	for _, tenant := range c.Tenants {
		if tenant.Code == "" {
			return Error.New("tenant with empty code")
		}
		if seen[tenant.Code] {
			return Error.New("duplicate tenant code %q", tenant.Code)
		}
		seen[tenant.Code] = true
	}

	for name, resource := range c.Resources {
		if resource.ResourceType == "" {
			return Error.New("resource %q: resourceType is required", name)
		}
		if resource.Protocol == "" {
			return Error.New("resource %q: protocol is required", name)
		}
	}
	return nil
}
