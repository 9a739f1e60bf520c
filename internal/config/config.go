package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const EnvPrefix = "DEADBOLT"

type Config struct {
	Deadbolt Deadbolt `yaml:"deadbolt" mapstructure:"deadbolt"`
	Server   Server   `yaml:"server"   mapstructure:"server"`
	Authz    Authz    `yaml:"authz"    mapstructure:"authz"`
	Subjects Subjects `yaml:"subjects" mapstructure:"subjects"`
	Log      Log      `yaml:"log"      mapstructure:"log"`
}

type Deadbolt struct {
	Java Java `yaml:"java" mapstructure:"java"`
}

// Java holds the deadbolt.java.* settings. Timeouts are in milliseconds.
type Java struct {
	ViewTimeoutMS               int    `yaml:"view-timeout"                   mapstructure:"view-timeout"`
	Blocking                    bool   `yaml:"blocking"                       mapstructure:"blocking"`
	BlockingTimeoutMS           int    `yaml:"blocking-timeout"               mapstructure:"blocking-timeout"`
	CacheUser                   bool   `yaml:"cache-user"                     mapstructure:"cache-user"`
	ConstraintMode              string `yaml:"constraint-mode"                mapstructure:"constraint-mode"`
	UnrestrictedBeforeAuthCheck bool   `yaml:"unrestricted-before-auth-check" mapstructure:"unrestricted-before-auth-check"`
	// Workers bounds concurrent blocking evaluations; 0 starts a goroutine per check.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

func (j Java) ViewTimeout() time.Duration { return time.Duration(j.ViewTimeoutMS) * time.Millisecond }

func (j Java) BlockingTimeout() time.Duration {
	return time.Duration(j.BlockingTimeoutMS) * time.Millisecond
}

type Server struct {
	Addr            string        `yaml:"addr"             mapstructure:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"     mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"     mapstructure:"cors_origins"`
}

// Authz selects the backend answering dynamic and custom pattern checks.
type Authz struct {
	Provider  string  `yaml:"provider"   mapstructure:"provider"` // rules | fga | mock
	RulesFile string  `yaml:"rules_file" mapstructure:"rules_file"`
	CacheSize int     `yaml:"cache_size" mapstructure:"cache_size"`
	FGA       OpenFGA `yaml:"fga"        mapstructure:"fga"`
}

type OpenFGA struct {
	APIURL   string `yaml:"api_url"  mapstructure:"api_url"`
	StoreID  string `yaml:"store_id" mapstructure:"store_id"`
	APIToken string `yaml:"api_token" mapstructure:"api_token"`
	ModelID  string `yaml:"model_id" mapstructure:"model_id"`
}

type Subjects struct {
	File string `yaml:"file" mapstructure:"file"`
	// PolicyFile holds role to permission pattern policies; empty uses the built-in set.
	PolicyFile string `yaml:"policy_file" mapstructure:"policy_file"`
	// TokenKey is the HMAC key for bearer tokens; empty disables bearer subjects.
	TokenKey string `yaml:"token_key" mapstructure:"token_key"`
}

type Log struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json"  mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deadbolt.java.view-timeout", 1000)
	v.SetDefault("deadbolt.java.blocking", false)
	v.SetDefault("deadbolt.java.blocking-timeout", 1000)
	v.SetDefault("deadbolt.java.cache-user", false)
	v.SetDefault("deadbolt.java.constraint-mode", "process-all")
	v.SetDefault("deadbolt.java.unrestricted-before-auth-check", false)
	v.SetDefault("deadbolt.java.workers", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("authz.provider", "rules")
	v.SetDefault("authz.rules_file", "")
	v.SetDefault("authz.cache_size", 128)
	v.SetDefault("authz.fga.api_url", "http://localhost:8080")
	v.SetDefault("authz.fga.store_id", "")
	v.SetDefault("authz.fga.api_token", "")
	v.SetDefault("authz.fga.model_id", "")

	v.SetDefault("subjects.file", "")
	v.SetDefault("subjects.policy_file", "")
	v.SetDefault("subjects.token_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Load reads path (optional) and applies DEADBOLT_ env overrides on top of
// the defaults, e.g. DEADBOLT_DEADBOLT_JAVA_VIEW_TIMEOUT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var c Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	j := c.Deadbolt.Java
	if j.ViewTimeoutMS <= 0 {
		return fmt.Errorf("deadbolt.java.view-timeout must be positive, got %d", j.ViewTimeoutMS)
	}
	if j.BlockingTimeoutMS <= 0 {
		return fmt.Errorf("deadbolt.java.blocking-timeout must be positive, got %d", j.BlockingTimeoutMS)
	}
	switch c.Authz.Provider {
	case "rules", "fga", "mock":
	default:
		return fmt.Errorf("authz.provider must be rules, fga or mock, got %q", c.Authz.Provider)
	}
	return nil
}
