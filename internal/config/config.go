package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/go-tangra/go-tangra-sysinfo/internal/logging"
	"github.com/go-tangra/go-tangra-sysinfo/internal/tracing"
)

// ViewerConfig holds the collector/viewer daemon configuration.
type ViewerConfig struct {
	Listen        string        `mapstructure:"listen" validate:"required"`
	HTTPListen    string        `mapstructure:"http_listen" validate:"required"`
	EnableSwagger bool          `mapstructure:"enable_swagger"`
	DatabasePath  string        `mapstructure:"database" validate:"required"`
	RetentionDays int           `mapstructure:"retention_days" validate:"gte=0"`
	PurgeInterval time.Duration `mapstructure:"purge_interval" validate:"gt=0"`
	ClientSecret  string        `mapstructure:"client_secret"`
	ApiSecret     string        `mapstructure:"api_secret"`

	Log     logging.Config `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// AgentConfig holds the host agent configuration.
type AgentConfig struct {
	CollectorAddr string `mapstructure:"collector" validate:"required"`
	ClientSecret  string `mapstructure:"client_secret"`

	// ClientID defaults to the host ID.
	ClientID string `mapstructure:"client_id"`

	// Concurrency bounds parallel category collection; zero means one
	// goroutine per category.
	Concurrency int `mapstructure:"concurrency" validate:"gte=0"`

	Log     logging.Config `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// viewerFlags maps config keys to the viewer command line flags that
// override them.
var viewerFlags = map[string]string{
	"listen":        "listen",
	"http_listen":   "http-listen",
	"database":      "database",
	"client_secret": "client-secret",
	"api_secret":    "api-secret",
	"log.level":     "log-level",
}

var agentFlags = map[string]string{
	"collector":     "collector",
	"client_secret": "client-secret",
	"client_id":     "client-id",
	"concurrency":   "concurrency",
	"log.level":     "log-level",
}

// LoadViewer reads the viewer configuration from file, environment
// (SYSINFO_VIEWER_*) and flags, in increasing priority.
func LoadViewer(cfgFile string, flags *pflag.FlagSet) (*ViewerConfig, error) {
	v := newViper(cfgFile, "viewer", "SYSINFO_VIEWER")

	v.SetDefault("listen", ":9550")
	v.SetDefault("http_listen", ":9551")
	v.SetDefault("enable_swagger", true)
	v.SetDefault("database", "sysinfo.db")
	v.SetDefault("retention_days", 0)
	v.SetDefault("purge_interval", "24h")
	v.SetDefault("client_secret", "")
	v.SetDefault("api_secret", "")
	setLogDefaults(v)
	setTracingDefaults(v, "sysinfo-viewer")

	var cfg ViewerConfig
	if err := load(v, flags, viewerFlags, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAgent reads the agent configuration from file, environment
// (SYSINFO_AGENT_*) and flags, in increasing priority.
func LoadAgent(cfgFile string, flags *pflag.FlagSet) (*AgentConfig, error) {
	v := newViper(cfgFile, "agent", "SYSINFO_AGENT")

	v.SetDefault("collector", "localhost:9550")
	v.SetDefault("client_secret", "")
	v.SetDefault("client_id", "")
	v.SetDefault("concurrency", 0)
	setLogDefaults(v)
	setTracingDefaults(v, "sysinfo-agent")

	var cfg AgentConfig
	if err := load(v, flags, agentFlags, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper(cfgFile, name, envPrefix string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/sysinfo")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setLogDefaults(v *viper.Viper) {
	d := logging.DefaultConfig()
	v.SetDefault("log.level", d.Level)
	v.SetDefault("log.format", d.Format)
	v.SetDefault("log.outputs", d.Outputs)
	v.SetDefault("log.development", false)
	v.SetDefault("log.rotation.enable", false)
	v.SetDefault("log.rotation.max_size_mb", 100)
	v.SetDefault("log.rotation.max_backups", 3)
	v.SetDefault("log.rotation.max_age_days", 28)
	v.SetDefault("log.rotation.compress", false)
}

func setTracingDefaults(v *viper.Viper, service string) {
	d := tracing.DefaultConfig(service)
	v.SetDefault("tracing.enabled", d.Enabled)
	v.SetDefault("tracing.exporter", d.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.SampleRate)
	v.SetDefault("tracing.service_name", d.ServiceName)
}

func load(v *viper.Viper, flags *pflag.FlagSet, bindings map[string]string, out any) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
