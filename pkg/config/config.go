package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WARDEN_PROBE_INTERVAL maps to probe.interval
var envKeyReplacer = strings.NewReplacer(".", "_")

// ProcessConfig describes the supervised workload
type ProcessConfig struct {
	Command []string          `mapstructure:"command"`
	WorkDir string            `mapstructure:"workdir"`
	Env     map[string]string `mapstructure:"env"`
}

// RuntimeConfig carries the process-wide runtime options the container
// contract recognizes
type RuntimeConfig struct {
	Timezone             string `mapstructure:"timezone"`
	UnbufferedOutput     bool   `mapstructure:"unbuffered_output"`
	DisableBytecodeCache bool   `mapstructure:"disable_bytecode_cache"`
	DisablePipCache      bool   `mapstructure:"disable_pip_cache"`
}

// ProbeConfig configures the liveness probe
type ProbeConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Command          []string      `mapstructure:"command"`
	Token            string        `mapstructure:"token"`
}

// ProvisionConfig configures dependency installation
type ProvisionConfig struct {
	Manifest string `mapstructure:"manifest"`
	StampDir string `mapstructure:"stamp_dir"`
	Python   string `mapstructure:"python"`
}

// LogConfig configures the log sink
type LogConfig struct {
	Dir          string `mapstructure:"dir"`
	Level        string `mapstructure:"level"`
	JSON         bool   `mapstructure:"json"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
	Backups      int    `mapstructure:"backups"`
}

// APIConfig configures the status API
type APIConfig struct {
	Addr           string  `mapstructure:"addr"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// JournalConfig configures probe/event history persistence.
// An empty path selects the in-memory journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// Config is the full supervisor configuration
type Config struct {
	Process   ProcessConfig   `mapstructure:"process"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Provision ProvisionConfig `mapstructure:"provision"`
	Log       LogConfig       `mapstructure:"log"`
	API       APIConfig       `mapstructure:"api"`
	Journal   JournalConfig   `mapstructure:"journal"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("process.command", []string{"python", "bot.py"})
	v.SetDefault("process.workdir", "")

	v.SetDefault("runtime.timezone", "Europe/Amsterdam")
	v.SetDefault("runtime.unbuffered_output", true)
	v.SetDefault("runtime.disable_bytecode_cache", true)
	v.SetDefault("runtime.disable_pip_cache", true)

	v.SetDefault("probe.interval", "30s")
	v.SetDefault("probe.timeout", "5s")
	v.SetDefault("probe.grace_period", "20s")
	v.SetDefault("probe.failure_threshold", 3)
	v.SetDefault("probe.command", []string{"python", "-c", "print('ok')"})
	v.SetDefault("probe.token", "ok")

	v.SetDefault("provision.manifest", "requirements.txt")
	v.SetDefault("provision.stamp_dir", ".warden")
	v.SetDefault("provision.python", "python")

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.max_size_bytes", int64(5_000_000))
	v.SetDefault("log.backups", 3)

	v.SetDefault("api.addr", ":9620")
	v.SetDefault("api.rate_limit_rps", 10.0)
	v.SetDefault("api.rate_limit_burst", 20)

	v.SetDefault("journal.path", "")
}

// Load reads configuration from an optional file plus WARDEN_*
// environment variables. An empty path searches the working directory
// and /etc/warden for warden.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("warden")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/warden")
	}

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if len(c.Process.Command) == 0 {
		return fmt.Errorf("process.command must not be empty")
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("probe.interval must be positive")
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	if c.Probe.Timeout >= c.Probe.Interval {
		return fmt.Errorf("probe.timeout must be shorter than probe.interval")
	}
	if c.Probe.FailureThreshold <= 0 {
		return fmt.Errorf("probe.failure_threshold must be positive")
	}
	if len(c.Probe.Command) == 0 {
		return fmt.Errorf("probe.command must not be empty")
	}
	if c.Log.Dir == "" {
		return fmt.Errorf("log.dir must not be empty")
	}
	if c.Provision.Manifest == "" {
		return fmt.Errorf("provision.manifest must not be empty")
	}
	return nil
}

// ChildEnv resolves the full environment for the workload process:
// the parent environment plus the runtime options mapped to the
// variables the interpreter understands.
func (c *Config) ChildEnv() []string {
	env := os.Environ()

	env = append(env, "TZ="+c.Runtime.Timezone)
	if c.Runtime.UnbufferedOutput {
		env = append(env, "PYTHONUNBUFFERED=1")
	}
	if c.Runtime.DisableBytecodeCache {
		env = append(env, "PYTHONDONTWRITEBYTECODE=1")
	}
	if c.Runtime.DisablePipCache {
		env = append(env, "PIP_NO_CACHE_DIR=1")
	}

	// Extra env in sorted order for deterministic launches
	keys := make([]string, 0, len(c.Process.Env))
	for k := range c.Process.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+c.Process.Env[k])
	}

	return env
}
