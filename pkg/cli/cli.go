package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when neither the flag nor the config file set one.
const DefaultSweepInterval = 5 * time.Minute

type Config struct {
	Debug bool

	// Configuration flags
	ConfigPath string
	EnvFile    string

	// Component enable flags
	EnableSweeper bool
	EnablePurge   bool
	EnableMetrics bool
	// VerifySMTP dials the mail server once at startup.
	VerifySMTP bool

	// SweepInterval overrides delivery.sweepInterval when set.
	SweepInterval string
}

func Parse() *Config {
	return ParseArgs(flag.CommandLine, os.Args[1:])
}

// ParseArgs registers the flags on fs and parses args.
func ParseArgs(fs *flag.FlagSet, args []string) *Config {
	config := &Config{}
	fs.BoolVar(&config.Debug, "debug", getEnvBool("DEBUG", false), "Enable debug level logging")

	fs.StringVar(&config.ConfigPath, "config-path", getEnvString("INQUIRY_CONFIG_PATH", ""),
		"Path to the YAML configuration file. Empty means environment only")
	fs.StringVar(&config.EnvFile, "env-file", getEnvString("INQUIRY_ENV_FILE", ".env"),
		"Optional .env file loaded before the configuration")

	fs.BoolVar(&config.EnableSweeper, "enable-sweeper", getEnvBool("ENABLE_SWEEPER", true),
		"Run the failed-delivery retry sweep in the background")
	fs.BoolVar(&config.EnablePurge, "enable-purge", getEnvBool("ENABLE_PURGE", true),
		"Run the retention purge after each background sweep")
	fs.BoolVar(&config.EnableMetrics, "enable-metrics", getEnvBool("ENABLE_METRICS", true),
		"Expose Prometheus metrics on /metrics")
	fs.BoolVar(&config.VerifySMTP, "verify-smtp", getEnvBool("VERIFY_SMTP", true),
		"Check the SMTP connection at startup (failures are logged only)")

	fs.StringVar(&config.SweepInterval, "sweep-interval", getEnvString("SWEEP_INTERVAL", ""),
		"Interval between retry sweeps, e.g. 5m")

	_ = fs.Parse(args)
	return config
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"env_file", c.EnvFile,
		"enable_sweeper", c.EnableSweeper,
		"enable_purge", c.EnablePurge,
		"enable_metrics", c.EnableMetrics,
		"verify_smtp", c.VerifySMTP,
		"sweep_interval", c.SweepInterval,
	)
}

// ParseSweepInterval returns the flag value, else fallback, else the default.
func ParseSweepInterval(interval string, fallback time.Duration, log *zap.SugaredLogger) time.Duration {
	def := DefaultSweepInterval
	if fallback > 0 {
		def = fallback
	}
	d, err := parseDuration("sweep-interval", interval, def)
	if err != nil {
		log.Warn(err)
	}
	return d
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
		if d <= 0 {
			return duration, fmt.Errorf("invalid %s %q; using default %s: must be positive", name, value, def.String())
		}
		duration = d
	}
	return duration, nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
