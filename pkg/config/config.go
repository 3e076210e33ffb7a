package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DefaultSenderAddress = "noreply@example.com"
	DefaultSenderName    = "Inquiries"

	RateLimitBackendSQLite = "sqlite"
	RateLimitBackendRedis  = "redis"
	RateLimitBackendMemory = "memory"

	AuditSinkLog   = "log"
	AuditSinkKafka = "kafka"
)

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
	// TrustedProxies are IPs/CIDRs whose X-Forwarded-For headers are honoured when deriving the client IP.
	TrustedProxies []string `yaml:"trustedProxies"`
	// AllowedOrigins enables CORS for the listed website origins.
	AllowedOrigins []string `yaml:"allowedOrigins"`
	// AdminToken protects the admin endpoints. Empty disables them.
	AdminToken string `yaml:"adminToken"`
	// IdentitySalt is mixed into the client IP hash.
	IdentitySalt    string `yaml:"identitySalt"`
	ShutdownTimeout string `yaml:"shutdownTimeout"`
}

type Mail struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	// NotificationAddress receives the internal notification of every inquiry.
	NotificationAddress string `yaml:"notificationAddress"`
	// AdminAddress receives escalation alerts (ADMIN_EMAIL).
	AdminAddress string `yaml:"adminAddress"`
	SendTimeout  string `yaml:"sendTimeout"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Storage struct {
	// Path of the sqlite database file.
	Path string `yaml:"path"`
	// RateLimitBackend is one of sqlite, redis or memory.
	RateLimitBackend string `yaml:"rateLimitBackend"`
	Redis            Redis  `yaml:"redis"`
	Timeout          string `yaml:"timeout"`
}

type RateLimit struct {
	Count    int   `yaml:"count"`
	WindowMs int64 `yaml:"windowMs"`
}

type Delivery struct {
	MaxRetries     int     `yaml:"maxRetries"`
	BatchSize      int     `yaml:"batchSize"`
	Concurrency    int     `yaml:"concurrency"`
	MailsPerSecond float64 `yaml:"mailsPerSecond"`
	SweepInterval  string  `yaml:"sweepInterval"`
}

type Retention struct {
	Disabled   bool   `yaml:"disabled"`
	Deliveries string `yaml:"deliveries"`
	Counters   string `yaml:"counters"`
	Audit      string `yaml:"audit"`
	// MaxDuplicateEntries trims the Redis duplicate-attempt list.
	MaxDuplicateEntries int64 `yaml:"maxDuplicateEntries"`
}

// Tracing configures OpenTelemetry span export.
type Tracing struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is one of otlp, stdout or none.
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type Kafka struct {
	Brokers            []string `yaml:"brokers"`
	Topic              string   `yaml:"topic"`
	TLS                bool     `yaml:"tls"`
	CAFile             string   `yaml:"caFile"`
	InsecureSkipVerify bool     `yaml:"insecureSkipVerify"`
	// SASLMechanism is empty, PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	SASLMechanism string `yaml:"saslMechanism"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Compression   string `yaml:"compression"`
}

// Audit configures the audit event trail.
type Audit struct {
	Enabled bool `yaml:"enabled"`
	// Sink is log or kafka.
	Sink      string `yaml:"sink"`
	QueueSize int    `yaml:"queueSize"`
	Kafka     Kafka  `yaml:"kafka"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Mail      Mail      `yaml:"mail"`
	Storage   Storage   `yaml:"storage"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Delivery  Delivery  `yaml:"delivery"`
	Retention Retention `yaml:"retention"`
	Tracing   Tracing   `yaml:"tracing"`
	Audit     Audit     `yaml:"audit"`
}

// Load reads the YAML file at configPath (skipped when empty), applies
// environment overrides and defaults, and validates the result.
func Load(configPath string) (Config, error) {
	var config Config

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return config, fmt.Errorf("trying to open inquiry config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(content, &config); err != nil {
			return config, fmt.Errorf("error unmarshaling YAML %s: %w", configPath, err)
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return config, err
	}
	config.Defaults()
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped and existing variables are never overridden.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading env file %s: %w", f, err)
		}
	}
	return nil
}

// Defaults fills every unset field.
func (c *Config) Defaults() {
	setString(&c.Server.ListenAddress, ":8080")
	setString(&c.Server.ShutdownTimeout, "15s")

	setInt(&c.Mail.Port, 587)
	setString(&c.Mail.SenderAddress, DefaultSenderAddress)
	setString(&c.Mail.SenderName, DefaultSenderName)
	setString(&c.Mail.NotificationAddress, c.Mail.AdminAddress)
	setString(&c.Mail.SendTimeout, "30s")

	setString(&c.Storage.Path, "inquiries.db")
	setString(&c.Storage.RateLimitBackend, RateLimitBackendSQLite)
	setString(&c.Storage.Timeout, "5s")

	setInt(&c.RateLimit.Count, 100)
	if c.RateLimit.WindowMs == 0 {
		c.RateLimit.WindowMs = 60000
	}

	setInt(&c.Delivery.MaxRetries, 3)
	setInt(&c.Delivery.BatchSize, 50)
	setInt(&c.Delivery.Concurrency, 1)
	setString(&c.Delivery.SweepInterval, "5m")

	setString(&c.Retention.Deliveries, "720h")
	setString(&c.Retention.Counters, "24h")
	setString(&c.Retention.Audit, "720h")
	if c.Retention.MaxDuplicateEntries == 0 {
		c.Retention.MaxDuplicateEntries = 10000
	}

	setString(&c.Tracing.Exporter, "otlp")
	setString(&c.Tracing.Endpoint, "localhost:4317")
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}

	setString(&c.Audit.Sink, AuditSinkLog)
	setInt(&c.Audit.QueueSize, 1000)
	setString(&c.Audit.Kafka.Topic, "inquiry-audit")
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Mail.Host == "" {
		errs = append(errs, errors.New("mail.host is required"))
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("mail.port %d out of range", c.Mail.Port))
	}
	if c.RateLimit.Count <= 0 {
		errs = append(errs, fmt.Errorf("rateLimit.count must be positive, got %d", c.RateLimit.Count))
	}
	if c.RateLimit.WindowMs <= 0 {
		errs = append(errs, fmt.Errorf("rateLimit.windowMs must be positive, got %d", c.RateLimit.WindowMs))
	}
	if c.Delivery.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("delivery.maxRetries must be positive, got %d", c.Delivery.MaxRetries))
	}
	if c.Delivery.BatchSize <= 0 || c.Delivery.Concurrency <= 0 {
		errs = append(errs, errors.New("delivery.batchSize and delivery.concurrency must be positive"))
	}
	if c.Delivery.MailsPerSecond < 0 {
		errs = append(errs, errors.New("delivery.mailsPerSecond must not be negative"))
	}
	switch c.Storage.RateLimitBackend {
	case RateLimitBackendSQLite, RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.rateLimitBackend %q", c.Storage.RateLimitBackend))
	}
	switch c.Tracing.Exporter {
	case "otlp", "stdout", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown tracing.exporter %q", c.Tracing.Exporter))
	}
	switch c.Audit.Sink {
	case AuditSinkLog:
	case AuditSinkKafka:
		if c.Audit.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("audit.kafka.brokers is required for the kafka audit sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audit.sink %q", c.Audit.Sink))
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.samplingRate must be within [0,1], got %v", c.Tracing.SamplingRate))
	}
	for name, v := range map[string]string{
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
		"mail.sendTimeout":       c.Mail.SendTimeout,
		"storage.timeout":        c.Storage.Timeout,
		"delivery.sweepInterval": c.Delivery.SweepInterval,
		"retention.deliveries":   c.Retention.Deliveries,
		"retention.counters":     c.Retention.Counters,
		"retention.audit":        c.Retention.Audit,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
		}
	}
	return errors.Join(errs...)
}

// Window is the rate limit window as a duration.
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

func (s Server) ShutdownTimeoutDuration() time.Duration {
	return durationOr(s.ShutdownTimeout, 15*time.Second)
}

func (m Mail) SendTimeoutDuration() time.Duration {
	return durationOr(m.SendTimeout, 30*time.Second)
}

func (s Storage) TimeoutDuration() time.Duration {
	return durationOr(s.Timeout, 5*time.Second)
}

func (d Delivery) SweepIntervalDuration() time.Duration {
	return durationOr(d.SweepInterval, 5*time.Minute)
}

func (r Retention) DeliveriesDuration() time.Duration {
	return durationOr(r.Deliveries, 30*24*time.Hour)
}

func (r Retention) CountersDuration() time.Duration {
	return durationOr(r.Counters, 24*time.Hour)
}

func (r Retention) AuditDuration() time.Duration {
	return durationOr(r.Audit, 30*24*time.Hour)
}

func durationOr(value string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return def
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
