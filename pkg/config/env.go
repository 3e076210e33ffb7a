package config

import (
	"fmt"
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	str("INQUIRY_LISTEN_ADDRESS", &c.Server.ListenAddress)
	str("ADMIN_TOKEN", &c.Server.AdminToken)
	str("IDENTITY_SALT", &c.Server.IdentitySalt)
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("TRUSTED_PROXIES"); ok && v != "" {
		c.Server.TrustedProxies = splitList(v)
	}

	str("SMTP_HOST", &c.Mail.Host)
	num("SMTP_PORT", &c.Mail.Port)
	str("SMTP_USER", &c.Mail.User)
	str("SMTP_PASSWORD", &c.Mail.Password)
	str("SMTP_FROM", &c.Mail.SenderAddress)
	str("SMTP_FROM_NAME", &c.Mail.SenderName)
	str("NOTIFICATION_EMAIL", &c.Mail.NotificationAddress)
	str("ADMIN_EMAIL", &c.Mail.AdminAddress)
	if v, ok := lookup("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.Mail.InsecureSkipVerify = strings.EqualFold(v, "true") || v == "1"
	}

	str("DATABASE_PATH", &c.Storage.Path)
	str("RATE_LIMIT_BACKEND", &c.Storage.RateLimitBackend)
	str("REDIS_ADDR", &c.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &c.Storage.Redis.Password)
	num("REDIS_DB", &c.Storage.Redis.DB)

	num("RATE_LIMIT_COUNT", &c.RateLimit.Count)
	if v, ok := lookup("RATE_LIMIT_WINDOW_MS"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("RATE_LIMIT_WINDOW_MS=%q is not an integer", v))
		} else {
			c.RateLimit.WindowMs = n
		}
	}

	num("EMAIL_MAX_RETRIES", &c.Delivery.MaxRetries)

	if v, ok := lookup("TRACING_ENABLED"); ok {
		c.Tracing.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)

	if v, ok := lookup("AUDIT_ENABLED"); ok {
		c.Audit.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	str("AUDIT_SINK", &c.Audit.Sink)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Audit.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Audit.Kafka.Topic)
	str("KAFKA_USERNAME", &c.Audit.Kafka.Username)
	str("KAFKA_PASSWORD", &c.Audit.Kafka.Password)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
