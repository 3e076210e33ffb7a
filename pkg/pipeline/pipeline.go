// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/inquiry-pipeline/pkg/api"
	"github.com/telekom/inquiry-pipeline/pkg/audit"
	"github.com/telekom/inquiry-pipeline/pkg/config"
	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/inquiry"
	"github.com/telekom/inquiry-pipeline/pkg/mail"
	"github.com/telekom/inquiry-pipeline/pkg/ratelimit"
	"github.com/telekom/inquiry-pipeline/pkg/storage"
)

// memoryCleanupInterval is how often the in-memory counter store drops stale windows.
const memoryCleanupInterval = time.Minute

// Pipeline holds every component of a running inquiry pipeline.
type Pipeline struct {
	Config     config.Config
	DB         *storage.DB
	Transport  *mail.SMTPTransport
	Notifier   *mail.Notifier
	Deliveries *storage.SQLiteStore
	Counters   ratelimit.CounterStore
	Limiter    *ratelimit.FixedWindow
	Dispatcher *delivery.Dispatcher
	Processor  *delivery.RetryProcessor
	Service    *inquiry.Service
	// Audit is nil unless the audit trail is enabled.
	Audit *audit.Manager

	log     *zap.SugaredLogger
	closers []func() error
}

// Build opens storage and wires all components. It does not contact the
// mail server; call Transport.Verify for that.
func Build(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*Pipeline, error) {
	db, err := storage.Open(log, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	p := &Pipeline{Config: cfg, DB: db, log: log}
	p.closers = append(p.closers, db.Close)

	p.Counters, err = p.counterStore(ctx)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	if cfg.Audit.Enabled {
		sink, err := auditSink(cfg.Audit, log)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.Audit = audit.NewManager(sink, audit.ManagerConfig{QueueSize: cfg.Audit.QueueSize}, log.Desugar())
		p.closers = append(p.closers, p.Audit.Close)
	}

	timeouts := delivery.Timeouts{
		Send:    cfg.Mail.SendTimeoutDuration(),
		Storage: cfg.Storage.TimeoutDuration(),
	}
	p.Transport = mail.NewSMTPTransport(cfg.Mail, log)
	p.Notifier = mail.NewNotifier(p.Transport, cfg.Mail.NotificationAddress, cfg.Mail.SenderName, log)
	p.Deliveries = db.Deliveries()
	p.Limiter = ratelimit.New(p.Counters, ratelimit.Config{
		Limit:   cfg.RateLimit.Count,
		Window:  cfg.RateLimit.Window(),
		Timeout: timeouts.Storage,
	}, log.With("component", "ratelimit"))
	p.Dispatcher = delivery.NewDispatcher(p.Notifier, p.Deliveries, timeouts, log.With("component", "dispatcher"))
	p.Processor = delivery.NewRetryProcessor(p.Deliveries, p.Notifier, delivery.RetryConfig{
		MaxRetries:     cfg.Delivery.MaxRetries,
		AdminAddress:   cfg.Mail.AdminAddress,
		BatchSize:      cfg.Delivery.BatchSize,
		Concurrency:    cfg.Delivery.Concurrency,
		MailsPerSecond: cfg.Delivery.MailsPerSecond,
		Timeouts:       timeouts,
	}, log.With("component", "retry"))
	p.Service = inquiry.NewService(p.Limiter, db.Submissions(), p.Dispatcher, p.Processor, log.With("component", "inquiry")).
		WithStorageTimeout(timeouts.Storage)
	if p.Audit != nil {
		p.Service.WithAuditor(p.Audit)
	}

	log.Infow("Inquiry pipeline ready", "database", cfg.Storage.Path, "rateLimitBackend", cfg.Storage.RateLimitBackend,
		"rateLimit", cfg.RateLimit.Count, "window", cfg.RateLimit.Window().String(), "maxRetries", cfg.Delivery.MaxRetries)
	return p, nil
}

func (p *Pipeline) counterStore(ctx context.Context) (ratelimit.CounterStore, error) {
	switch p.Config.Storage.RateLimitBackend {
	case config.RateLimitBackendSQLite, "":
		return p.DB.RateLimits(), nil
	case config.RateLimitBackendRedis:
		rc := ratelimit.RedisConfig{
			Addr:          p.Config.Storage.Redis.Addr,
			Password:      p.Config.Storage.Redis.Password,
			DB:            p.Config.Storage.Redis.DB,
			Retention:     p.Config.Retention.CountersDuration(),
			MaxDuplicates: p.Config.Retention.MaxDuplicateEntries,
		}
		client, err := ratelimit.NewRedisClient(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("connect rate limit redis: %w", err)
		}
		p.closers = append(p.closers, client.Close)
		return ratelimit.NewRedisStore(client, rc), nil
	case config.RateLimitBackendMemory:
		s := ratelimit.NewMemoryStore(memoryCleanupInterval, p.Config.Retention.CountersDuration())
		p.closers = append(p.closers, func() error {
			s.Stop()
			return nil
		})
		return s, nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", p.Config.Storage.RateLimitBackend)
	}
}

func auditSink(cfg config.Audit, log *zap.SugaredLogger) (audit.Sink, error) {
	switch cfg.Sink {
	case config.AuditSinkKafka:
		kc := audit.KafkaSinkConfig{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			CompressionCodec: cfg.Kafka.Compression,
		}
		if cfg.Kafka.TLS {
			kc.TLS = &audit.KafkaTLSConfig{Enabled: true, CAFile: cfg.Kafka.CAFile, InsecureSkipVerify: cfg.Kafka.InsecureSkipVerify}
		}
		if cfg.Kafka.SASLMechanism != "" {
			kc.SASL = &audit.KafkaSASLConfig{Mechanism: cfg.Kafka.SASLMechanism, Username: cfg.Kafka.Username, Password: cfg.Kafka.Password}
		}
		sink, err := audit.NewKafkaSink(kc, log.Desugar())
		if err != nil {
			return nil, fmt.Errorf("create kafka audit sink: %w", err)
		}
		return sink, nil
	case config.AuditSinkLog, "":
		return audit.NewLogSink(log.Desugar()), nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}

// RetentionPolicy is the configured purge policy. A disabled retention keeps everything.
func (p *Pipeline) RetentionPolicy() storage.RetentionPolicy {
	r := p.Config.Retention
	if r.Disabled {
		return storage.RetentionPolicy{}
	}
	return storage.RetentionPolicy{
		Deliveries: r.DeliveriesDuration(),
		Counters:   r.CountersDuration(),
		Audit:      r.AuditDuration(),
	}
}

// Purge applies the retention policy to the sqlite tables.
func (p *Pipeline) Purge(ctx context.Context) (storage.PurgeStats, error) {
	stats, err := p.DB.Purge(ctx, p.RetentionPolicy(), time.Now())
	if err != nil {
		return stats, err
	}
	if p.Audit != nil && stats.Deliveries+stats.Counters+stats.Audit > 0 {
		p.Audit.RetentionPurged(ctx, map[string]any{
			"deliveries": stats.Deliveries,
			"counters":   stats.Counters,
			"audit":      stats.Audit,
		})
	}
	return stats, nil
}

// HealthChecks probes the database and the mail server.
func (p *Pipeline) HealthChecks() []api.HealthCheck {
	return []api.HealthCheck{
		{Name: "database", Check: p.DB.Ping},
		{Name: "smtp", Check: p.Transport.Verify},
	}
}

// Controllers returns the HTTP controllers of the pipeline.
func (p *Pipeline) Controllers() []api.APIController {
	return []api.APIController{
		inquiry.NewInquiryController(p.log.With("component", "inquiry-api"), p.Service, p.Config.Server.IdentitySalt),
		inquiry.NewAdminController(p.log.With("component", "admin-api"), p.Service, p.Deliveries, p.Config.Server.AdminToken),
	}
}

// Close releases storage and counter backends in reverse order of creation.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
