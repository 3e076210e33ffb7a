package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/inquiry-pipeline/pkg/api"
	"github.com/telekom/inquiry-pipeline/pkg/cli"
	"github.com/telekom/inquiry-pipeline/pkg/config"
	"github.com/telekom/inquiry-pipeline/pkg/inquiry"
	"github.com/telekom/inquiry-pipeline/pkg/pipeline"
	"github.com/telekom/inquiry-pipeline/pkg/telemetry"
	"github.com/telekom/inquiry-pipeline/pkg/version"
)

const smtpVerifyTimeout = 15 * time.Second

func main() {
	cliConfig := cli.Parse()

	zl := setupLogger(cliConfig.Debug)
	log := zl.Sugar()
	log.Infow("Starting inquiry pipeline", version.GetBuildInfo().LogFields()...)
	cliConfig.Print(log)

	if err := config.LoadDotEnv(cliConfig.EnvFile); err != nil {
		log.Fatalf("Error loading env file: %v", err)
	}
	cfg, err := config.Load(cliConfig.ConfigPath)
	if err != nil {
		log.Fatalf("Error loading config for inquiry pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cliConfig, cfg, zl)
	stop()
	_ = zl.Sync()
	if err != nil {
		log.Fatalf("Inquiry pipeline stopped with error: %v", err)
	}
	log.Info("Inquiry pipeline stopped")
}

// run serves the API and the background sweeper until ctx is done.
func run(ctx context.Context, cliConfig *cli.Config, cfg config.Config, zl *zap.Logger) error {
	log := zl.Sugar()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_, shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, version.Version, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warnw("Error flushing traces", "error", err)
		}
	}()

	p, err := pipeline.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warnw("Error closing pipeline", "error", err)
		}
	}()

	if cliConfig.VerifySMTP {
		verifySMTP(ctx, p, log)
	}

	server, err := api.NewServer(api.ServerConfig{
		Log:           zl,
		Cfg:           cfg.Server,
		Debug:         cliConfig.Debug,
		EnableMetrics: cliConfig.EnableMetrics,
		HealthChecks:  p.HealthChecks(),
	})
	if err != nil {
		return err
	}
	if err := server.RegisterAll(p.Controllers()); err != nil {
		return err
	}

	// Background routines
	var wg sync.WaitGroup
	if cliConfig.EnableSweeper {
		routine := inquiry.SweepRoutine{
			Log:      log,
			Service:  p.Service,
			Interval: cli.ParseSweepInterval(cliConfig.SweepInterval, cfg.Delivery.SweepIntervalDuration(), log),
		}
		if cliConfig.EnablePurge {
			routine.AfterSweep = func(ctx context.Context) {
				if _, err := p.Purge(ctx); err != nil {
					log.Errorw("Retention purge failed", "error", err)
				}
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			routine.Start(ctx)
		}()
	} else {
		log.Info("Failed delivery sweeper disabled")
	}

	err = server.Listen(ctx)
	cancel()
	wg.Wait()
	return err
}

// verifySMTP checks the mail server once. A failure is logged and the server
// starts anyway so that submissions are still stored and queued.
func verifySMTP(ctx context.Context, p *pipeline.Pipeline, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(ctx, smtpVerifyTimeout)
	defer cancel()
	if err := p.Transport.Verify(ctx); err != nil {
		log.Warnw("SMTP server not reachable, deliveries will be queued for retry",
			"host", p.Transport.GetHost(), "port", p.Transport.GetPort(), "error", err)
		return
	}
	log.Infow("SMTP server reachable", "host", p.Transport.GetHost(), "port", p.Transport.GetPort())
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
