package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/inquiry-pipeline/pkg/config"
	"github.com/telekom/inquiry-pipeline/pkg/inqctl/output"
	"github.com/telekom/inquiry-pipeline/pkg/pipeline"
)

// BuildFunc assembles the pipeline for a command.
type BuildFunc func(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*pipeline.Pipeline, error)

type Config struct {
	ConfigPath   string
	EnvFile      string
	OutputWriter io.Writer
	ErrorWriter  io.Writer
	Build        BuildFunc
}

type runtimeState struct {
	configPath   string
	envFile      string
	outputFormat string
	timeout      time.Duration
	verbose      bool
	writer       io.Writer
	errWriter    io.Writer
	build        BuildFunc
	cfg          *config.Config
	log          *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   os.Getenv("INQUIRY_CONFIG_PATH"),
		EnvFile:      ".env",
		OutputWriter: os.Stdout,
		ErrorWriter:  os.Stderr,
		Build:        pipeline.Build,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		envFile:    cfg.EnvFile,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrorWriter,
		build:      cfg.Build,
	}

	root := &cobra.Command{
		Use:           "inqctl",
		Short:         "Operate the inquiry delivery pipeline",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.build == nil {
				rt.build = pipeline.Build
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("INQCTL_OUTPUT")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("INQCTL_VERBOSE"), "true")
			}
			if _, err := output.ParseFormat(rt.outputFormat); err != nil {
				return err
			}
			rt.log = newLogger(rt.errWriter, rt.verbose)

			// Skip config loading for commands that don't need it
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			if err := config.LoadDotEnv(rt.envFile); err != nil {
				return err
			}
			c, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			rt.cfg = &c
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to the YAML configuration file (env INQUIRY_CONFIG_PATH)")
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", rt.envFile, "Optional .env file loaded before the configuration")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().DurationVar(&rt.timeout, "timeout", 2*time.Minute, "Overall timeout of the command")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewSweepCommand(),
		NewPurgeCommand(),
		NewDeliveriesCommand(),
		NewSMTPCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) OutputFormat() output.Format {
	f, _ := output.ParseFormat(rt.outputFormat)
	return f
}

// withPipeline builds the pipeline, runs fn under the command timeout and
// closes the pipeline again.
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, rt *runtimeState, p *pipeline.Pipeline) error) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	if rt.cfg == nil {
		return errors.New("config not loaded")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), rt.timeout)
	defer cancel()

	p, err := rt.build(ctx, *rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			rt.log.Warnw("Failed to close pipeline", "error", cerr)
		}
	}()
	return fn(ctx, rt, p)
}

func newLogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(t.UTC().Format(time.RFC3339))
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}
