package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/instrumental/instrumental-go/internal/cliconfig"
	"github.com/instrumental/instrumental-go/pkg/instrumental"
	"github.com/instrumental/instrumental-go/pkg/log"
	"github.com/instrumental/instrumental-go/pkg/telemetry"
)

const longHelp = `Record metrics and notices to Instrumental from the shell.

Every command queues its message, waits up to --flush-timeout for it to be
delivered, and exits non-zero if delivery did not complete. Configure via
$HOME/.instrumental/config.toml, INSTRUMENTAL_* environment variables, or flags.`

var exampleUsage = strings.TrimSpace(`
  instrumental gauge db.connections 42
  instrumental increment deploys
  instrumental notice "deployed v1.2.3" --duration 90s
  tail -F events.log | instrumental pipe
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "instrumental: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// session holds what a command needs once configuration is resolved.
type session struct {
	cfg     cliconfig.Config
	cfgPath string
	changed map[string]bool

	logger  *log.ZerologAdapter
	agent   *instrumental.Agent
	metrics *http.Server
}

func newRootCommand() *cobra.Command {
	s := &session{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "instrumental",
		Short:         "Record metrics and notices to Instrumental",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&s.cfgPath, "config", "", "path to config file (default: $HOME/.instrumental/config.toml)")
	flags.StringVar(&s.cfg.APIKey, "api-key", s.cfg.APIKey, "project API token")
	flags.StringVar(&s.cfg.Address, "address", s.cfg.Address, "collector host:port")
	flags.IntVar(&s.cfg.QueueSize, "queue-size", s.cfg.QueueSize, "maximum buffered messages")
	flags.DurationVar(&s.cfg.FlushTimeout, "flush-timeout", s.cfg.FlushTimeout, "how long to wait for delivery before exiting")
	flags.StringVar(&s.cfg.LogLevel, "log-level", s.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&s.cfg.MetricsAddr, "metrics-addr", s.cfg.MetricsAddr, "serve Prometheus metrics on this address (optional)")
	flags.BoolVar(&s.cfg.Disabled, "disabled", s.cfg.Disabled, "start with recording disabled")

	root.AddCommand(
		newGaugeCommand(s),
		newIncrementCommand(s),
		newNoticeCommand(s),
		newPipeCommand(s),
	)
	return root
}

// withAgent wraps a command body with configuration, agent startup, and a
// bounded flush and stop afterwards.
func (s *session) withAgent(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := s.setup(cmd); err != nil {
			return err
		}

		runErr := fn(cmd.Context(), cmd, args)
		if err := s.shutdown(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}
}

func (s *session) setup(cmd *cobra.Command) error {
	s.changed = map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { s.changed[f.Name] = true })

	cfgFile := s.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	loaded, err := cliconfig.Resolve(&s.cfg, cfgFile, s.changed)
	if err != nil {
		return err
	}
	s.cfgPath = loaded

	if err := s.cfg.Validate(); err != nil {
		return err
	}

	level, err := log.ParseLevel(s.cfg.LogLevel)
	if err != nil {
		return err
	}
	s.logger = log.NewZerologAdapter(os.Stderr, level)
	s.logger.Logger().Debug().Interface("config", s.cfg.Masked()).Str("file", loaded).Msg("configuration")

	opts := []instrumental.Option{instrumental.WithLogger(s.logger)}

	var reg *prometheus.Registry
	var m *telemetry.Metrics
	if s.cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = telemetry.New(reg)
		opts = append(opts, instrumental.WithEventHandler(m))
	}

	agent, err := instrumental.New(s.cfg.Library(), opts...)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	s.agent = agent

	if reg != nil {
		if err := m.TrackPending(reg, agent.Pending); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		s.serveMetrics(reg)
	}
	return nil
}

func (s *session) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.metrics = &http.Server{
		Addr:              s.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("serving metrics", log.Addr(s.cfg.MetricsAddr))
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", log.Err(err))
		}
	}()
}

// shutdown flushes within the flush timeout, then stops the agent and the
// metrics server. A flush that times out is reported as an error.
func (s *session) shutdown() error {
	if s.agent == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FlushTimeout)
	defer cancel()

	var errs []error
	if err := s.agent.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("not all messages were delivered: %w", err))
	}
	if err := s.agent.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop agent: %w", err))
	}

	if s.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("metrics server shutdown", log.Err(err))
		}
	}
	return errors.Join(errs...)
}

// zlog returns the zerolog logger for command output.
func (s *session) zlog() *zerolog.Logger {
	return s.logger.Logger()
}
