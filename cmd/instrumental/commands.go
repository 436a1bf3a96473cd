package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/instrumental/instrumental-go/internal/cliconfig"
)

var errRejected = errors.New("message rejected (invalid input or recording disabled)")

// unixTime converts a --at value; zero means now.
func unixTime(at int64) time.Time {
	if at == 0 {
		return time.Time{}
	}
	return time.Unix(at, 0)
}

func newGaugeCommand(s *session) *cobra.Command {
	var at int64
	var count int

	cmd := &cobra.Command{
		Use:   "gauge NAME VALUE",
		Short: "Record the current value of a metric",
		Args:  cobra.ExactArgs(2),
		RunE: s.withAgent(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parse value %q: %w", args[1], err)
			}
			if !s.agent.GaugeAt(args[0], value, unixTime(at), count) {
				return errRejected
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&at, "at", 0, "unix timestamp of the measurement (default: now)")
	cmd.Flags().IntVar(&count, "count", 1, "number of samples the value represents")
	return cmd
}

func newIncrementCommand(s *session) *cobra.Command {
	var at int64
	var count int

	cmd := &cobra.Command{
		Use:   "increment NAME [VALUE]",
		Short: "Add to a counter (by 1 unless VALUE is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: s.withAgent(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			value := 1.0
			if len(args) == 2 {
				v, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("parse value %q: %w", args[1], err)
				}
				value = v
			}
			if !s.agent.IncrementAt(args[0], value, unixTime(at), count) {
				return errRejected
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&at, "at", 0, "unix timestamp of the increment (default: now)")
	cmd.Flags().IntVar(&count, "count", 1, "number of events the value represents")
	return cmd
}

func newNoticeCommand(s *session) *cobra.Command {
	var at int64
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "notice MESSAGE...",
		Short: "Annotate graphs with an event such as a deploy",
		Args:  cobra.MinimumNArgs(1),
		RunE: s.withAgent(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if !s.agent.NoticeAt(strings.Join(args, " "), unixTime(at), duration) {
				return errRejected
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&at, "at", 0, "unix timestamp the event started (default: now)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "how long the event lasted")
	return cmd
}

func newPipeCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "pipe",
		Short: "Record commands read line by line from stdin",
		Long: `Read one command per line from stdin until EOF or interrupt:

  gauge NAME VALUE [UNIXTIME [COUNT]]
  increment NAME [VALUE [UNIXTIME [COUNT]]]
  notice [UNIXTIME DURATION] MESSAGE...

DURATION is seconds or a Go duration such as 90s. Blank lines and lines
starting with # are skipped. While running, changes to
the "enabled" key of the config file take effect immediately.`,
		Args: cobra.NoArgs,
		RunE: s.withAgent(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if s.cfgPath != "" && !s.changed["disabled"] {
				w := cliconfig.NewWatcher(s.cfgPath, s.agent, s.logger)
				watchCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				go func() {
					if err := w.Run(watchCtx); err != nil {
						s.zlog().Warn().Err(err).Msg("config watcher stopped")
					}
				}()
			}

			stats, err := runPipe(ctx, cmd.InOrStdin(), s.agent, *s.zlog())
			s.zlog().Info().
				Int("accepted", stats.accepted).
				Int("rejected", stats.rejected).
				Int("invalid", stats.invalid).
				Msg("pipe finished")
			return err
		}),
	}
}
