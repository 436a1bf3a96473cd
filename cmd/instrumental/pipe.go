package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/instrumental/instrumental-go/pkg/protocol"
)

// recorder is the part of the agent the pipe command drives.
type recorder interface {
	GaugeAt(name string, value float64, at time.Time, count int) bool
	IncrementAt(name string, value float64, at time.Time, count int) bool
	NoticeAt(message string, at time.Time, duration time.Duration) bool
}

// command is one parsed pipe line.
type command struct {
	verb     string
	name     string
	value    float64
	at       time.Time
	count    int
	message  string
	duration time.Duration
}

func (c command) apply(r recorder) bool {
	switch c.verb {
	case protocol.VerbGauge:
		return r.GaugeAt(c.name, c.value, c.at, c.count)
	case protocol.VerbIncrement:
		return r.IncrementAt(c.name, c.value, c.at, c.count)
	default:
		return r.NoticeAt(c.message, c.at, c.duration)
	}
}

var errSkip = errors.New("skip")

// parseLine parses a pipe line. Blank and comment lines return errSkip.
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return command{}, errSkip
	}

	verb, rest, _ := strings.Cut(line, " ")
	switch verb {
	case protocol.VerbNotice:
		c := command{verb: verb, message: strings.TrimSpace(rest)}
		c.at, c.duration, c.message = noticePrefix(c.message)
		if c.message == "" {
			return command{}, fmt.Errorf("notice: missing message")
		}
		return c, nil

	case protocol.VerbGauge, protocol.VerbIncrement:
		fields := strings.Fields(rest)
		minArgs := 1
		if verb == protocol.VerbGauge {
			minArgs = 2
		}
		if len(fields) < minArgs || len(fields) > 4 {
			return command{}, fmt.Errorf("%s: expected %d to 4 arguments, got %d", verb, minArgs, len(fields))
		}

		c := command{verb: verb, name: fields[0], value: 1, count: 1}
		if len(fields) > 1 {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return command{}, fmt.Errorf("%s: value %q: %w", verb, fields[1], err)
			}
			c.value = v
		}
		if len(fields) > 2 {
			ts, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return command{}, fmt.Errorf("%s: time %q: %w", verb, fields[2], err)
			}
			c.at = time.Unix(ts, 0)
		}
		if len(fields) > 3 {
			n, err := strconv.Atoi(fields[3])
			if err != nil {
				return command{}, fmt.Errorf("%s: count %q: %w", verb, fields[3], err)
			}
			c.count = n
		}
		return c, nil

	default:
		return command{}, fmt.Errorf("unknown command %q", verb)
	}
}

// noticePrefix splits an optional "UNIXTIME DURATION" prefix off a notice
// message. Both must parse for the prefix to apply; DURATION is either a
// Go duration ("90s") or a number of seconds.
func noticePrefix(msg string) (time.Time, time.Duration, string) {
	first, rest, ok := strings.Cut(msg, " ")
	if !ok {
		return time.Time{}, 0, msg
	}
	second, text, ok := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if !ok {
		return time.Time{}, 0, msg
	}
	ts, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return time.Time{}, 0, msg
	}
	d, err := parseDuration(second)
	if err != nil {
		return time.Time{}, 0, msg
	}
	return time.Unix(ts, 0), d, strings.TrimSpace(text)
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

type pipeStats struct {
	accepted int
	rejected int
	invalid  int
}

// runPipe records every line from r until EOF or ctx is done.
func runPipe(ctx context.Context, r io.Reader, rec recorder, logger zerolog.Logger) (pipeStats, error) {
	var stats pipeStats

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return stats, nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return stats, fmt.Errorf("read stdin: %w", err)
					}
				default:
				}
				return stats, nil
			}

			c, err := parseLine(line)
			if errors.Is(err, errSkip) {
				continue
			}
			if err != nil {
				stats.invalid++
				logger.Warn().Err(err).Str("line", line).Msg("invalid line")
				continue
			}
			if c.apply(rec) {
				stats.accepted++
			} else {
				stats.rejected++
			}
		}
	}
}
