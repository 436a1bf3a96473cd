package protocol

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Ack is the collector's reply to each handshake line.
const Ack = "ok\n"

// HandshakeReplies is the number of acknowledgements a handshake expects.
const HandshakeReplies = 2

// Message verbs.
const (
	VerbGauge     = "gauge"
	VerbIncrement = "increment"
	VerbNotice    = "notice"
)

// ErrRejected is returned when the collector answers the handshake with
// anything other than Ack.
var ErrRejected = errors.New("protocol: handshake rejected")

// HandshakeBytes builds the hello and authenticate lines as one payload.
func HandshakeBytes(clientID, version, apiKey string) []byte {
	var b strings.Builder
	b.Grow(len(clientID) + len(version) + len(apiKey) + 32)
	b.WriteString("hello version ")
	b.WriteString(clientID)
	b.WriteByte('/')
	b.WriteString(version)
	b.WriteByte('\n')
	b.WriteString("authenticate ")
	b.WriteString(apiKey)
	b.WriteByte('\n')
	return []byte(b.String())
}

// ReadAcks reads n acknowledgements of exactly len(Ack) bytes each,
// accumulating across short reads. A reply that differs from Ack yields an
// error wrapping ErrRejected; an I/O failure is returned wrapped.
func ReadAcks(r io.Reader, n int) error {
	buf := make([]byte, len(Ack))
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read ack %d/%d: %w", i+1, n, err)
		}
		if string(buf) != Ack {
			return fmt.Errorf("%w: reply %d/%d was %q", ErrRejected, i+1, n, buf)
		}
	}
	return nil
}

// Frame appends the line terminator to a message.
func Frame(msg string) []byte {
	b := make([]byte, 0, len(msg)+1)
	b = append(b, msg...)
	return append(b, '\n')
}

// Gauge formats a gauge line.
func Gauge(name string, value float64, at time.Time, count int) string {
	return metricLine(VerbGauge, name, value, at, count)
}

// Increment formats an increment line.
func Increment(name string, value float64, at time.Time, count int) string {
	return metricLine(VerbIncrement, name, value, at, count)
}

// Notice formats a notice line. The duration is written in seconds.
func Notice(message string, at time.Time, duration time.Duration) string {
	return VerbNotice + " " +
		strconv.FormatInt(Epoch(at), 10) + " " +
		FormatValue(duration.Seconds()) + " " +
		message
}

func metricLine(verb, name string, value float64, at time.Time, count int) string {
	return verb + " " + name + " " +
		FormatValue(value) + " " +
		strconv.FormatInt(Epoch(at), 10) + " " +
		strconv.Itoa(count)
}

// FormatValue renders a number with the shortest exact representation and
// no exponent ("1", "0.25", "1500000").
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Epoch converts t to whole seconds since the Unix epoch (UTC).
func Epoch(t time.Time) int64 {
	return t.Unix()
}
