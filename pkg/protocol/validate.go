package protocol

import (
	"regexp"
	"strings"
)

// metricNamePattern accepts dot-separated segments of Unicode letters,
// combining marks, decimal digits, connector punctuation (underscore) and
// dashes.
var metricNamePattern = regexp.MustCompile(`^([\pL\p{Mn}\p{Nd}\p{Pc}\-]+\.)*[\pL\p{Mn}\p{Nd}\p{Pc}\-]+$`)

// ValidMetricName reports whether name may be sent as a metric name.
func ValidMetricName(name string) bool {
	return metricNamePattern.MatchString(name)
}

// ValidNotice reports whether message can travel on a single line.
func ValidNotice(message string) bool {
	return !strings.ContainsAny(message, "\r\n")
}

// ValidLine reports whether a pre-formatted message is safe to frame: not
// empty and free of line breaks.
func ValidLine(line string) bool {
	return line != "" && !strings.ContainsAny(line, "\r\n")
}
