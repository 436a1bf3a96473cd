// Package protocol implements the collector's newline-delimited text
// protocol.
//
// A session opens with a two-line handshake sent in a single write:
//
//	hello version <client-id>/<version>
//	authenticate <api-key>
//
// The collector answers each line with exactly "ok\n". After that the
// stream carries one message per line and the collector never replies:
//
//	gauge <name> <value> <unixtime> <count>
//	increment <name> <value> <unixtime> <count>
//	notice <unixtime> <duration-seconds> <message text>
package protocol
