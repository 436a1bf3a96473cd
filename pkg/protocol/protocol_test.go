package protocol

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"
)

func TestHandshakeBytes(t *testing.T) {
	got := string(HandshakeBytes("go/instrumental_agent", "1.0.0", "secret"))
	want := "hello version go/instrumental_agent/1.0.0\nauthenticate secret\n"
	if got != want {
		t.Errorf("HandshakeBytes() = %q, want %q", got, want)
	}
}

func TestReadAcks(t *testing.T) {
	tests := []struct {
		name         string
		reply        io.Reader
		wantErr      bool
		wantRejected bool
	}{
		{"two acks", strings.NewReader("ok\nok\n"), false, false},
		{"two acks with trailing data", strings.NewReader("ok\nok\nextra"), false, false},
		{"short reads accumulate", iotest.OneByteReader(strings.NewReader("ok\nok\n")), false, false},
		{"rejected first", strings.NewReader("no\nok\n"), true, true},
		{"rejected second", strings.NewReader("ok\nfail\n"), true, true},
		{"closed before second", strings.NewReader("ok\n"), true, false},
		{"closed mid ack", strings.NewReader("ok\no"), true, false},
		{"empty", strings.NewReader(""), true, false},
		{"read error", iotest.ErrReader(errors.New("reset")), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ReadAcks(tt.reply, HandshakeReplies)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadAcks() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrRejected); got != tt.wantRejected {
				t.Errorf("errors.Is(err, ErrRejected) = %v, want %v (err=%v)", got, tt.wantRejected, err)
			}
		})
	}
}

func TestReadAcks_ConsumesExactBytes(t *testing.T) {
	r := strings.NewReader("ok\nok\ngauge")
	if err := ReadAcks(r, HandshakeReplies); err != nil {
		t.Fatal(err)
	}
	rest, _ := io.ReadAll(r)
	if string(rest) != "gauge" {
		t.Errorf("remaining = %q, want %q", rest, "gauge")
	}
}

func TestFrame(t *testing.T) {
	got := string(Frame("increment csharp.Test 1 1700000000 1"))
	if got != "increment csharp.Test 1 1700000000 1\n" {
		t.Errorf("Frame() = %q", got)
	}
}

func TestMessageLines(t *testing.T) {
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"gauge", Gauge("app.load", 0.5, at, 1), "gauge app.load 0.5 1700000000 1"},
		{"gauge integer", Gauge("app.users", 1500000, at, 3), "gauge app.users 1500000 1700000000 3"},
		{"increment", Increment("csharp.Test", 1, at, 1), "increment csharp.Test 1 1700000000 1"},
		{"negative increment", Increment("q.depth", -2, at, 1), "increment q.depth -2 1700000000 1"},
		{"notice", Notice("deploy finished", at, 90*time.Second), "notice 1700000000 90 deploy finished"},
		{"notice fractional", Notice("blip", at, 1500*time.Millisecond), "notice 1700000000 1.5 blip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestEpoch_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	at := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC).In(loc)
	if got := Epoch(at); got != 1700000000 {
		t.Errorf("Epoch() = %d, want 1700000000", got)
	}
}

func TestValidMetricName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"csharp.Test", true},
		{"app.requests-total", true},
		{"a_b.c_d.e", true},
		{"UPPER.lower.123", true},
		{"single", true},
		{"café.hits", true},
		{"путь.запросы", true},
		{"日本.リクエスト", true},
		{"", false},
		{".leading", false},
		{"trailing.", false},
		{"double..dot", false},
		{"has space", false},
		{"bad/char", false},
		{"new\nline", false},
		{"price.€", false},
		{"emoji.🚀", false},
	}

	for _, tt := range tests {
		if got := ValidMetricName(tt.name); got != tt.valid {
			t.Errorf("ValidMetricName(%q) = %v, want %v", tt.name, got, tt.valid)
		}
	}
}

func TestValidNotice(t *testing.T) {
	if !ValidNotice("deploy of v1.2 finished") {
		t.Error("plain notice rejected")
	}
	if ValidNotice("two\nlines") {
		t.Error("notice with newline accepted")
	}
	if ValidNotice("carriage\rreturn") {
		t.Error("notice with carriage return accepted")
	}
}

func TestValidLine(t *testing.T) {
	if ValidLine("") {
		t.Error("empty line accepted")
	}
	if ValidLine("gauge a 1 2 3\n") {
		t.Error("line with terminator accepted")
	}
	if !ValidLine("gauge a 1 2 3") {
		t.Error("valid line rejected")
	}
}
