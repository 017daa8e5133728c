package httpapi

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	// query param ?log=debug
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	// shorthand ?log=1
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	// header X-Log-Level
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
}

func TestLoggingLineWriter_SplitsLines(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	defer log.SetOutput(orig)
	log.SetOutput(&buf)

	lw := &loggingLineWriter{}
	_, _ = lw.Write([]byte("event: run_start\npartial"))
	_, _ = lw.Write([]byte("-cont\nlast\n"))

	out := buf.String()
	if !strings.Contains(out, "events> event: run_start") {
		t.Fatalf("missing logged line: %q", out)
	}
	if !strings.Contains(out, "events> partial-cont") {
		t.Fatalf("missing joined line: %q", out)
	}
	if !strings.Contains(out, "events> last") {
		t.Fatalf("missing last line: %q", out)
	}
}

func TestLoggingLineWriter_BlankLinesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	lw := &loggingLineWriter{}
	_, _ = lw.Write([]byte("\n\nevent: run_done\n\n: pi"))
	if n := strings.Count(buf.String(), `"message":"events>"`); n != 1 {
		t.Fatalf("expected one logged line, got %d: %q", n, buf.String())
	}
	if string(lw.buf) != ": pi" {
		t.Fatalf("partial line not kept: %q", lw.buf)
	}
}

func TestLogEnd_ZerologRecordsError(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	r := httptest.NewRequest("POST", "/generate", nil)
	logEnd(r, LevelError, "generate", 409, time.Now(), errors.New("busy"))
	if !strings.Contains(buf.String(), `"status":409`) || !strings.Contains(buf.String(), "busy") {
		t.Fatalf("unexpected log %q", buf.String())
	}
	buf.Reset()
	logEnd(r, LevelError, "generate", 202, time.Now(), nil)
	if buf.Len() != 0 {
		t.Fatalf("success logged at error level: %q", buf.String())
	}
	logStart(r, LevelOff, "generate")
	if buf.Len() != 0 {
		t.Fatalf("start logged with logging off")
	}
	SetLogger(zerolog.New(io.Discard))
}
