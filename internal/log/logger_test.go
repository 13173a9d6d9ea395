package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stderr)
	defer SetLevel(Notice)

	logger := New("logtest")

	SetLevel(Warning)
	logger.Info("hidden")
	logger.Warningf("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message leaked at warning level: %q", out)
	}
	if !strings.Contains(out, "shown 1") || !strings.Contains(out, "[logtest]") {
		t.Fatalf("warning message missing: %q", out)
	}

	buf.Reset()
	SetLevel(Debug)
	logger.Debug("verbose")
	if !strings.Contains(buf.String(), "verbose") {
		t.Fatalf("debug message missing: %q", buf.String())
	}
}

func TestModuleLevel(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stderr)
	defer SetLevel(Notice)

	SetLevel(Error)
	SetModuleLevel("chatty", Debug)
	New("chatty").Info("from chatty")
	New("quiet").Info("from quiet")

	out := buf.String()
	if !strings.Contains(out, "from chatty") || strings.Contains(out, "from quiet") {
		t.Fatalf("unexpected output %q", out)
	}
}
