package debug

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T, enabled bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	was := Enabled()
	SetEnabled(enabled)
	SetLogger(log.New(&buf, "", 0))
	t.Cleanup(func() {
		SetEnabled(was)
		SetLogger(nil)
	})
	return &buf
}

func TestLog_Disabled(t *testing.T) {
	buf := capture(t, false)
	Log("hidden %d", 1)
	LogIf(true, "hidden")
	LogTiming("op", time.Millisecond)
	LogEnterExit("op")()
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
}

func TestLog_Enabled(t *testing.T) {
	buf := capture(t, true)
	Log("replayed %d events", 3)
	LogIf(false, "skipped")
	LogIf(true, "kept")
	LogTiming("preload", 2*time.Millisecond)
	LogEnterExit("attach")()

	out := buf.String()
	for _, want := range []string{"replayed 3 events", "kept", "preload took 2ms", "-> attach", "<- attach"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("LogIf(false) wrote output:\n%s", out)
	}
}
