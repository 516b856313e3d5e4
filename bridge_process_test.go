package forseti

import (
	"strings"
	"testing"
)

func TestLogBufferBoundsItsSize(t *testing.T) {
	buffer := newLogBuffer(32)

	for i := 0; i < 10; i++ {
		if _, err := buffer.Write([]byte("0123456789\n")); err != nil {
			t.Fatalf("log buffer write failed: %v", err)
		}
	}

	logs := buffer.String()

	// truncation runs before each write, so the buffer may exceed the
	// limit by at most one write
	if len(logs) > 32+11 {
		t.Errorf("log buffer grew to %d bytes past its limit", len(logs))
	}

	// the newest output survives truncation
	if !strings.HasSuffix(logs, "0123456789\n") {
		t.Errorf("log buffer should keep the tail of the output, got %q", logs)
	}
}

func TestBridgeProcessLifecycleGuards(t *testing.T) {
	process := NewBridgeProcess("./bridge/main.py")

	if process.IsRunning() {
		t.Error("a new process handle should not report running")
	}

	if err := process.Stop(); err != nil {
		t.Errorf("stopping a never-started process should be a no-op, got: %v", err)
	}

	if logs := process.Logs(); logs != "" {
		t.Errorf("a never-started process should have no logs, got %q", logs)
	}

	if err := process.Restart(); err != ErrRuntimeMissing {
		t.Errorf("restarting before any start should fail with ErrRuntimeMissing, got: %v", err)
	}
}
