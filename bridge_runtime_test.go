package forseti

import (
	"path/filepath"
	"testing"
)

func TestVerifyRuntimeRejectsMissingBinary(t *testing.T) {
	if verifyRuntime(filepath.Join(t.TempDir(), "python3")) {
		t.Error("a nonexistent interpreter must not verify")
	}
}

func TestDetectPythonRuntimeSkipsDeadBundledPath(t *testing.T) {
	// a bundled path pointing nowhere must not short-circuit detection; it
	// is simply skipped in favor of later candidates
	deadPath := filepath.Join(t.TempDir(), "runtime", "python3")

	path, err := DetectPythonRuntime(deadPath)

	if err == nil && path == deadPath {
		t.Error("detection must never return a candidate that failed verification")
	}
}
