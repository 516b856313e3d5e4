package forseti

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrRuntimeMissing = errors.New("forseti: no working python runtime found")

// pythonCandidateNames are searched on PATH, in order.
var pythonCandidateNames = []string{"python3", "python"}

// knownRuntimeLocations are checked after PATH search fails. The bridge's
// optional runtime dependency is frequently installed to one of these
// without ever landing on PATH.
func knownRuntimeLocations() []string {
	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join("C:\\", "Python312", "python.exe"),
			filepath.Join("C:\\", "Python311", "python.exe"),
			filepath.Join("C:\\", "Python310", "python.exe"),
			filepath.Join("C:\\", "Program Files", "Python312", "python.exe"),
			filepath.Join("C:\\", "Program Files", "Python311", "python.exe"),
		}
	}

	return []string{
		"/usr/local/bin/python3",
		"/usr/bin/python3",
		"/opt/homebrew/bin/python3",
	}
}

// DetectPythonRuntime resolves a python interpreter by priority: the
// bundled runtime path, PATH search, then known install locations. A
// candidate only wins if it actually executes.
func DetectPythonRuntime(bundledPath string) (string, error) {
	var candidates []string

	if bundledPath != "" {
		candidates = append(candidates, bundledPath)
	}

	for _, name := range pythonCandidateNames {
		if found, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, found)
		}
	}

	candidates = append(candidates, knownRuntimeLocations()...)

	for _, candidate := range candidates {
		if verifyRuntime(candidate) {
			return candidate, nil
		}
	}

	return "", ErrRuntimeMissing
}

// verifyRuntime runs the candidate to confirm it is a real, executable
// interpreter and not a dead symlink or a Microsoft Store shim.
func verifyRuntime(path string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	return exec.CommandContext(ctx, path, "--version").Run() == nil
}

// BridgeAvailabilityMonitor retries runtime detection on a bounded schedule
// so a runtime installed after the application starts is still picked up.
type BridgeAvailabilityMonitor struct {
	bundledPath string
	interval    time.Duration
	retryLimit  int

	found chan string
}

func NewBridgeAvailabilityMonitor(bundledPath string, interval time.Duration, retryLimit int) *BridgeAvailabilityMonitor {
	if interval <= 0 {
		interval = time.Second * 30
	}

	if retryLimit <= 0 {
		retryLimit = 20
	}

	return &BridgeAvailabilityMonitor{
		bundledPath: bundledPath,
		interval:    interval,
		retryLimit:  retryLimit,
		found:       make(chan string, 1),
	}
}

// Runtime delivers the detected interpreter path. The channel receives at
// most one value.
func (m *BridgeAvailabilityMonitor) Runtime() <-chan string {
	return m.found
}

// Start attempts detection immediately, then re-detects on the retry
// interval up to the retry limit. The missing runtime is surfaced once at
// warn level; subsequent retries are silent.
func (m *BridgeAvailabilityMonitor) Start(ctx context.Context) {
	if path, err := DetectPythonRuntime(m.bundledPath); err == nil {
		logrus.Infof("Python runtime found: %s", path)
		m.found <- path
		return
	}

	logrus.Warnf("No python runtime found. The telemetry bridge cannot start; will re-check every %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for attempt := 0; attempt < m.retryLimit; attempt++ {
		select {
		case <-ticker.C:
			if path, err := DetectPythonRuntime(m.bundledPath); err == nil {
				logrus.Infof("Python runtime appeared after %d retries: %s", attempt+1, path)
				m.found <- path
				return
			}

			logrus.Debugf("Python runtime still missing (attempt %d of %d)", attempt+1, m.retryLimit)
		case <-ctx.Done():
			return
		}
	}

	logrus.Warnf("Giving up on python runtime detection after %d attempts", m.retryLimit)
}
