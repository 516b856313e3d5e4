package forseti

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const MaxLogSizeBytes = 1e6

var ErrBridgeStopTimeout = errors.New("forseti: bridge process did not stop after kill")

// BridgeProcess supervises the python bridge child process: it launches the
// bridge script with a detected runtime, captures its output into a bounded
// buffer and restarts cleanly after a stop.
type BridgeProcess struct {
	scriptPath string

	mutex       sync.Mutex
	cmd         *exec.Cmd
	cfn         context.CancelFunc
	runtimePath string

	logBuffer *logBuffer

	done chan error
}

func NewBridgeProcess(scriptPath string) *BridgeProcess {
	return &BridgeProcess{
		scriptPath: scriptPath,
		logBuffer:  newLogBuffer(MaxLogSizeBytes),
	}
}

// Start launches the bridge with the given interpreter. A bridge already
// running is stopped first.
func (bp *BridgeProcess) Start(runtimePath string) error {
	if bp.IsRunning() {
		if err := bp.Stop(); err != nil {
			return err
		}
	}

	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	logrus.Infof("Starting telemetry bridge: %s %s", runtimePath, bp.scriptPath)

	ctx, cfn := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, runtimePath, bp.scriptPath)
	cmd.Dir = filepath.Dir(bp.scriptPath)
	cmd.Stdout = bp.logBuffer
	cmd.Stderr = bp.logBuffer

	if err := cmd.Start(); err != nil {
		cfn()
		return err
	}

	bp.cmd = cmd
	bp.cfn = cfn
	bp.runtimePath = runtimePath
	bp.done = make(chan error, 1)

	go func(cmd *exec.Cmd, done chan error) {
		err := cmd.Wait()

		if err != nil {
			logrus.WithError(err).Warn("Bridge process ended with error. If the recorder shut it down, you can safely ignore this.")
		}

		bp.mutex.Lock()
		if bp.cmd == cmd {
			bp.cmd = nil
		}
		bp.mutex.Unlock()

		done <- err
	}(cmd, bp.done)

	return nil
}

func (bp *BridgeProcess) IsRunning() bool {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	return bp.cmd != nil
}

// Stop kills the bridge process and waits for it to exit.
func (bp *BridgeProcess) Stop() error {
	bp.mutex.Lock()

	if bp.cmd == nil {
		bp.mutex.Unlock()
		return nil
	}

	cfn := bp.cfn
	done := bp.done
	bp.mutex.Unlock()

	cfn()

	select {
	case <-done:
		return nil
	case <-time.After(time.Second * 10):
		return ErrBridgeStopTimeout
	}
}

// Restart relaunches the bridge with the runtime it last started with.
func (bp *BridgeProcess) Restart() error {
	bp.mutex.Lock()
	runtimePath := bp.runtimePath
	bp.mutex.Unlock()

	if runtimePath == "" {
		return ErrRuntimeMissing
	}

	return bp.Start(runtimePath)
}

func (bp *BridgeProcess) Logs() string {
	return bp.logBuffer.String()
}

func newLogBuffer(maxSize int) *logBuffer {
	return &logBuffer{
		size: maxSize,
		buf:  new(bytes.Buffer),
	}
}

type logBuffer struct {
	buf *bytes.Buffer

	size int

	mutex sync.Mutex
}

func (lb *logBuffer) Write(p []byte) (n int, err error) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	b := lb.buf.Bytes()

	if len(b) > lb.size {
		lb.buf = bytes.NewBuffer(b[len(b)-lb.size:])
	}

	return lb.buf.Write(p)
}

func (lb *logBuffer) String() string {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	return strings.Replace(lb.buf.String(), "\n\n", "\n", -1)
}
