package recorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const commandQueueSize = 256

// scheduler runs named periodic tasks. Task bodies execute on their own
// ticker goroutine (fetches may take up to the bridge timeout) and push any
// state mutation onto a single command queue drained by one worker, which is
// the recorder's single-writer discipline: no lap or drill state is ever
// touched off the worker.
type scheduler struct {
	logger Logger

	commands chan func()
	stopped  chan struct{}
	wg       sync.WaitGroup

	tasks []*periodicTask
}

type periodicTask struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context)

	inFlight int32
}

func newScheduler(logger Logger) *scheduler {
	return &scheduler{
		logger:   logger,
		commands: make(chan func(), commandQueueSize),
		stopped:  make(chan struct{}),
	}
}

// AddTask registers a named periodic task. Ticks that arrive while a
// previous run is still in flight are skipped; the work is retried on the
// next cycle rather than piling up behind a slow bridge.
func (s *scheduler) AddTask(name string, interval time.Duration, run func(ctx context.Context)) {
	s.tasks = append(s.tasks, &periodicTask{
		name:     name,
		interval: interval,
		run:      run,
	})
}

// Enqueue pushes work onto the command queue. When the queue is full the
// command is dropped; telemetry mutation work must stay bounded and a full
// queue means the worker is already saturated with newer state.
func (s *scheduler) Enqueue(cmd func()) {
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warnf("Scheduler command queue full, dropping command")
	}
}

// Call runs cmd on the worker and waits for it to finish. Used by operations
// which must observe their effects synchronously, like stop-recording
// draining the in-flight lap. Returns false without running cmd once the
// scheduler has shut down.
func (s *scheduler) Call(cmd func()) bool {
	done := make(chan struct{})

	wrapped := func() {
		cmd()
		close(done)
	}

	select {
	case s.commands <- wrapped:
	case <-s.stopped:
		return false
	}

	select {
	case <-done:
		return true
	case <-s.stopped:
		return false
	}
}

// Start launches the worker and one ticker goroutine per task. All stop when
// ctx is cancelled.
func (s *scheduler) Start(ctx context.Context) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(s.stopped)

		for {
			select {
			case cmd := <-s.commands:
				cmd()
			case <-ctx.Done():
				return
			}
		}
	}()

	for _, task := range s.tasks {
		task := task

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			s.logger.Debugf("Scheduler task %s running every %s", task.name, task.interval)

			ticker := time.NewTicker(task.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if !atomic.CompareAndSwapInt32(&task.inFlight, 0, 1) {
						continue
					}

					go func() {
						defer atomic.StoreInt32(&task.inFlight, 0)
						task.run(ctx)
					}()
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Wait blocks until every goroutine started by Start has exited.
func (s *scheduler) Wait() {
	s.wg.Wait()
}
