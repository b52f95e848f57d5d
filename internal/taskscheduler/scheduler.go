// Package taskscheduler implements a fixed pool of worker goroutines
// exposing dispatch/wait-for-all over short-lived, fire-and-forget tasks.
// It mirrors the worker-pool-plus-coordinator shape `dag_engine.go`'s
// executeDAG already uses (a shared queue, a fixed set of workers draining
// it, a wait point for "everything submitted has finished") generalized
// into its own reusable component, decoupled from the DAG scheduler it
// drives.
//
// A single mutex-protected queue is the variant chosen here over per-worker
// work-stealing deques, matching the single-queue shape this codebase's own
// worker pools already use (dag_engine.go's `ready`/`results` channels).
// See DESIGN.md.
package taskscheduler

import (
	"log/slog"
	"runtime"
	"sync"
)

// Task is a fire-and-forget unit of work.
type Task func()

// Scheduler is the Task Scheduler. Zero value is not usable; use New.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond // signaled on new work or on shutdown
	done    *sync.Cond // signaled when active==0 && queued==0
	queue   []Task
	running bool
	active  int
	queued  int
	wg      sync.WaitGroup
}

// New constructs an uninitialized Task Scheduler. Call Initialize before
// dispatching.
func New() *Scheduler {
	s := &Scheduler{}
	s.cond = sync.NewCond(&s.mu)
	s.done = sync.NewCond(&s.mu)
	return s
}

func defaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Initialize starts workerCount worker goroutines (0 ⇒ auto: hardware
// concurrency - 1, min 1). Idempotent: a second call while already running
// is a no-op.
func (s *Scheduler) Initialize(workerCount int) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	if workerCount <= 0 {
		workerCount = defaultWorkerCount()
	}
	s.running = true
	s.mu.Unlock()

	for i := 0; i < workerCount; i++ {
		s.wg.Add(1)
		go s.runWorker()
	}
	slog.Info("task scheduler initialized", "workers", workerCount)
}

func (s *Scheduler) runWorker() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && s.running {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			// Shutting down with nothing left to drain.
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.queued--
		s.mu.Unlock()

		task()

		s.mu.Lock()
		s.active--
		if s.active == 0 && s.queued == 0 {
			s.done.Broadcast()
		}
		s.mu.Unlock()
	}
}

// Dispatch enqueues task for execution by exactly one worker. Both
// ActiveTaskCount and QueuedTaskCount are incremented before any worker can
// observe the task (both updates happen under the same lock the workers
// acquire to dequeue). Dispatch before Initialize, or after Shutdown, logs
// and returns silently.
func (s *Scheduler) Dispatch(task Task) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		slog.Warn("task dispatched while scheduler not running; dropped")
		return
	}
	s.queued++
	s.active++
	s.queue = append(s.queue, task)
	s.mu.Unlock()
	s.cond.Signal()
}

// WaitForAll blocks until ActiveTaskCount and QueuedTaskCount are both
// zero. The calling goroutine may itself steal and execute queued tasks
// while waiting, which is what makes it safe to call from a goroutine that
// dispatched the very tasks it's waiting on.
func (s *Scheduler) WaitForAll() {
	s.mu.Lock()
	for {
		if s.active == 0 && s.queued == 0 {
			s.mu.Unlock()
			return
		}
		if len(s.queue) > 0 {
			task := s.queue[0]
			s.queue = s.queue[1:]
			s.queued--
			s.mu.Unlock()

			task()

			s.mu.Lock()
			s.active--
			if s.active == 0 && s.queued == 0 {
				s.done.Broadcast()
				s.mu.Unlock()
				return
			}
			continue
		}
		s.done.Wait()
	}
}

// Shutdown signals every worker to stop once its queue drains, joins them,
// and ignores further Dispatch calls. Safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cond.Broadcast()
	s.wg.Wait()
	slog.Info("task scheduler shut down")
}

// ActiveTaskCount returns the number of tasks dispatched but not yet
// completed.
func (s *Scheduler) ActiveTaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// QueuedTaskCount returns the number of tasks dispatched but not yet
// started by a worker.
func (s *Scheduler) QueuedTaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}
