package worker

import (
	"log/slog"
	"sync"
	"time"
)

// Pool runs tasks on a fixed number of goroutines draining a bounded queue.
// Each stage pool (debit, credit, notification) gets its own Pool so that one
// kind of work cannot starve the others.
type Pool struct {
	name    string
	tasks   chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	stopped sync.Once
}

// NewPool creates and starts a pool with the given worker count and queue size.
func NewPool(name string, workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &Pool{
		name:   name,
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			p.run(task)
		}
	}
}

// run executes a single task, containing panics so that one task's failure
// never takes down a worker or affects unrelated tasks.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "pool", p.name, "panic", r)
		}
	}()
	task()
}

// Submit enqueues a task for execution. It blocks only when the queue is full
// (backpressure) and reports false if the pool has been stopped.
func (p *Pool) Submit(task func()) bool {
	select {
	case <-p.done:
		return false
	case p.tasks <- task:
		return true
	}
}

// SubmitAfter enqueues a task after the given delay without occupying a
// worker in the meantime. Used for contention backoff.
func (p *Pool) SubmitAfter(delay time.Duration, task func()) {
	time.AfterFunc(delay, func() {
		if !p.Submit(task) {
			p.logger.Debug("task dropped after shutdown", "pool", p.name)
		}
	})
}

// Stop signals workers to exit and waits for in-flight tasks to finish.
// Queued tasks that never started are dropped.
func (p *Pool) Stop() {
	p.stopped.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
