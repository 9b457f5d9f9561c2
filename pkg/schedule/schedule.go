// Package schedule runs periodic maintenance tasks inside the web process.
//
//	s := schedule.New()
//	s.Every(time.Minute).Name("active-orders").Run(refreshGauge)
//	s.Start(ctx) // returns immediately; tasks stop with ctx
package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/farmshop/storefront/pkg/logger"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

type entry struct {
	name      string
	interval  time.Duration
	immediate bool
	task      Task
	running   atomic.Bool
}

// Scheduler holds registered entries.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

func New() *Scheduler { return &Scheduler{} }

// Builder configures one entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

// Every starts an entry that fires every d.
func (s *Scheduler) Every(d time.Duration) *Builder {
	return &Builder{s: s, e: &entry{interval: d}}
}

func (b *Builder) Name(name string) *Builder {
	b.e.name = name
	return b
}

// Immediately also runs the task once at Start.
func (b *Builder) Immediately() *Builder {
	b.e.immediate = true
	return b
}

// Run registers task.
func (b *Builder) Run(task Task) {
	if b.e.interval <= 0 {
		panic("schedule: interval must be positive")
	}
	b.e.task = task
	if b.e.name == "" {
		b.e.name = fmt.Sprintf("task-%s", b.e.interval)
	}
	b.s.mu.Lock()
	b.s.entries = append(b.s.entries, b.e)
	b.s.mu.Unlock()
}

// Names lists registered entries.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.name
	}
	return out
}

// Start launches one ticker goroutine per entry.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range entries {
		e := e // per-iteration copy; go directive is 1.21
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, e)
		}()
	}
	logger.Info("schedule: started", "tasks", len(entries))
}

// Wait blocks until every loop has returned after ctx ended.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	if e.immediate {
		s.dispatch(ctx, e)
	}
	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.dispatch(ctx, e)
		}
	}
}

// dispatch skips a tick while the previous run is still going.
func (s *Scheduler) dispatch(ctx context.Context, e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		logger.Debug("schedule: still running, skipping", "task", e.name)
		return
	}
	defer e.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("schedule: task panicked",
				"task", e.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	start := time.Now()
	if err := e.task(ctx); err != nil {
		logger.Warn("schedule: task failed", "task", e.name, "error", err)
		return
	}
	logger.Debug("schedule: task done", "task", e.name, "duration", time.Since(start))
}
