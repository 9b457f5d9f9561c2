// Package queue runs background jobs off the request path.
//
//	type OrderPaidMail struct{ OrderID uint }
//	func (j *OrderPaidMail) Handle(ctx context.Context) error { ... }
//
//	queue.Register(func() queue.Job { return &OrderPaidMail{} })
//	queue.Dispatch(ctx, &OrderPaidMail{OrderID: 12})
//
// Jobs travel as JSON, so every field a job needs must be exported.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farmshop/storefront/pkg/logger"
	"github.com/farmshop/storefront/pkg/metrics"
	"gorm.io/gorm"
)

// Job is the interface every queued job must satisfy.
type Job interface {
	// Handle executes the job. Return a non-nil error to retry it.
	Handle(ctx context.Context) error
}

// FailedJob holds a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend. Pop returns (nil, nil) when it timed
// out without a job.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

// Manager owns the driver, the job registry and the failure log.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration
	timeout  time.Duration
	db       *gorm.DB
	wg       sync.WaitGroup
}

// NewManager builds a manager on d with three attempts per job.
func NewManager(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  time.Second,
		timeout:  30 * time.Second,
	}
}

var defaultManager = NewManager(NewMemoryDriver())

// Default returns the process-wide manager.
func Default() *Manager { return defaultManager }

// SetDriver swaps the default manager's driver (e.g. Redis).
func SetDriver(d Driver) { defaultManager.SetDriver(d) }

// Register makes a job type known to the default manager.
func Register(factory func() Job) { defaultManager.Register(factory) }

// Dispatch pushes job onto the default queue.
func Dispatch(ctx context.Context, job Job) error { return defaultManager.Dispatch(ctx, job) }

// StartWorkers launches n workers on the default manager.
func StartWorkers(ctx context.Context, n int) { defaultManager.StartWorkers(ctx, n) }

// FailedJobs returns the default manager's failures.
func FailedJobs() []FailedJob { return defaultManager.FailedJobs() }

func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	m.driver = d
	m.mu.Unlock()
}

// SetRetry sets how many attempts a job gets and the base backoff between
// them. Attempt n waits n×backoff before the next one.
func (m *Manager) SetRetry(attempts int, backoff time.Duration) {
	m.mu.Lock()
	m.maxRetry = max(attempts, 1)
	m.backoff = backoff
	m.mu.Unlock()
}

// Register records factory under the job's type name. Call once at boot for
// every job type.
func (m *Manager) Register(factory func() Job) {
	m.mu.Lock()
	m.registry[TypeName(factory())] = factory
	m.mu.Unlock()
}

// TypeName is the registry key of a job.
func TypeName(job Job) string { return fmt.Sprintf("%T", job) }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch serializes job and pushes it onto the queue.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	typeName := TypeName(job)

	m.mu.RLock()
	_, known := m.registry[typeName]
	d := m.driver
	m.mu.RUnlock()
	if !known {
		return fmt.Errorf("queue: job type %s is not registered", typeName)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", typeName, err)
	}
	env, err := json.Marshal(envelope{Type: typeName, Payload: payload})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return d.Push(ctx, env)
}

// StartWorkers launches n workers that run until ctx is cancelled. Wait
// blocks until they have all returned.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.work(ctx)
		}()
	}
	logger.Info("queue: workers started", "count", n)
}

func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		m.mu.RLock()
		d := m.driver
		m.mu.RUnlock()

		raw, err := d.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}
		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}
	m.run(ctx, job, env.Type)
}

func (m *Manager) run(ctx context.Context, job Job, typeName string) {
	m.mu.RLock()
	attempts, backoff, timeout := m.maxRetry, m.backoff, m.timeout
	m.mu.RUnlock()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = m.attempt(ctx, job, timeout)
		if lastErr == nil {
			metrics.RecordQueueJob(typeName, "success", start)
			logger.Info("queue: job processed", "type", typeName, "attempt", attempt)
			return
		}
		logger.Warn("queue: job failed", "type", typeName, "attempt", attempt, "error", lastErr)
		if attempt < attempts && !sleep(ctx, time.Duration(attempt)*backoff) {
			break
		}
	}

	metrics.RecordQueueJob(typeName, "failed", start)
	m.persistFailed(job, typeName, lastErr, attempts)
	logger.Error("queue: job exhausted retries", "type", typeName, "error", lastErr)
}

// attempt runs one Handle call, turning a panic into an error.
func (m *Manager) attempt(ctx context.Context, job Job, timeout time.Duration) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: job panicked: %v", r)
		}
	}()
	return job.Handle(ctx)
}

// FailedJobs returns a snapshot of the jobs that exhausted their retries
// since boot.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

// sleep waits d or until ctx ends; false means ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var errQueueFull = errors.New("queue: memory queue is full")
