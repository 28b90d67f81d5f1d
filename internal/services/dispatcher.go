package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Task is a best-effort side effect such as an audit write or a notification email.
type Task func(ctx context.Context) error

// DropObserver is told about every task the dispatcher discards.
type DropObserver interface {
	TaskDropped(task string)
}

// DispatcherConfig bounds background side effects.
type DispatcherConfig struct {
	Workers     int           // concurrent tasks; excess tasks are dropped
	TaskTimeout time.Duration // per attempt
	Retries     int           // extra attempts after the first failure
	Backoff     time.Duration
	Dropped     DropObserver // optional
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Workers: 32, TaskTimeout: 10 * time.Second, Retries: 2, Backoff: 200 * time.Millisecond}
}

// InboundChatDispatcherConfig runs each inbound message exactly once. Routing is not
// idempotent, so failed tasks are never re-run; the chat service retries the send
// itself. routeBudget is the longest a single routing may take.
func InboundChatDispatcherConfig(routeBudget time.Duration) DispatcherConfig {
	return DispatcherConfig{Workers: 64, TaskTimeout: routeBudget + 30*time.Second}
}

// Dispatcher runs tasks after the primary operation has returned. Failures are logged
// and never reach the caller.
type Dispatcher struct {
	cfg    DispatcherConfig
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.Workers),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Go schedules task and returns immediately. It reports false when the task was
// dropped because the dispatcher is closed or saturated.
func (d *Dispatcher) Go(name string, task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(name, "dispatcher closed, dropping task")
		return false
	}

	select {
	case d.sem <- struct{}{}:
	default:
		d.drop(name, "dispatcher saturated, dropping task")
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background task panicked", slog.String("task", name), slog.Any("panic", r))
			}
		}()
		d.run(name, task)
	}()
	return true
}

func (d *Dispatcher) drop(name, msg string) {
	d.logger.Warn(msg, slog.String("task", name))
	if d.cfg.Dropped != nil {
		d.cfg.Dropped.TaskDropped(name)
	}
}

func (d *Dispatcher) run(name string, task Task) {
	var err error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
			case <-d.ctx.Done():
				return
			}
		}

		err = d.attempt(task)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) && d.ctx.Err() != nil {
			break
		}
	}
	d.logger.Error("background task failed",
		slog.String("task", name),
		slog.Int("attempts", d.cfg.Retries+1),
		slog.Any("error", err),
	)
}

func (d *Dispatcher) attempt(task Task) error {
	ctx := d.ctx
	if d.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.TaskTimeout)
		defer cancel()
	}
	return task(ctx)
}

// Close stops accepting tasks and waits for running ones until ctx is done, after
// which in-flight tasks are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
