package lib

import (
	"context"
	"errors"

	"go.uber.org/atomic"
)

// Task is a wrapper around a function that runs in a separate goroutine
// and can be started and stopped
type Task struct {
	runFunc func(ctx context.Context) error
	name    string

	isRunning atomic.Bool
	stopCh    atomic.Value // chan struct{}
	doneCh    atomic.Value // chan struct{}
	cancel    atomic.Value // context.CancelFunc
	err       atomic.Error
}

type Runnable interface {
	Run(ctx context.Context) error
}

func NewTask(runnable Runnable, name string) *Task {
	return NewTaskFunc(runnable.Run, name)
}

func NewTaskFunc(f func(ctx context.Context) error, name string) *Task {
	t := &Task{
		runFunc: f,
		name:    name,
	}
	t.doneCh.Store(make(chan struct{}))
	return t
}

func (t *Task) Start(ctx context.Context) {
	if !t.isRunning.CAS(false, true) {
		panic("task " + t.name + " already running")
	}
	subCtx, cancel := context.WithCancel(ctx)
	t.cancel.Store(cancel)
	t.stopCh.Store(make(chan struct{}))

	go func() {
		err := t.runFunc(subCtx)
		isContextErr := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)

		// returned due to calling Stop()
		if ctx.Err() == nil && subCtx.Err() != nil && isContextErr {
			close(t.stopCh.Load().(chan struct{}))
			return
		}

		// returned due to outside cancellation or internal error
		t.err.Store(err)
		close(t.doneCh.Load().(chan struct{}))
		close(t.stopCh.Load().(chan struct{}))
	}()
}

func (t *Task) Stop() <-chan struct{} {
	if !t.isRunning.CAS(true, false) {
		closedChan := make(chan struct{})
		close(closedChan)
		return closedChan
	}
	c := t.cancel.Load()
	if c != nil {
		c.(context.CancelFunc)()
	}
	return t.stopCh.Load().(chan struct{})
}

// Done returns a channel that is closed when the task exited on its own or
// was cancelled from outside using context. Stop does not close it.
func (t *Task) Done() <-chan struct{} {
	return t.doneCh.Load().(chan struct{})
}

// Err returns the error that caused the task to exit
func (t *Task) Err() error {
	return t.err.Load()
}
