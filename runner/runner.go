/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package runner wraps a pair of start/stop functions into a restartable
// background task: Start launches the start function in its own goroutine
// and returns immediately, Stop cancels it and waits for it to return, and
// Start called again while already running stops the previous instance
// first. Errors returned by either function are captured rather than
// propagated, so a caller that only cares about firing the task off can
// still inspect what went wrong later.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FuncStart is the body of a background task. It is run in its own
// goroutine and is expected to block until ctx is cancelled.
type FuncStart func(ctx context.Context) error

// FuncStop releases whatever FuncStart acquired. It runs synchronously
// inside Stop/Restart, after the running FuncStart has returned.
type FuncStop func(ctx context.Context) error

// StartStop is a restartable background task with captured error history.
type StartStop interface {
	// Start stops any instance already running, then launches a fresh one
	// in a new goroutine and returns without waiting for it to finish.
	Start(ctx context.Context) error

	// Stop cancels the running instance and waits for it to return, then
	// runs the stop function. It is a no-op when nothing is running.
	Stop(ctx context.Context) error

	// Restart stops the current instance, if any, and starts a new one.
	Restart(ctx context.Context) error

	// IsRunning reports whether the start function is currently executing.
	IsRunning() bool

	// Uptime is how long the current instance has been running, or zero
	// when nothing is running.
	Uptime() time.Duration

	// ErrorsLast returns the most recently captured error, or nil.
	ErrorsLast() error

	// ErrorsList returns every error captured since the last Start.
	ErrorsList() []error
}

// New returns a StartStop driving start and stop. Either may be nil; a nil
// function still runs (and reports ErrorNilStartFunc / ErrorNilStopFunc)
// rather than panicking.
func New(start FuncStart, stop FuncStop) StartStop {
	return &runner{
		fnStart: start,
		fnStop:  stop,
	}
}

type runner struct {
	mu sync.Mutex

	fnStart FuncStart
	fnStop  FuncStop

	running   atomic.Bool
	startedAt atomic.Value // time.Time

	cancel context.CancelFunc
	done   chan struct{}

	errMu sync.Mutex
	errs  []error
}

func (r *runner) Start(ctx context.Context) error {
	return r.restart(ctx)
}

func (r *runner) Restart(ctx context.Context) error {
	return r.restart(ctx)
}

func (r *runner) restart(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked(ctx)
	r.clearErrs()
	r.startLocked(ctx)

	return nil
}

func (r *runner) startLocked(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.cancel = cancel
	r.done = done
	r.running.Store(true)
	r.startedAt.Store(time.Now())

	fn := r.fnStart

	go func() {
		defer close(done)

		if fn == nil {
			r.addErr(ErrNilStartFunc)
		} else if err := fn(runCtx); err != nil {
			r.addErr(err)
		}

		r.running.Store(false)
		r.startedAt.Store(time.Time{})
	}()
}

func (r *runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked(ctx)
	return nil
}

func (r *runner) stopLocked(ctx context.Context) {
	if r.cancel == nil {
		return
	}

	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil

	cancel()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	r.running.Store(false)
	r.startedAt.Store(time.Time{})

	if r.fnStop == nil {
		r.addErr(ErrNilStopFunc)
		return
	}

	if err := r.fnStop(ctx); err != nil {
		r.addErr(err)
	}
}

func (r *runner) IsRunning() bool {
	return r.running.Load()
}

func (r *runner) Uptime() time.Duration {
	v := r.startedAt.Load()
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return 0
	}
	return time.Since(t)
}

func (r *runner) addErr(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	r.errs = append(r.errs, err)
	r.errMu.Unlock()
}

func (r *runner) clearErrs() {
	r.errMu.Lock()
	r.errs = nil
	r.errMu.Unlock()
}

func (r *runner) ErrorsLast() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func (r *runner) ErrorsList() []error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}
