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

// Package semaphore bounds how many workers run at once, as either a
// weighted limiter backed by golang.org/x/sync/semaphore or, when asked
// for a negative limit, an always-succeeds sync.WaitGroup-backed mode for
// call sites that only need WaitAll's join behavior. Both modes carry
// their own context.Context, cancelled by DeferMain, so a caller blocked
// in NewWorker or WaitAll unblocks with an error the moment the semaphore
// itself is torn down (the context's error, or ErrWaitAllCancelled from
// WaitAll in the unlimited mode).
package semaphore

import (
	"context"
	"runtime"
	"sync"
	"time"

	xsync "golang.org/x/sync/semaphore"
)

// Semaphore bounds concurrent workers and exposes the context.Context
// that cancels when the semaphore is torn down via DeferMain.
type Semaphore interface {
	context.Context

	// NewWorker blocks until a slot is available or the semaphore's
	// context is done.
	NewWorker() error

	// NewWorkerTry acquires a slot without blocking, reporting whether
	// one was available.
	NewWorkerTry() bool

	// DeferWorker releases a slot acquired by NewWorker/NewWorkerTry.
	DeferWorker()

	// DeferMain cancels the semaphore's context. Safe to call more than
	// once.
	DeferMain()

	// WaitAll blocks until every outstanding worker has called
	// DeferWorker, or the semaphore's context is done.
	WaitAll() error

	// Weighted returns the configured limit, or -1 for the unlimited
	// WaitGroup-backed mode.
	Weighted() int64

	// New returns an independent Semaphore with the same limit, whose
	// context is a child of this one's.
	New() Semaphore
}

// MaxSimultaneous is the default weighted limit used when New is given
// nbrSimultaneous == 0: the number of logical CPUs Go will schedule onto.
func MaxSimultaneous() int {
	return runtime.GOMAXPROCS(0)
}

// SetSimultaneous clamps n into [1, MaxSimultaneous()], defaulting to
// MaxSimultaneous() for any n below 1.
func SetSimultaneous(n int64) int64 {
	max := int64(MaxSimultaneous())
	if n < 1 || n > max {
		return max
	}
	return n
}

// New returns a Semaphore bound to ctx. nbrSimultaneous == 0 uses
// MaxSimultaneous(), nbrSimultaneous > 0 uses that exact weighted limit,
// and any negative value switches to the unlimited WaitGroup-backed mode
// (Weighted() reports -1).
func New(ctx context.Context, nbrSimultaneous int) Semaphore {
	return newSemaphore(ctx, resolveWeight(nbrSimultaneous))
}

func resolveWeight(n int) int64 {
	switch {
	case n == 0:
		return int64(MaxSimultaneous())
	case n < 0:
		return -1
	default:
		return int64(n)
	}
}

func newSemaphore(parent context.Context, weight int64) *semaphore {
	ctx, cancel := context.WithCancel(parent)
	s := &semaphore{
		ctx:    ctx,
		cancel: cancel,
		weight: weight,
	}
	if weight > 0 {
		s.w = xsync.NewWeighted(weight)
	}
	return s
}

type semaphore struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	weight int64
	w      *xsync.Weighted
	wg     sync.WaitGroup
}

func (s *semaphore) Weighted() int64 { return s.weight }

func (s *semaphore) New() Semaphore {
	return newSemaphore(s.ctx, s.weight)
}

func (s *semaphore) NewWorker() error {
	if s.weight < 0 {
		s.wg.Add(1)
		return nil
	}
	return s.w.Acquire(s.ctx, 1)
}

func (s *semaphore) NewWorkerTry() bool {
	if s.weight < 0 {
		s.wg.Add(1)
		return true
	}
	return s.w.TryAcquire(1)
}

func (s *semaphore) DeferWorker() {
	if s.weight < 0 {
		s.wg.Done()
		return
	}
	s.w.Release(1)
}

func (s *semaphore) WaitAll() error {
	if s.weight < 0 {
		return s.waitAllUnbounded()
	}
	if err := s.w.Acquire(s.ctx, s.weight); err != nil {
		return err
	}
	s.w.Release(s.weight)
	return nil
}

func (s *semaphore) waitAllUnbounded() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-s.ctx.Done():
		return ErrWaitAllCancelled
	}
}

func (s *semaphore) DeferMain() {
	s.once.Do(s.cancel)
}

func (s *semaphore) Deadline() (time.Time, bool)       { return s.ctx.Deadline() }
func (s *semaphore) Done() <-chan struct{}             { return s.ctx.Done() }
func (s *semaphore) Err() error                        { return s.ctx.Err() }
func (s *semaphore) Value(key interface{}) interface{} { return s.ctx.Value(key) }
