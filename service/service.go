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

// Package service holds the process-wide registry of stages, endpoints
// and live connections, the shared digest-nonce secret, and the coarse
// timeout-sweep timer. Grounded on
// original_source/src/http.c's Http singleton and httpService.c's
// listener bookkeeping, re-expressed with package context's generic
// Config map in place of a hidden global singleton.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	libctx "github.com/nabbar/httpcore/context"
	"github.com/nabbar/httpcore/conn"
	"github.com/nabbar/httpcore/logger"
	"github.com/nabbar/httpcore/logger/level"
	"github.com/nabbar/httpcore/runner"
	"github.com/nabbar/httpcore/stage"
)

// Service is the process-wide registry original_source/src/http.c keeps
// as a single global Http struct; here it is an explicit, constructible
// value so a process can host more than one independent instance (tests
// in particular).
type Service struct {
	mu sync.RWMutex

	stages      libctx.Config[string]
	endpoints   libctx.Config[string]
	connections libctx.Config[string]

	secret string

	log logger.FuncLog

	sweep runner.StartStop
}

// New returns an empty Service with a freshly minted digest-nonce
// secret.
func New(log logger.FuncLog) *Service {
	return &Service{
		stages:      libctx.NewConfig[string](nil),
		endpoints:   libctx.NewConfig[string](nil),
		connections: libctx.NewConfig[string](nil),
		secret:      uuid.NewString(),
		log:         log,
	}
}

// Secret returns the process-wide nonce-minting secret.
func (s *Service) Secret() string { return s.secret }

// RegisterStage adds a named, shared stage descriptor to the registry.
func (s *Service) RegisterStage(st *stage.Stage) error {
	if _, loaded := s.stages.LoadOrStore(st.Name, st); loaded {
		return ErrDuplicateName
	}
	return nil
}

// Stage looks up a previously registered stage by name.
func (s *Service) Stage(name string) (*stage.Stage, bool) {
	v, ok := s.stages.Load(name)
	if !ok {
		return nil, false
	}
	st, ok := v.(*stage.Stage)
	return st, ok
}

// RegisterConnection tracks a live connection under a generated id,
// returning the id so the caller (endpoint.accept) can later
// UnregisterConnection it.
func (s *Service) RegisterConnection(c *conn.Conn) string {
	id := uuid.NewString()
	s.connections.Store(id, c)
	return id
}

// UnregisterConnection removes a connection from the sweep's view, at
// destroy time.
func (s *Service) UnregisterConnection(id string) {
	s.connections.Delete(id)
}

// ConnectionCount reports how many connections are currently tracked, so
// the sweep timer can skip a tick when there is nothing to sweep.
func (s *Service) ConnectionCount() int {
	n := 0
	s.connections.Walk(func(_ string, _ interface{}) bool { n++; return true })
	return n
}

// StartSweep launches the coarse timeout-sweep timer described in spec
// §4.10: every period, every tracked connection past its inactivity or
// request timeout is failed with 408. Calling StartSweep again replaces
// the running timer with one using the new period/timeouts; call
// StopSweep to end it for good.
func (s *Service) StartSweep(period time.Duration, inactivity, request time.Duration) error {
	s.mu.Lock()
	old := s.sweep
	s.sweep = runner.New(
		func(ctx context.Context) error {
			t := time.NewTicker(period)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					if s.ConnectionCount() == 0 {
						continue
					}
					s.sweepOnce(inactivity, request)
				}
			}
		},
		func(ctx context.Context) error { return nil },
	)
	cur := s.sweep
	s.mu.Unlock()

	if old != nil {
		_ = old.Stop(context.Background())
		s.logSweepError(old.ErrorsLast())
	}
	return cur.Start(context.Background())
}

func (s *Service) sweepOnce(inactivity, request time.Duration) {
	s.connections.Walk(func(_ string, v interface{}) bool {
		c, ok := v.(*conn.Conn)
		if !ok {
			return true
		}
		if c.IdleFor() > inactivity || c.RunningFor() > request {
			c.Timeout()
		}
		return true
	})
}

// StopSweep halts a running sweep timer, if any, and reports the last
// error its start or stop function produced.
func (s *Service) StopSweep() error {
	s.mu.Lock()
	r := s.sweep
	s.mu.Unlock()

	if r == nil {
		return nil
	}
	if err := r.Stop(context.Background()); err != nil {
		return err
	}
	last := r.ErrorsLast()
	s.logSweepError(last)
	return last
}

// SweepRunning reports whether the timeout sweep is currently active.
func (s *Service) SweepRunning() bool {
	s.mu.RLock()
	r := s.sweep
	s.mu.RUnlock()
	return r != nil && r.IsRunning()
}

func (s *Service) logSweepError(err error) {
	if err == nil || s.log == nil {
		return
	}
	l := s.log()
	if l == nil {
		return
	}
	l.Entry(level.ErrorLevel, "timeout sweep stopped with an error").ErrorAdd(true, err).Log()
}
