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

// Package pipeline assembles a route's chosen handler, matching filters and
// connector into paired chains of Rx and Tx queues for one request.
// Grounded on original_source/src/pipeline.c (httpCreateRxPipeline,
// httpCreateTxPipeline, pairQueues, openQueues, httpDestroyPipeline).
package pipeline

import (
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
)

// Config lists the stages a route selected for one request, in the order
// original_source/src/pipeline.c assembles them: a single handler, zero or
// more filters that matched, and exactly one connector.
type Config struct {
	Handler   *stage.Stage
	Filters   []*stage.Stage
	Connector *stage.Stage
}

// Pipeline is the pair of queue chains built for one request: Rx runs
// connector -> filters -> handler, Tx runs handler -> filters -> connector.
type Pipeline struct {
	RxHead, RxTail *queue.Queue
	TxHead, TxTail *queue.Queue
}

// Scheduler is the narrow capability pipeline assembly wires into every
// queue it creates, letting a disabled queue ask to be re-serviced without
// holding a reference to anything beyond the scheduler itself.
type Scheduler = queue.Scheduler

// Build assembles the Rx and Tx queue chains for a request, pairing same-
// stage Rx/Tx queues and opening every queue exactly once
// (original_source/src/pipeline.c's pairQueues + openQueues), matching the
// two-pass order original_source uses: Tx pipeline is built first so a
// filter's Match hook can inspect tx->handler, then Rx.
func Build(cfg Config, sched Scheduler, bufferSize int) *Pipeline {
	p := &Pipeline{}

	txStages := make([]*stage.Stage, 0, len(cfg.Filters)+2)
	txStages = append(txStages, cfg.Handler)
	txStages = append(txStages, cfg.Filters...)
	txStages = append(txStages, cfg.Connector)
	var txQueues []*queue.Queue
	p.TxHead, p.TxTail, txQueues = chain(txStages, queue.Tx, sched, bufferSize)

	rxStages := make([]*stage.Stage, 0, len(cfg.Filters)+2)
	rxStages = append(rxStages, cfg.Connector)
	rxStages = append(rxStages, cfg.Filters...)
	rxStages = append(rxStages, cfg.Handler)
	var rxQueues []*queue.Queue
	p.RxHead, p.RxTail, rxQueues = chain(rxStages, queue.Rx, sched, bufferSize)

	pair(p.RxHead, p.TxHead)

	opened := make(map[string]bool, len(txStages)+len(rxStages))
	openAll(txStages, txQueues, opened)
	openAll(rxStages, rxQueues, opened)

	return p
}

// chain builds a linked list of queues, one per stage, in order, and
// returns the flat queue slice alongside it (index-aligned with the
// caller's stage slice) so Open/Close can be driven without the queue
// itself retaining a Stage reference.
func chain(stages []*stage.Stage, dir queue.Direction, sched Scheduler, bufferSize int) (head, tail *queue.Queue, queues []*queue.Queue) {
	var prev *queue.Queue
	for _, s := range stages {
		if s == nil {
			queues = append(queues, nil)
			continue
		}
		q := queue.New(s.Name, dir, bufferSize)
		if dir == queue.Tx {
			q.Put = s.Outgoing
		} else {
			q.Put = s.Incoming
		}
		q.Service = s.OutgoingService
		q.SetScheduler(sched)
		if prev == nil {
			head = q
		} else {
			queue.Append(prev, q)
		}
		prev = q
		queues = append(queues, q)
	}
	return head, prev, queues
}

// pair links same-named Rx/Tx queues so a filter can see both halves of
// its own state (original_source/src/pipeline.c's pairQueues).
func pair(rxHead, txHead *queue.Queue) {
	for rq := rxHead; rq != nil; rq = rq.Next {
		if rq.Pair != nil {
			continue
		}
		for tq := txHead; tq != nil; tq = tq.Next {
			if rq.Name == tq.Name {
				rq.Pair = tq
				tq.Pair = rq
				break
			}
		}
	}
}

// openAll invokes each queue's stage Open hook once per stage name,
// skipping a queue whose pair already opened (original_source/src/
// pipeline.c's openQueues: a filter shared by Rx and Tx opens once, not
// once per direction).
func openAll(stages []*stage.Stage, queues []*queue.Queue, opened map[string]bool) {
	for i, s := range stages {
		if s == nil || s.Open == nil || i >= len(queues) || queues[i] == nil {
			continue
		}
		if opened[s.Name] {
			continue
		}
		s.Open(queues[i])
		opened[s.Name] = true
	}
}

// Destroy invokes each queue's stage Close hook exactly once
// (original_source/src/pipeline.c's httpDestroyPipeline). Callers pass the
// same stage list used to Build so Close can run against the matching
// Stage.
func Destroy(stages []*stage.Stage, queues []*queue.Queue) {
	closed := make(map[string]bool, len(stages))
	for i, s := range stages {
		if s == nil || s.Close == nil || i >= len(queues) || queues[i] == nil {
			continue
		}
		if closed[s.Name] {
			continue
		}
		s.Close(queues[i])
		closed[s.Name] = true
	}
}
