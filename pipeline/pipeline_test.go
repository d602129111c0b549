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

package pipeline_test

import (
	. "github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type noopScheduler struct{ scheduled []*queue.Queue }

func (s *noopScheduler) Schedule(q *queue.Queue) { s.scheduled = append(s.scheduled, q) }

var _ = Describe("[TC-PL] Pipeline", func() {
	It("[TC-PL-001] Build with no filters pairs the handler's Tx queue with its Rx queue", func() {
		handler := stage.New("handler", stage.KindHandler)
		conn := stage.New("connector", stage.KindConnector)
		p := Build(Config{Handler: handler, Connector: conn}, &noopScheduler{}, 4096)

		Expect(p.RxTail.Pair).To(Equal(p.TxHead))
		Expect(p.TxHead.Pair).To(Equal(p.RxTail))
	})

	It("[TC-PL-002] Tx chain runs handler -> filters -> connector in order", func() {
		handler := stage.New("handler", stage.KindHandler)
		filter := stage.New("chunked", stage.KindFilter)
		conn := stage.New("connector", stage.KindConnector)
		p := Build(Config{Handler: handler, Filters: []*stage.Stage{filter}, Connector: conn}, &noopScheduler{}, 4096)

		Expect(p.TxHead.Name).To(Equal("handler"))
		Expect(p.TxHead.Next.Name).To(Equal("chunked"))
		Expect(p.TxHead.Next.Next.Name).To(Equal("connector"))
		Expect(p.TxHead.Next.Next).To(Equal(p.TxTail))
	})

	It("[TC-PL-003] Rx chain runs connector -> filters -> handler in order", func() {
		handler := stage.New("handler", stage.KindHandler)
		filter := stage.New("chunked", stage.KindFilter)
		conn := stage.New("connector", stage.KindConnector)
		p := Build(Config{Handler: handler, Filters: []*stage.Stage{filter}, Connector: conn}, &noopScheduler{}, 4096)

		Expect(p.RxHead.Name).To(Equal("connector"))
		Expect(p.RxHead.Next.Name).To(Equal("chunked"))
		Expect(p.RxHead.Next.Next.Name).To(Equal("handler"))
		Expect(p.RxHead.Next.Next).To(Equal(p.RxTail))
	})

	It("[TC-PL-004] a filter's same-named Rx and Tx queues are paired with each other", func() {
		handler := stage.New("handler", stage.KindHandler)
		filter := stage.New("chunked", stage.KindFilter)
		conn := stage.New("connector", stage.KindConnector)
		p := Build(Config{Handler: handler, Filters: []*stage.Stage{filter}, Connector: conn}, &noopScheduler{}, 4096)

		rxFilter := p.RxHead.Next
		txFilter := p.TxHead.Next
		Expect(rxFilter.Pair).To(Equal(txFilter))
		Expect(txFilter.Pair).To(Equal(rxFilter))
	})

	It("[TC-PL-005] Tx queues wire Put to each stage's Outgoing callback", func() {
		var seen *packet.Packet
		handler := stage.New("handler", stage.KindHandler)
		handler.Outgoing = func(q *queue.Queue, p *packet.Packet) error {
			seen = p
			return nil
		}
		conn := stage.New("connector", stage.KindConnector)
		p := Build(Config{Handler: handler, Connector: conn}, &noopScheduler{}, 4096)

		pkt := packet.NewData([]byte("x"))
		Expect(p.TxHead.PutPacket(pkt)).To(Succeed())
		Expect(seen).To(Equal(pkt))
	})

	It("[TC-PL-006] every queue's Service is the owning stage's OutgoingService, in both directions", func() {
		handlerCalls := 0
		handler := stage.New("handler", stage.KindHandler)
		handler.OutgoingService = func(q *queue.Queue) error { handlerCalls++; return nil }
		conn := stage.New("connector", stage.KindConnector)
		p := Build(Config{Handler: handler, Connector: conn}, &noopScheduler{}, 4096)

		Expect(p.TxHead.RunService()).To(Succeed())
		Expect(p.RxTail.RunService()).To(Succeed())
		Expect(handlerCalls).To(Equal(2), "both the handler's Tx and Rx queue carry its OutgoingService")
	})

	It("[TC-PL-007] every queue created by Build re-enabling its upstream reaches the supplied scheduler", func() {
		handler := stage.New("handler", stage.KindHandler)
		conn := stage.New("connector", stage.KindConnector)
		sched := &noopScheduler{}
		p := Build(Config{Handler: handler, Connector: conn}, sched, 100)

		Expect(p.TxTail.PutPacket(packet.NewData(make([]byte, 150)))).To(Succeed())
		Expect(p.TxHead.Disabled()).To(BeTrue())

		p.TxTail.Pop()
		Expect(p.TxTail.PutPacket(packet.NewData([]byte{}))).To(Succeed())
		Expect(p.TxHead.Disabled()).To(BeFalse())
		Expect(sched.scheduled).To(ContainElement(p.TxHead))
	})

	It("[TC-PL-008] Open runs once per distinct stage name even when shared by Rx and Tx", func() {
		opens := 0
		handler := stage.New("handler", stage.KindHandler)
		filter := stage.New("shared-filter", stage.KindFilter)
		filter.Open = func(q *queue.Queue) { opens++ }
		conn := stage.New("connector", stage.KindConnector)
		Build(Config{Handler: handler, Filters: []*stage.Stage{filter}, Connector: conn}, &noopScheduler{}, 4096)

		Expect(opens).To(Equal(1))
	})

	It("[TC-PL-009] Destroy runs Close once per distinct stage name", func() {
		closes := 0
		filter := stage.New("shared-filter", stage.KindFilter)
		filter.Close = func(q *queue.Queue) { closes++ }
		stages := []*stage.Stage{filter, filter}
		queues := []*queue.Queue{queue.New(filter.Name, queue.Rx, 4096), queue.New(filter.Name, queue.Tx, 4096)}

		Destroy(stages, queues)
		Expect(closes).To(Equal(1))
	})

	It("[TC-PL-010] Destroy skips stages with no Close hook or a nil queue slot", func() {
		handler := stage.New("handler", stage.KindHandler)
		Expect(func() { Destroy([]*stage.Stage{handler, nil}, []*queue.Queue{nil, nil}) }).ToNot(Panic())
	})
})
