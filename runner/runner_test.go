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

package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/nabbar/httpcore/runner"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("[TC-RUN] Runner", func() {
	It("[TC-RUN-001] a fresh runner is not running and has no uptime or errors", func() {
		r := New(
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error { return nil },
		)
		Expect(r.IsRunning()).To(BeFalse())
		Expect(r.Uptime()).To(BeZero())
		Expect(r.ErrorsLast()).To(BeNil())
		Expect(r.ErrorsList()).To(BeEmpty())
	})

	It("[TC-RUN-002] Start returns immediately even when the start function blocks forever", func() {
		var running atomic.Bool
		r := New(
			func(ctx context.Context) error {
				running.Store(true)
				<-ctx.Done()
				running.Store(false)
				return nil
			},
			func(ctx context.Context) error { return nil },
		)

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(func() bool { return running.Load() && r.IsRunning() }, time.Second).Should(BeTrue())

		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())
		Eventually(r.IsRunning, time.Second).Should(BeFalse())
	})

	It("[TC-RUN-003] uptime tracks since the last Start and resets to zero after Stop", func() {
		r := New(
			func(ctx context.Context) error { <-ctx.Done(); return nil },
			func(ctx context.Context) error { return nil },
		)

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.IsRunning, time.Second).Should(BeTrue())

		time.Sleep(30 * time.Millisecond)
		Expect(r.Uptime()).To(BeNumerically(">=", 30*time.Millisecond))

		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())
		Eventually(r.Uptime, time.Second).Should(BeZero())
	})

	It("[TC-RUN-004] Start called while running stops the previous instance first", func() {
		var count atomic.Int32
		r := New(
			func(ctx context.Context) error { count.Add(1); <-ctx.Done(); return nil },
			func(ctx context.Context) error { return nil },
		)

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.IsRunning, time.Second).Should(BeTrue())
		first := count.Load()

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.IsRunning, time.Second).Should(BeTrue())
		Eventually(func() int32 { return count.Load() }, time.Second).Should(BeNumerically(">", first))

		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())
	})

	It("[TC-RUN-005] Stop is idempotent: only the first call invokes the stop function", func() {
		var stopCalls atomic.Int32
		r := New(
			func(ctx context.Context) error { <-ctx.Done(); return nil },
			func(ctx context.Context) error { stopCalls.Add(1); return nil },
		)

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.IsRunning, time.Second).Should(BeTrue())

		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())
		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())

		Consistently(func() int32 { return stopCalls.Load() }, 100*time.Millisecond, 20*time.Millisecond).
			Should(Equal(int32(1)))
	})

	It("[TC-RUN-006] Stop on a never-started runner is a safe no-op", func() {
		r := New(
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error { return nil },
		)
		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())
	})

	It("[TC-RUN-007] an error returned by the start function is captured asynchronously", func() {
		expected := errors.New("boom")
		r := New(
			func(ctx context.Context) error { return expected },
			func(ctx context.Context) error { return nil },
		)

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.ErrorsLast, time.Second).Should(MatchError(expected))
		Expect(r.ErrorsList()).To(ContainElement(MatchError(expected)))
	})

	It("[TC-RUN-008] a nil start function reports ErrorNilStartFunc instead of panicking", func() {
		r := New(nil, func(ctx context.Context) error { return nil })

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(func() error { return r.ErrorsLast() }, time.Second).Should(HaveOccurred())
		Expect(IsCodeError(r.ErrorsLast(), ErrorNilStartFunc)).To(BeTrue())
	})

	It("[TC-RUN-009] a nil stop function reports ErrorNilStopFunc when Stop runs", func() {
		r := New(func(ctx context.Context) error { <-ctx.Done(); return nil }, nil)

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.IsRunning, time.Second).Should(BeTrue())

		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())
		Eventually(func() error { return r.ErrorsLast() }, time.Second).Should(HaveOccurred())
		Expect(IsCodeError(r.ErrorsLast(), ErrorNilStopFunc)).To(BeTrue())
	})

	It("[TC-RUN-010] Start clears the error history of the previous run", func() {
		var n atomic.Int32
		first := errors.New("first")
		second := errors.New("second")

		r := New(
			func(ctx context.Context) error {
				if n.Add(1) == 1 {
					return first
				}
				return second
			},
			func(ctx context.Context) error { return nil },
		)

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.ErrorsLast, time.Second).Should(MatchError(first))
		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())

		Expect(r.Start(context.Background())).ToNot(HaveOccurred())
		Eventually(r.ErrorsLast, time.Second).Should(MatchError(second))
		Expect(r.ErrorsList()).To(HaveLen(1))
	})

	It("[TC-RUN-011] Restart works even when nothing is running", func() {
		r := New(
			func(ctx context.Context) error { <-ctx.Done(); return nil },
			func(ctx context.Context) error { return nil },
		)
		Expect(r.Restart(context.Background())).ToNot(HaveOccurred())
		Eventually(r.IsRunning, time.Second).Should(BeTrue())
		Expect(r.Stop(context.Background())).ToNot(HaveOccurred())
	})
})
