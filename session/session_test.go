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

package session_test

import (
	"context"
	"time"

	. "github.com/nabbar/httpcore/session"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("[TC-SS] Session store", func() {
	var st *Store

	BeforeEach(func() {
		st = New(context.Background(), time.Hour)
	})

	AfterEach(func() {
		_ = st.Close()
	})

	It("[TC-SS-001] creates a session with an empty namespace", func() {
		id := st.Create()
		Expect(id).ToNot(BeEmpty())
		m, ok := st.Get(id)
		Expect(ok).To(BeTrue())
		Expect(m).To(BeEmpty())
	})

	It("[TC-SS-002] sets and reads a namespaced key", func() {
		id := st.Create()
		st.Set(id, "user", "alice")
		m, ok := st.Get(id)
		Expect(ok).To(BeTrue())
		Expect(m["user"]).To(Equal("alice"))
	})

	It("[TC-SS-003] deletes a key without destroying the session", func() {
		id := st.Create()
		st.Set(id, "user", "alice")
		st.Delete(id, "user")
		m, ok := st.Get(id)
		Expect(ok).To(BeTrue())
		Expect(m).ToNot(HaveKey("user"))
	})

	It("[TC-SS-004] destroys a session", func() {
		id := st.Create()
		st.Destroy(id)
		_, ok := st.Get(id)
		Expect(ok).To(BeFalse())
	})

	It("[TC-SS-005] expires a session past its TTL", func() {
		short := New(context.Background(), 20*time.Millisecond)
		defer short.Close()
		id := short.Create()
		Eventually(func() bool {
			_, ok := short.Get(id)
			return ok
		}, "500ms", "10ms").Should(BeFalse())
	})
})
