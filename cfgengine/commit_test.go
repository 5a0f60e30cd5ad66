/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package cfgengine_test

import (
	"context"
	"os"

	"github.com/mink-run/gdt/cfgengine"
	"github.com/mink-run/gdt/cfgmodel"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Commit", func() {
	var (
		dir string
		e   *cfgengine.Engine
	)

	BeforeEach(func() {
		dir, _ = os.MkdirTemp("", "gdt-commit-log")
		e = cfgengine.New(cfgengine.Config{CommitLogDir: dir})
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("groups changed children by handler identity and fires each once", func() {
		var calls int
		block := e.Root.NewChild("iface", cfgmodel.KindBlock)
		a := block.NewChild("a", cfgmodel.KindItem)
		a.State = cfgmodel.StateModified
		a.NewValue = "1"
		a.OnChange = func(n *cfgmodel.Node, changed []*cfgmodel.Node) error {
			calls++
			Expect(len(changed)).To(Equal(2))
			return nil
		}
		b := block.NewChild("b", cfgmodel.KindItem)
		b.State = cfgmodel.StateModified
		b.NewValue = "2"
		b.OnChange = a.OnChange

		Expect(e.Commit(context.Background(), "test")).To(BeNil())
		Expect(calls).To(Equal(1))
		Expect(a.Value).To(Equal("1"))
		Expect(a.State).To(Equal(cfgmodel.StateReady))
	})

	It("prunes DELETED blocks on commit", func() {
		block := e.Root.NewChild("doomed", cfgmodel.KindBlock)
		block.State = cfgmodel.StateDeleted

		Expect(e.Commit(context.Background(), "prune")).To(BeNil())
		Expect(e.Root.FindChild("doomed")).To(BeNil())
	})

	It("discards pending changes without applying them", func() {
		n := e.Root.NewChild("pending", cfgmodel.KindItem)
		n.Value = "old"
		n.State = cfgmodel.StateModified
		n.NewValue = "new"

		e.Discard(context.Background())
		Expect(n.State).To(Equal(cfgmodel.StateReady))
		Expect(n.NewValue).To(Equal("old"))
	})
})
