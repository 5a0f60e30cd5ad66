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

package session_test

import (
	"context"
	"time"

	"github.com/mink-run/gdt/codec/tlv"
	"github.com/mink-run/gdt/session"
	"github.com/mink-run/gdt/statemachine"
	"github.com/mink-run/gdt/transport/reftransport"
	"github.com/mink-run/gdt/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Session", func() {
	It("registers an outbound Connect against an inbound Listen and routes through it", func() {
		routerSelf := wire.Endpoint{Type: "gdtd", Id: "router-1"}
		leafSelf := wire.Endpoint{Type: "gdtd", Id: "leaf-1"}

		routerRouter := session.NewRouter(session.PolicyFirstMatch, nil)
		routerMachine := statemachine.New(routerSelf, routerRouter)
		routerSession := session.New(routerSelf, true, reftransport.New(), tlv.New(64*1024), routerRouter, routerMachine)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Expect(routerSession.Listen(ctx, "127.0.0.1:0")).To(BeNil())
		Eventually(routerSession.Addr).ShouldNot(BeEmpty())

		leafRouter := session.NewRouter(session.PolicyFirstMatch, nil)
		leafMachine := statemachine.New(leafSelf, leafRouter)
		leafSession := session.New(leafSelf, false, reftransport.New(), tlv.New(64*1024), leafRouter, leafMachine)

		connectCtx, connectCancel := context.WithTimeout(ctx, 2*time.Second)
		defer connectCancel()

		c, err := leafSession.Connect(connectCtx, routerSelf, routerSession.Addr())
		Expect(err).To(BeNil())
		Expect(c.IsRegistered()).To(BeTrue())

		routed, found := leafRouter.Route(routerSelf)
		Expect(found).To(BeTrue())
		Expect(routed).To(BeIdenticalTo(c))

		Expect(routerSession.Shutdown(ctx)).To(Succeed())
		Expect(leafSession.Shutdown(ctx)).To(Succeed())
	})
})
