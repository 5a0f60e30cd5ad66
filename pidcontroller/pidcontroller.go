/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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
 */

// Package pidcontroller implements a small discrete PID controller used to
// generate a non-linear range of steps between two float64 bounds, reusing
// the same proportional/integral/derivative rates a feedback loop would use
// to approach a setpoint.
package pidcontroller

import (
	"context"
)

// maxSteps bounds RangeCtx so a degenerate set of rates (e.g. all zero)
// cannot loop forever; a loop hitting this limit means it could not
// converge and breaks out with whatever it collected so far.
const maxSteps = 10000

// epsilon is the distance to the target below which the controller
// considers the loop converged.
const epsilon = 1e-9

// PID holds the proportional, integral and derivative rates applied on each
// Step call, along with the accumulated integral and previous error needed
// to compute the derivative term.
type PID struct {
	rateP float64
	rateI float64
	rateD float64

	integral  float64
	lastError float64
}

// New returns a PID controller configured with the given proportional,
// integral and derivative rates.
func New(rateP, rateI, rateD float64) *PID {
	return &PID{
		rateP: rateP,
		rateI: rateI,
		rateD: rateD,
	}
}

// Reset clears the accumulated integral and last error, so the controller
// can be reused to compute a fresh range without re-allocating it.
func (p *PID) Reset() {
	p.integral = 0
	p.lastError = 0
}

// Step computes the next value given the current value and the target
// setpoint, advancing the controller's internal integral/derivative state.
func (p *PID) Step(current, target float64) float64 {
	err := target - current

	p.integral += err
	derivative := err - p.lastError
	p.lastError = err

	output := p.rateP*err + p.rateI*p.integral + p.rateD*derivative
	if output == 0 {
		return current
	}

	return current + output
}

// RangeCtx generates the sequence of intermediate values the controller
// takes to walk from start to target, inclusive of both bounds. The walk
// stops early, returning whatever was collected so far, if ctx is
// cancelled or the controller cannot make further progress.
func (p *PID) RangeCtx(ctx context.Context, start, target float64) []float64 {
	p.Reset()

	r := make([]float64, 0, 8)
	r = append(r, start)

	if start == target {
		return r
	}

	ascending := target > start
	cur := start

	for i := 0; i < maxSteps; i++ {
		select {
		case <-ctx.Done():
			return r
		default:
		}

		next := p.Step(cur, target)

		if ascending && next <= cur {
			break
		}
		if !ascending && next >= cur {
			break
		}

		if ascending && next >= target {
			break
		}
		if !ascending && next <= target {
			break
		}

		cur = next
		r = append(r, cur)

		if diff := target - cur; diff < epsilon && diff > -epsilon {
			break
		}
	}

	r = append(r, target)
	return r
}

// Range is the non-cancellable form of RangeCtx.
func (p *PID) Range(start, target float64) []float64 {
	return p.RangeCtx(context.Background(), start, target)
}
