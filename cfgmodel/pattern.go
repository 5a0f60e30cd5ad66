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

package cfgmodel

import (
	"regexp"
	"strings"

	libval "github.com/go-playground/validator/v10"

	liberr "github.com/mink-run/gdt/errors"
)

var validate = libval.New()

// Validate checks value against n's pattern, in one of three forms (spec
// section 4.9, plus SPEC_FULL.md section 4.9/4.10 ADD): a bare regex, a
// ":pmcfg:[<path>]" reference enumerating valid values from another
// node's children, or a ":validate:[<tag>]" go-playground/validator/v10
// struct-tag rule.
func (n *Node) Validate(value string) liberr.Error {
	if n.Pattern == "" {
		return nil
	}

	switch {
	case strings.HasPrefix(n.Pattern, ":pmcfg:["):
		return n.validatePmcfg(value)
	case strings.HasPrefix(n.Pattern, ":validate:["):
		return n.validateTag(value)
	default:
		return n.validateRegex(value)
	}
}

func (n *Node) validateRegex(value string) liberr.Error {
	re, err := regexp.Compile(n.Pattern)
	if err != nil {
		return ErrorPatternInvalid.Error(err)
	}
	if !re.MatchString(value) {
		return ErrorValueRejected.Error(nil)
	}
	return nil
}

// validatePmcfg enumerates the values of the referenced node's children
// and accepts value if one of them equals it.
func (n *Node) validatePmcfg(value string) liberr.Error {
	path := extractBracket(n.Pattern, ":pmcfg:[")
	root := n
	for root.Parent != nil {
		root = root.Parent
	}

	ref, err := root.Lookup(path, false, KindBlock, false)
	if err != nil {
		return ErrorPatternInvalid.Error(err)
	}

	ref.mu.RLock()
	defer ref.mu.RUnlock()
	for _, c := range ref.Children {
		if c.Value == value {
			return nil
		}
	}
	return ErrorValueRejected.Error(nil)
}

func (n *Node) validateTag(value string) liberr.Error {
	tag := extractBracket(n.Pattern, ":validate:[")
	if err := validate.Var(value, tag); err != nil {
		return ErrorValueRejected.Error(err)
	}
	return nil
}

func extractBracket(pattern, prefix string) string {
	rest := strings.TrimPrefix(pattern, prefix)
	return strings.TrimSuffix(rest, "]")
}
