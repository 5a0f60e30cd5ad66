/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package size provides a byte-count type that marshals to and from
// human-readable units (KB, MiB, ...) for use in configuration structs.
package size

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count, configurable in JSON/YAML/TOML as either a bare
// integer (bytes) or a suffixed string such as "32KB" or "4MiB".
type Size int64

const (
	Byte Size = 1

	KB  = Byte * 1000
	MB  = KB * 1000
	GB  = MB * 1000
	KiB = Byte << 10
	MiB = KiB << 10
	GiB = MiB << 10
)

var units = []struct {
	suffix string
	factor Size
}{
	{"GiB", GiB}, {"MiB", MiB}, {"KiB", KiB},
	{"GB", GB}, {"MB", MB}, {"KB", KB},
	{"B", Byte},
}

func (s Size) Int64() int64 {
	return int64(s)
}

func (s Size) String() string {
	for _, u := range units {
		if u.factor > Byte && int64(s)%int64(u.factor) == 0 && s >= u.factor {
			return fmt.Sprintf("%d%s", int64(s)/int64(u.factor), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", int64(s))
}

func Parse(raw string) (Size, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	for _, u := range units {
		if strings.HasSuffix(raw, u.suffix) {
			n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimSuffix(raw, u.suffix)), 10, 64)
			if err != nil {
				return 0, err
			}
			return Size(n) * u.factor, nil
		}
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	return Size(n), nil
}

func (s *Size) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
