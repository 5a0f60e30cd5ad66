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

package cfgengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	liberr "github.com/mink-run/gdt/errors"
)

// writeRollback writes a new .rollback.<count>.pmcfg revision before a
// commit applies any change (spec section 4.10's save & rollback layout):
// its first textual line is a `// @desc "<description>"` comment.
func (e *Engine) writeRollback(description string) liberr.Error {
	if e.commitLogDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.commitLogDir, 0o755); err != nil {
		return ErrorNoRevision.Error(err)
	}

	count, err := e.revisionCount()
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "// @desc %q\n", description)
	renderNode(&sb, e.Root, 0)

	path := e.rollbackPath(count)
	if werr := os.WriteFile(path, []byte(sb.String()), 0o644); werr != nil {
		return ErrorNoRevision.Error(werr)
	}
	return nil
}

func (e *Engine) revisionCount() (int, liberr.Error) {
	entries, err := os.ReadDir(e.commitLogDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, ErrorNoRevision.Error(err)
	}
	n := 0
	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), ".rollback.") {
			n++
		}
	}
	return n, nil
}

// Rollback loads the revision at zero-based index N into revisions sorted
// by modification time newest-first, parses it, validates and merges it
// over the current tree, then commits (spec section 4.10).
func (e *Engine) Rollback(ctx context.Context, index int) liberr.Error {
	ctx = e.mu.Lock(ctx)
	defer e.mu.Unlock(ctx)

	entries, err := os.ReadDir(e.commitLogDir)
	if err != nil {
		return ErrorNoRevision.Error(err)
	}

	var revs []os.DirEntry
	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), ".rollback.") {
			revs = append(revs, ent)
		}
	}
	sort.Slice(revs, func(i, j int) bool {
		ii, _ := revs[i].Info()
		jj, _ := revs[j].Info()
		if ii == nil || jj == nil {
			return false
		}
		return ii.ModTime().After(jj.ModTime())
	})

	if index < 0 || index >= len(revs) {
		return ErrorNoRevision.Error(nil)
	}

	raw, rerr := os.ReadFile(filepath.Join(e.commitLogDir, revs[index].Name()))
	if rerr != nil {
		return ErrorRevisionParse.Error(rerr)
	}

	replacement, perr := parseRevision(string(raw))
	if perr != nil {
		return ErrorRevisionParse.Error(perr)
	}

	if merr := e.mergeReplace(e.Root, replacement); merr != nil {
		return merr
	}

	return e.Commit(ctx, "rollback to revision "+filepath.Base(revs[index].Name()))
}

// writeRunningConfig rewrites the running configuration file from the
// current committed tree (spec section 4.10).
func (e *Engine) writeRunningConfig() liberr.Error {
	if e.runningConfPath == "" {
		return nil
	}
	var sb strings.Builder
	renderNode(&sb, e.Root, 0)
	if err := os.WriteFile(e.runningConfPath, []byte(sb.String()), 0o644); err != nil {
		return ErrorNoRevision.Error(err)
	}
	return nil
}
