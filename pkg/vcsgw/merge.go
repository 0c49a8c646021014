// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package vcsgw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/branchstack/pkg/process"
)

// Conflict is one path a three-way tree merge could not resolve
// mechanically. Content carries git merge-file's own output: the
// parts both sides agree on, plus `<<<<<<<`/`=======`/`>>>>>>>`
// marker blocks around the parts they don't.
type Conflict struct {
	Path    string
	Content []byte
}

// DiffPaths lists paths that differ between two trees.
func (g *Gateway) DiffPaths(ctx context.Context, a, b Hash) ([]string, error) {
	out, err := g.gitOutput(ctx, "diff", "--name-only", "-z", string(a), string(b))
	if err != nil {
		return nil, fmt.Errorf("vcsgw: diff --name-only %s %s: %w", a.Short(), b.Short(), err)
	}
	return splitNul(out), nil
}

// ReadBlobAt returns the content of path as it exists in tree, or
// ok=false if tree has no such path.
func (g *Gateway) ReadBlobAt(ctx context.Context, tree Hash, path string) (content []byte, ok bool, err error) {
	out, err := g.gitOutput(ctx, "ls-tree", string(tree), "--", path)
	if err != nil {
		return nil, false, fmt.Errorf("vcsgw: ls-tree %s %s: %w", tree.Short(), path, err)
	}
	line := strings.TrimRight(string(out), "\n")
	if line == "" {
		return nil, false, nil
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, false, fmt.Errorf("vcsgw: unexpected ls-tree output %q", line)
	}
	blob := fields[2]
	data, err := g.gitOutput(ctx, "cat-file", "blob", blob)
	if err != nil {
		return nil, false, fmt.Errorf("vcsgw: cat-file blob %s: %w", blob, err)
	}
	return data, true, nil
}

// MergeSession is one tree-level three-way merge in progress. It owns
// a scratch index (GIT_INDEX_FILE pointed at a private temp file) so
// assembly never touches the user's real staging area or worktree.
// Every path git couldn't resolve mechanically is surfaced once, as a
// Conflict, for the caller to settle with Resolve before Finish.
type MergeSession struct {
	gw        *Gateway
	ctx       context.Context
	dir       string
	indexFile string
	pending   map[string]struct{}
}

// BeginMerge starts a three-way merge of ours and theirs against base.
// Paths only one side touched, or both touched identically, are
// merged directly by read-tree; paths that collide come back as
// unresolved conflicts for the caller to settle via Resolve.
func (g *Gateway) BeginMerge(ctx context.Context, base, ours, theirs Hash) (*MergeSession, []Conflict, error) {
	dir, err := os.MkdirTemp("", "branchstack-index-*")
	if err != nil {
		return nil, nil, fmt.Errorf("vcsgw: create scratch index dir: %w", err)
	}
	s := &MergeSession{gw: g, ctx: ctx, dir: dir, indexFile: filepath.Join(dir, "index"), pending: map[string]struct{}{}}

	// read-tree exits non-zero whenever it leaves unmerged entries
	// behind; that is the expected outcome on a real conflict, not a
	// failure of the gateway call itself.
	_, _ = g.gitIndexed(ctx, s.indexFile, nil, "read-tree", "-m", "--aggressive", string(base), string(ours), string(theirs))

	stages, err := g.unmergedPaths(ctx, s.indexFile)
	if err != nil {
		s.Abort()
		return nil, nil, err
	}

	var conflicts []Conflict
	for path, entries := range stages {
		content, clean, err := g.mergeFileBlob(ctx, entries)
		if err != nil {
			s.Abort()
			return nil, nil, err
		}
		if clean {
			if err := g.stageBlob(ctx, s.indexFile, path, content); err != nil {
				s.Abort()
				return nil, nil, err
			}
			continue
		}
		s.pending[path] = struct{}{}
		conflicts = append(conflicts, Conflict{Path: path, Content: content})
	}
	return s, conflicts, nil
}

// Resolve stages the caller-supplied final content for path, settling
// one conflict that BeginMerge returned.
func (s *MergeSession) Resolve(path string, content []byte) error {
	if err := s.gw.stageBlob(s.ctx, s.indexFile, path, content); err != nil {
		return err
	}
	delete(s.pending, path)
	return nil
}

// Finish writes the assembled tree. It fails if any conflict returned
// by BeginMerge was never Resolved; the session stays usable, so the
// caller can Resolve the rest and call Finish again.
func (s *MergeSession) Finish() (Hash, error) {
	if len(s.pending) > 0 {
		return "", fmt.Errorf("vcsgw: %d unresolved conflict(s) remain", len(s.pending))
	}
	defer s.Abort()
	out, err := s.gw.gitIndexed(s.ctx, s.indexFile, nil, "write-tree")
	if err != nil {
		return "", fmt.Errorf("vcsgw: write-tree: %w", err)
	}
	return Hash(out), nil
}

// Abort discards the session's scratch index. Safe to call more than
// once; Finish calls it automatically once it gets past the
// unresolved-conflict check.
func (s *MergeSession) Abort() {
	if s.dir == "" {
		return
	}
	os.RemoveAll(s.dir)
	s.dir = ""
}

func (g *Gateway) gitIndexed(ctx context.Context, indexFile string, stdin []byte, args ...string) (string, error) {
	opt := g.runOpts([]string{"GIT_INDEX_FILE=" + indexFile})
	if stdin != nil {
		opt.Stdin = bytes.NewBuffer(stdin)
	}
	r := process.New(ctx, opt, "git", args...)
	return r.OneLine()
}

func (g *Gateway) gitIndexedOutput(ctx context.Context, indexFile string, args ...string) ([]byte, error) {
	opt := g.runOpts([]string{"GIT_INDEX_FILE=" + indexFile})
	r := process.New(ctx, opt, "git", args...)
	return r.Output()
}

// stageEntry is one side of an unmerged index entry: stage 1 is the
// common ancestor, 2 is ours, 3 is theirs; a zero entry means that
// side has no blob (the path was added or deleted on that side).
type stageEntry struct {
	mode string
	blob Hash
}

func (g *Gateway) unmergedPaths(ctx context.Context, indexFile string) (map[string][3]stageEntry, error) {
	out, err := g.gitIndexedOutput(ctx, indexFile, "ls-files", "-u", "-z")
	if err != nil {
		return nil, fmt.Errorf("vcsgw: ls-files -u: %w", err)
	}
	paths := make(map[string][3]stageEntry)
	for _, line := range splitNul(out) {
		if line == "" {
			continue
		}
		// "<mode> <blob> <stage>\t<path>"
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		header, path := line[:tab], line[tab+1:]
		fields := strings.Fields(header)
		if len(fields) != 3 {
			continue
		}
		stage := fields[2][0] - '1'
		if stage > 2 {
			continue
		}
		entry := paths[path]
		entry[stage] = stageEntry{mode: fields[0], blob: Hash(fields[1])}
		paths[path] = entry
	}
	return paths, nil
}

// mergeFileBlob resolves one conflicted path with git merge-file,
// feeding it the three blobs as temp files since merge-file only
// operates on the filesystem. clean is false when merge-file left
// unresolved markers in the result (or when one side has no blob at
// all, e.g. a modify/delete collision with nothing to three-way
// against — surfaced as a conflict rather than guessed at).
func (g *Gateway) mergeFileBlob(ctx context.Context, stages [3]stageEntry) (content []byte, clean bool, err error) {
	base, ours, theirs := stages[0], stages[1], stages[2]
	if ours.blob == "" || theirs.blob == "" {
		return nil, false, nil
	}

	dir, err := os.MkdirTemp("", "branchstack-mergefile-*")
	if err != nil {
		return nil, false, fmt.Errorf("vcsgw: create merge-file temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	baseFile := filepath.Join(dir, "base")
	oursFile := filepath.Join(dir, "ours")
	theirsFile := filepath.Join(dir, "theirs")

	if base.blob != "" {
		if err := g.writeBlobFile(ctx, base.blob, baseFile); err != nil {
			return nil, false, err
		}
	} else if err := os.WriteFile(baseFile, nil, 0o644); err != nil {
		return nil, false, err
	}
	if err := g.writeBlobFile(ctx, ours.blob, oursFile); err != nil {
		return nil, false, err
	}
	if err := g.writeBlobFile(ctx, theirs.blob, theirsFile); err != nil {
		return nil, false, err
	}

	r := process.New(ctx, g.runOpts(nil), "git", "merge-file", "-p", oursFile, baseFile, theirsFile)
	out, runErr := r.Output()
	if runErr != nil {
		if ee, ok := asExitError(runErr); ok && ee.ExitCode() > 0 {
			// Positive exit = N conflicting hunks; output still usable.
			return out, false, nil
		}
		return nil, false, fmt.Errorf("vcsgw: merge-file: %w", runErr)
	}
	return out, true, nil
}

func (g *Gateway) writeBlobFile(ctx context.Context, blob Hash, path string) error {
	data, err := g.gitOutput(ctx, "cat-file", "blob", string(blob))
	if err != nil {
		return fmt.Errorf("vcsgw: cat-file blob %s: %w", blob, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (g *Gateway) stageBlob(ctx context.Context, indexFile, path string, content []byte) error {
	hashOut, err := g.gitIndexed(ctx, indexFile, content, "hash-object", "-w", "--stdin")
	if err != nil {
		return fmt.Errorf("vcsgw: hash-object %s: %w", path, err)
	}
	if _, err := g.gitIndexed(ctx, indexFile, nil,
		"update-index", "--add", "--cacheinfo", "100644,"+hashOut+","+path); err != nil {
		return fmt.Errorf("vcsgw: update-index %s: %w", path, err)
	}
	return nil
}

func asExitError(err error) (*process.ExitError, bool) {
	var ee *process.ExitError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

func splitNul(b []byte) []string {
	s := strings.TrimRight(string(b), "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00")
}
