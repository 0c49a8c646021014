// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package vcsgw

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/antgroup/branchstack/pkg/process"
)

// Gateway is the VCS Gateway bound to one working tree. It is safe to
// reuse across the whole run of the tool (and should be — it owns the
// object-read cache described in SPEC_FULL.md §4.8).
type Gateway struct {
	dir     string
	environ []string

	commits *ristretto.Cache[Hash, *Commit]
}

// Open binds a Gateway to the git working tree containing dir (any
// path inside the worktree; git itself resolves the repository root).
func Open(dir string) (*Gateway, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[Hash, *Commit]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("vcsgw: allocate object cache: %w", err)
	}
	return &Gateway{dir: dir, environ: os.Environ(), commits: cache}, nil
}

// Close releases the Gateway's in-process object cache.
func (g *Gateway) Close() {
	g.commits.Close()
}

// runOpts builds process.RunOpts rooted at the gateway's working tree,
// with extraEnv layered on top of the inherited environment.
func (g *Gateway) runOpts(extraEnv []string) *process.RunOpts {
	return &process.RunOpts{Dir: g.dir, Environ: g.environ, ExtraEnv: extraEnv}
}

// git runs `git <args...>` and returns trimmed stdout as a string.
func (g *Gateway) git(ctx context.Context, args ...string) (string, error) {
	r := process.New(ctx, g.runOpts(nil), "git", args...)
	return r.OneLine()
}

// gitOutput runs `git <args...>` and returns raw (untrimmed) stdout.
func (g *Gateway) gitOutput(ctx context.Context, args ...string) ([]byte, error) {
	r := process.New(ctx, g.runOpts(nil), "git", args...)
	return r.Output()
}

// gitWithEnv runs `git <args...>` with extraEnv appended, feeding in
// (stdin, if non-nil) and returning trimmed stdout. Used by NewCommit
// to pass author/committer identity via GIT_*_NAME/EMAIL/DATE.
func (g *Gateway) gitWithEnv(ctx context.Context, extraEnv []string, stdin []byte, args ...string) (string, error) {
	opt := g.runOpts(extraEnv)
	if stdin != nil {
		opt.Stdin = bytes.NewBuffer(stdin)
	}
	r := process.New(ctx, opt, "git", args...)
	return r.OneLine()
}

// GitDir returns the repository's private directory (".git" for a
// normal checkout), used to locate the branch cache and the recorded
// resolution store alongside git's own bookkeeping.
func (g *Gateway) GitDir(ctx context.Context) (string, error) {
	dir, err := g.git(ctx, "rev-parse", "--git-dir")
	if err != nil {
		return "", fmt.Errorf("vcsgw: rev-parse --git-dir: %w", err)
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	return filepath.Join(g.dir, dir), nil
}

// RebaseState is branch/onto read out of an in-progress interactive
// rebase's private state directory (rebase-merge/head-name, .../onto).
type RebaseState struct {
	Branch string
	Onto   string
}

// DetectRebase reports the state of an interactive rebase in progress
// in this working tree, if any.
func (g *Gateway) DetectRebase(ctx context.Context) (RebaseState, bool) {
	gitDir, err := g.GitDir(ctx)
	if err != nil {
		return RebaseState{}, false
	}
	rebaseDir := filepath.Join(gitDir, "rebase-merge")
	if info, err := os.Stat(rebaseDir); err != nil || !info.IsDir() {
		return RebaseState{}, false
	}
	headName, err := os.ReadFile(filepath.Join(rebaseDir, "head-name"))
	if err != nil {
		return RebaseState{}, false
	}
	onto, err := os.ReadFile(filepath.Join(rebaseDir, "onto"))
	if err != nil {
		return RebaseState{}, false
	}
	return RebaseState{
		Branch: filepath.Base(strings.TrimSpace(string(headName))),
		Onto:   filepath.Base(strings.TrimSpace(string(onto))),
	}, true
}
