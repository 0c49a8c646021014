// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package vcsgw

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=tester", "GIT_AUTHOR_EMAIL=tester@example.com",
		"GIT_COMMITTER_NAME=tester", "GIT_COMMITTER_EMAIL=tester@example.com",
	)
	out, err := cmd.Output()
	require.NoError(t, err, "git %v", args)
	return strings.TrimSpace(string(out))
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("base\n"), 0o644))
	runGit(t, dir, "add", "file.txt")
	runGit(t, dir, "commit", "-q", "-m", "base commit")
	return dir
}

func TestCommitByIDRoundTrip(t *testing.T) {
	dir := newTestRepo(t)
	gw, err := Open(dir)
	require.NoError(t, err)
	defer gw.Close()

	head := Hash(runGit(t, dir, "rev-parse", "HEAD"))
	ctx := context.Background()
	c, err := gw.CommitByID(ctx, head)
	require.NoError(t, err)
	require.Equal(t, "base commit", c.Subject)
	require.Equal(t, head, c.ID)
	require.Empty(t, c.Parents)
}

func TestNewCommitPreservesIdentity(t *testing.T) {
	dir := newTestRepo(t)
	gw, err := Open(dir)
	require.NoError(t, err)
	defer gw.Close()
	ctx := context.Background()

	head := Hash(runGit(t, dir, "rev-parse", "HEAD"))
	original, err := gw.CommitByID(ctx, head)
	require.NoError(t, err)

	newID, err := gw.NewCommit(ctx, original.Tree, nil, original.Author, original.Committer, original.Message)
	require.NoError(t, err)

	replayed, err := gw.CommitByID(ctx, newID)
	require.NoError(t, err)
	require.Equal(t, original.Author.Raw, replayed.Author.Raw)
	require.Equal(t, original.Committer.Raw, replayed.Committer.Raw)
	require.Equal(t, original.Committer.Name, replayed.Committer.Name)
}

func TestRefUpdateAndLookup(t *testing.T) {
	dir := newTestRepo(t)
	gw, err := Open(dir)
	require.NoError(t, err)
	defer gw.Close()
	ctx := context.Background()

	head := Hash(runGit(t, dir, "rev-parse", "HEAD"))
	require.NoError(t, gw.RefUpdate(ctx, "refs/heads/topic-a", head, ZeroHash, "branchstack rewrite"))

	id, ok := gw.RefLookup(ctx, "refs/heads/topic-a")
	require.True(t, ok)
	require.Equal(t, head, id)

	_, ok = gw.RefLookup(ctx, "refs/heads/does-not-exist")
	require.False(t, ok)
}

func TestMergeBase(t *testing.T) {
	dir := newTestRepo(t)
	gw, err := Open(dir)
	require.NoError(t, err)
	defer gw.Close()
	ctx := context.Background()

	base := Hash(runGit(t, dir, "rev-parse", "HEAD"))
	runGit(t, dir, "checkout", "-q", "-b", "side")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("side\n"), 0o644))
	runGit(t, dir, "commit", "-q", "-am", "side commit")

	mb, err := gw.MergeBase(ctx, base, Hash(runGit(t, dir, "rev-parse", "HEAD")))
	require.NoError(t, err)
	require.Equal(t, base, mb)
}
