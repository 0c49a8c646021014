// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package vcsgw

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, dir, content, message string) Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte(content), 0o644))
	runGit(t, dir, "add", "file.txt")
	runGit(t, dir, "commit", "-q", "-m", message)
	return Hash(runGit(t, dir, "rev-parse", "HEAD"))
}

func TestBeginMergeCleanNonOverlapping(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "base")
	base := Hash(runGit(t, dir, "rev-parse", "HEAD"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a changed\n"), 0o644))
	runGit(t, dir, "commit", "-q", "-am", "ours")
	ours := Hash(runGit(t, dir, "rev-parse", "HEAD"))

	runGit(t, dir, "checkout", "-q", base.String())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b changed\n"), 0o644))
	runGit(t, dir, "commit", "-q", "-am", "theirs")
	theirs := Hash(runGit(t, dir, "rev-parse", "HEAD"))

	gw, err := Open(dir)
	require.NoError(t, err)
	defer gw.Close()
	ctx := context.Background()

	session, conflicts, err := gw.BeginMerge(ctx, base, ours, theirs)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	tree, err := session.Finish()
	require.NoError(t, err)
	require.NotEmpty(t, tree)
}

func TestBeginMergeConflictingEdit(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	base := commitFile(t, dir, "line\n", "base")

	ours := commitFile(t, dir, "ours version\n", "ours")

	runGit(t, dir, "checkout", "-q", base.String())
	theirs := commitFile(t, dir, "theirs version\n", "theirs")

	gw, err := Open(dir)
	require.NoError(t, err)
	defer gw.Close()
	ctx := context.Background()

	session, conflicts, err := gw.BeginMerge(ctx, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "file.txt", conflicts[0].Path)
	require.Contains(t, string(conflicts[0].Content), "<<<<<<<")

	_, err = session.Finish()
	require.Error(t, err, "Finish must refuse while a conflict is unresolved")

	require.NoError(t, session.Resolve("file.txt", []byte("resolved\n")))
	tree, err := session.Finish()
	require.NoError(t, err)
	require.NotEmpty(t, tree)

	content, ok, err := gw.ReadBlobAt(ctx, tree, "file.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "resolved\n", string(content))
}
