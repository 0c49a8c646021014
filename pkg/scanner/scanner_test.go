// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package scanner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/branchstack/pkg/vcsgw"
)

// initRepo creates a throwaway git repository and commits subjects in
// order, returning the base (before the first commit) and tip hashes.
func initRepo(t *testing.T, subjects ...string) (dir string, base, tip vcsgw.Hash) {
	t.Helper()
	dir = t.TempDir()
	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=tester", "GIT_AUTHOR_EMAIL=tester@example.com",
			"GIT_COMMITTER_NAME=tester", "GIT_COMMITTER_EMAIL=tester@example.com",
		)
		out, err := cmd.Output()
		require.NoError(t, err, "git %v", args)
		return string(out)
	}
	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("base\n"), 0o644))
	run("add", "file.txt")
	run("commit", "-q", "-m", "base commit")
	base = vcsgw.Hash(trimNL(run("rev-parse", "HEAD")))

	for i, s := range subjects {
		content := []byte(s + "\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), append([]byte{byte('a' + i)}, content...), 0o644))
		run("add", "file.txt")
		run("commit", "-q", "-m", s)
	}
	tip = vcsgw.Hash(trimNL(run("rev-parse", "HEAD")))
	return dir, base, tip
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func TestScanS1BasicGrouping(t *testing.T) {
	dir, base, tip := initRepo(t,
		"[a] a1", "[b] b1", "WIP commit", "[a] a2", "[] a3", "another WIP commit")
	gw, err := vcsgw.Open(dir)
	require.NoError(t, err)
	defer gw.Close()

	records, graph, err := Scan(context.Background(), gw, base, tip, Options{
		Direction: Reverse, Prefix: "[", Suffix: "]",
	})
	require.NoError(t, err)
	require.NotNil(t, graph)

	var subjects []string
	for _, r := range records {
		subjects = append(subjects, r.TrimmedSubject)
	}
	require.Equal(t, []string{"a1", "b1", "a2"}, subjects)
	require.True(t, graph.Has("a"))
	require.True(t, graph.Has("b"))
}

func TestScanForwardIncludesUntagged(t *testing.T) {
	dir, base, tip := initRepo(t, "[a] a1", "untagged")
	gw, err := vcsgw.Open(dir)
	require.NoError(t, err)
	defer gw.Close()

	records, graph, err := Scan(context.Background(), gw, base, tip, Options{
		Direction: Forward, Prefix: "[", Suffix: "]",
	})
	require.NoError(t, err)
	require.Nil(t, graph)
	require.Len(t, records, 2)
}

func TestScanS2ForwardDependencyGraph(t *testing.T) {
	dir, base, tip := initRepo(t, "[a:b] a", "[b] b")
	gw, err := vcsgw.Open(dir)
	require.NoError(t, err)
	defer gw.Close()

	_, graph, err := Scan(context.Background(), gw, base, tip, Options{
		Direction: Reverse, Prefix: "[", Suffix: "]",
	})
	require.NoError(t, err)
	parents := graph.Parents("a")
	require.Len(t, parents, 1)
	require.Equal(t, "b", parents[0].Topic)
	require.False(t, parents[0].KeepTag)
}
