// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package vcsgw

import (
	"context"
	"fmt"
	"strings"
)

// RevParse resolves rev (a branch name, tag, "HEAD", "<ref>@{upstream}",
// a range endpoint, anything git itself understands) to an object id.
func (g *Gateway) RevParse(ctx context.Context, rev string) (Hash, error) {
	out, err := g.git(ctx, "rev-parse", "--verify", "--quiet", rev)
	if err != nil {
		return "", fmt.Errorf("vcsgw: rev-parse %s: %w", rev, err)
	}
	return Hash(out), nil
}

// RefLookup is RevParse without the "unknown revision" noise: it
// reports ok=false rather than an error when rev does not resolve,
// which is the common case callers actually want to branch on (does
// this branch already exist, does an upstream exist, ...).
func (g *Gateway) RefLookup(ctx context.Context, rev string) (id Hash, ok bool) {
	id, err := g.RevParse(ctx, rev)
	if err != nil {
		return "", false
	}
	return id, true
}

// SymbolicRef reads the target a symbolic ref (e.g. "HEAD") points at,
// such as "refs/heads/main". ok is false if name is not a symbolic ref.
func (g *Gateway) SymbolicRef(ctx context.Context, name string) (target string, ok bool) {
	out, err := g.git(ctx, "symbolic-ref", "--quiet", name)
	if err != nil {
		return "", false
	}
	return out, true
}

// RefUpdate points ref at newID, recording reason in the reflog.
// oldID, if non-zero, is enforced as a compare-and-swap guard so a
// concurrent change to ref between read and write is caught rather
// than silently overwritten.
func (g *Gateway) RefUpdate(ctx context.Context, ref string, newID Hash, oldID Hash, reason string) error {
	args := []string{"update-ref", "-m", reason, ref, string(newID)}
	if !oldID.IsZero() {
		args = append(args, string(oldID))
	}
	if _, err := g.git(ctx, args...); err != nil {
		return fmt.Errorf("vcsgw: update-ref %s: %w", ref, err)
	}
	return nil
}

// RefDelete removes ref entirely.
func (g *Gateway) RefDelete(ctx context.Context, ref string) error {
	if _, err := g.git(ctx, "update-ref", "-d", ref); err != nil {
		return fmt.Errorf("vcsgw: update-ref -d %s: %w", ref, err)
	}
	return nil
}

// ForEachRef lists ref names under prefix (e.g. "refs/heads/").
func (g *Gateway) ForEachRef(ctx context.Context, prefix string) ([]string, error) {
	out, err := g.gitOutput(ctx, "for-each-ref", "--format=%(refname)", prefix)
	if err != nil {
		return nil, fmt.Errorf("vcsgw: for-each-ref %s: %w", prefix, err)
	}
	trimmed := strings.TrimRight(string(out), "\n")
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// MergeBase returns the best common ancestor of a and b.
func (g *Gateway) MergeBase(ctx context.Context, a, b Hash) (Hash, error) {
	out, err := g.git(ctx, "merge-base", string(a), string(b))
	if err != nil {
		return "", fmt.Errorf("vcsgw: merge-base %s %s: %w", a.Short(), b.Short(), err)
	}
	return Hash(out), nil
}

// RevList runs `git rev-list <args...>` and returns the resulting ids
// in the order git printed them (newest-first unless args say otherwise).
func (g *Gateway) RevList(ctx context.Context, args ...string) ([]Hash, error) {
	full := append([]string{"rev-list"}, args...)
	out, err := g.gitOutput(ctx, full...)
	if err != nil {
		return nil, fmt.Errorf("vcsgw: rev-list: %w", err)
	}
	trimmed := strings.TrimRight(string(out), "\n")
	if trimmed == "" {
		return nil, nil
	}
	lines := strings.Split(trimmed, "\n")
	ids := make([]Hash, len(lines))
	for i, l := range lines {
		ids[i] = Hash(l)
	}
	return ids, nil
}

// CurrentBranch returns the short name of the checked-out branch, or
// ok=false when HEAD is detached.
func (g *Gateway) CurrentBranch(ctx context.Context) (name string, ok bool) {
	target, ok := g.SymbolicRef(ctx, "HEAD")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(target, "refs/heads/"), true
}
