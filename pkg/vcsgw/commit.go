// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package vcsgw

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldSep separates the fixed-width header fields of a log entry;
// chosen to never collide with ordinary commit message text the way a
// space or NUL (used as the *entry* separator by -z) would.
const fieldSep = "\x1f"

const logFormat = "%H" + fieldSep + "%T" + fieldSep + "%P" + fieldSep +
	"%an" + fieldSep + "%ae" + fieldSep + "%ad" + fieldSep +
	"%cn" + fieldSep + "%ce" + fieldSep + "%cd" + fieldSep + "%B"

const headerFieldCount = 9

// parseLogEntry parses one git log --format=logFormat record (the
// output of a single-commit `git log -1`) into a Commit.
func parseLogEntry(entry string) (*Commit, error) {
	parts := strings.SplitN(entry, fieldSep, headerFieldCount)
	if len(parts) != headerFieldCount {
		return nil, fmt.Errorf("vcsgw: malformed log entry (want %d fields, got %d)", headerFieldCount, len(parts))
	}
	id, tree, parentStr, an, ae, ad, cn, ce, cd := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6], parts[7], parts[8]
	// SplitN with headerFieldCount leaves the message appended to the
	// last captured field (cd); split it back off on the field
	// separator that follows the raw date ("<epoch> <tz>").
	cdFields := strings.SplitN(cd, fieldSep, 2)
	message := ""
	rawCd := cd
	if len(cdFields) == 2 {
		rawCd = cdFields[0]
		message = cdFields[1]
	}

	var parents []Hash
	if parentStr != "" {
		for _, p := range strings.Fields(parentStr) {
			parents = append(parents, Hash(p))
		}
	}

	author, err := parseIdentity(an, ae, ad)
	if err != nil {
		return nil, fmt.Errorf("vcsgw: parse author date: %w", err)
	}
	committer, err := parseIdentity(cn, ce, rawCd)
	if err != nil {
		return nil, fmt.Errorf("vcsgw: parse committer date: %w", err)
	}

	return &Commit{
		ID:        Hash(id),
		Tree:      Hash(tree),
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Subject:   rawSubject(message),
		Message:   message,
	}, nil
}

// rawSubject mirrors git-branchstack's own
// message.split("\n\n", maxsplit=1)[0].strip(): everything before the
// first blank line, whitespace-trimmed.
func rawSubject(message string) string {
	if i := strings.Index(message, "\n\n"); i >= 0 {
		message = message[:i]
	}
	return strings.TrimSpace(message)
}

// parseIdentity parses git's --date=raw rendering, "<unix> <+hhmm>".
func parseIdentity(name, email, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Identity{}, fmt.Errorf("unexpected raw date %q", raw)
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Identity{}, err
	}
	loc := parseFixedZone(fields[1])
	return Identity{
		Name:  name,
		Email: email,
		When:  time.Unix(secs, 0).In(loc),
		Raw:   raw,
	}, nil
}

func parseFixedZone(tz string) *time.Location {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return time.UTC
	}
	hh, errH := strconv.Atoi(tz[1:3])
	mm, errM := strconv.Atoi(tz[3:5])
	if errH != nil || errM != nil {
		return time.UTC
	}
	offset := hh*3600 + mm*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset)
}

// CommitByID reads one commit object by id, serving repeat lookups
// from the in-process cache described in SPEC_FULL.md §4.8 (the
// dependency closure walk and the conflict diagnostic's re-scan both
// tend to revisit the same commits within a single run).
func (g *Gateway) CommitByID(ctx context.Context, id Hash) (*Commit, error) {
	if c, ok := g.commits.Get(id); ok {
		return c, nil
	}
	out, err := g.gitOutput(ctx, "log", "-1", "--date=raw", "--format="+logFormat, string(id))
	if err != nil {
		return nil, fmt.Errorf("vcsgw: read commit %s: %w", id.Short(), err)
	}
	c, err := parseLogEntry(strings.TrimRight(string(out), "\n"))
	if err != nil {
		return nil, err
	}
	g.commits.Set(id, c, 1)
	g.commits.Wait()
	return c, nil
}

// NewCommit creates a new commit object with the given tree and
// parents, preserving author and committer identity (including their
// original timestamps) verbatim via GIT_*_NAME/EMAIL/DATE, and
// returns its id. message is written exactly as given (no "\n"
// appended beyond what the caller provides).
func (g *Gateway) NewCommit(ctx context.Context, tree Hash, parents []Hash, author, committer Identity, message string) (Hash, error) {
	args := []string{"commit-tree", string(tree)}
	for _, p := range parents {
		args = append(args, "-p", string(p))
	}
	env := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_AUTHOR_DATE=" + author.Raw,
		"GIT_COMMITTER_NAME=" + committer.Name,
		"GIT_COMMITTER_EMAIL=" + committer.Email,
		"GIT_COMMITTER_DATE=" + committer.Raw,
	}
	oid, err := g.gitWithEnv(ctx, env, []byte(message), args...)
	if err != nil {
		return "", fmt.Errorf("vcsgw: commit-tree: %w", err)
	}
	return Hash(oid), nil
}
