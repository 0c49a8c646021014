// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"github.com/antgroup/branchstack/pkg/subject"
	"github.com/antgroup/branchstack/pkg/vcsgw"
)

// ErrMergeConflict is raised when the user declines to resolve a
// conflict, or declares an edited result unsuccessful.
type ErrMergeConflict struct {
	Reason string
}

func (e *ErrMergeConflict) Error() string { return "merge conflict: " + e.Reason }

// CandidateDependency is a commit the Conflict Diagnostic flags as a
// plausible missing dependency declaration: it touched the same path
// as the conflict, sits between the base and the conflicting commit,
// and is not in the topic's closure.
type CandidateDependency struct {
	ID      vcsgw.Hash
	Topic   *string // nil for an untagged commit
	Subject string
}

// findCandidateDependencies enumerates commits in base..beforeConflict
// that touched path, excluding only the ones whose topic is already in
// closure. An untagged commit is never in closure (it has no topic to
// be keyed by), so it is always reported — the "forgot to declare a
// dependency" case this diagnostic exists to catch just as often
// involves an untagged commit as a tagged one.
func findCandidateDependencies(ctx context.Context, gw *vcsgw.Gateway, base, beforeConflict vcsgw.Hash, path, prefix, suffix string, closure map[string]bool) ([]CandidateDependency, error) {
	if beforeConflict.IsZero() {
		return nil, nil
	}
	ids, err := gw.RevList(ctx, fmt.Sprintf("%s..%s", base, beforeConflict), "--", path)
	if err != nil {
		return nil, fmt.Errorf("replay: scan for candidate dependencies: %w", err)
	}
	var candidates []CandidateDependency
	for _, id := range ids {
		c, err := gw.CommitByID(ctx, id)
		if err != nil {
			return nil, err
		}
		parsed := subject.Parse(c.Subject, prefix, suffix)
		var topic *string
		if parsed.HasTopic() {
			t := parsed.TopicName()
			if closure[t] {
				continue
			}
			topic = &t
		}
		candidates = append(candidates, CandidateDependency{ID: c.ID, Topic: topic, Subject: c.Subject})
	}
	return candidates, nil
}

// hasConflictMarkers reports whether content still contains any of
// git's conflict markers at the start of a line.
func hasConflictMarkers(content []byte) bool {
	for _, line := range bytes.Split(content, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("<<<<<<<")) ||
			bytes.HasPrefix(line, []byte("=======")) ||
			bytes.HasPrefix(line, []byte(">>>>>>>")) {
			return true
		}
	}
	return false
}

// Prompter asks the user yes/no questions. In a non-interactive
// session (stdin not a terminal) it always answers no, matching the
// spec's "fail the run" behavior when there is no one to ask.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

// NewPrompter builds a Prompter bound to stdin/stderr, color-aware.
func NewPrompter() *Prompter {
	return &Prompter{in: os.Stdin, out: os.Stderr}
}

func (p *Prompter) Confirm(question string) bool {
	if f, ok := p.in.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		return false
	}
	fmt.Fprint(p.out, ansi.Color(question+" [y/N] ", "yellow"))
	reader := bufio.NewReader(p.in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
