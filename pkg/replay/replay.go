// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package replay is the Replay Engine: it rebuilds one topic's branch
// by sequentially three-way-merging its selected commits onto a
// synthetic base, preserving authorship and (critically) committer
// identity so repeated runs are idempotent. It owns the Conflict
// Diagnostic, which intercepts merge conflicts to suggest missing
// dependency declarations and drive the edit/confirm loop.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/sirupsen/logrus"

	"github.com/antgroup/branchstack/pkg/scanner"
	"github.com/antgroup/branchstack/pkg/vcsgw"
)

// Policy is the tag-retention policy controlling which replayed
// commits keep their original "[topic]" subject line.
type Policy int

const (
	// PolicyNone strips tags from every commit (the default).
	PolicyNone Policy = iota
	// PolicyDependencies keeps tags on dependency commits, stripping
	// only commits belonging to the target topic itself.
	PolicyDependencies
	// PolicyAll keeps every commit's original subject verbatim.
	PolicyAll
)

// Options configures an Engine.
type Options struct {
	Policy         Policy
	Prefix, Suffix string
}

// Confirmer asks the user a yes/no question, returning their answer.
// Satisfied by *Prompter; replaceable in tests via SetConfirmer.
type Confirmer interface {
	Confirm(question string) bool
}

// Engine replays topics. One Engine is reused across every topic in a
// run, so its progress reporter and resolution store persist.
type Engine struct {
	gw          *vcsgw.Gateway
	resolutions *ResolutionStore
	prompt      Confirmer
	progress    *progressReporter
	scratchDir  string
	opt         Options
	log         *logrus.Entry
}

// NewEngine builds a Replay Engine. scratchDir holds conflict-resolution
// working files for the lifetime of the run; the caller owns cleaning
// it up (typically a temp directory created once per invocation).
func NewEngine(gw *vcsgw.Gateway, resolutions *ResolutionStore, scratchDir string, opt Options, log *logrus.Entry) *Engine {
	return &Engine{
		gw:          gw,
		resolutions: resolutions,
		prompt:      NewPrompter(),
		progress:    newProgressReporter(),
		scratchDir:  scratchDir,
		opt:         opt,
		log:         log,
	}
}

// Wait blocks until any in-flight progress bars have finished drawing.
func (e *Engine) Wait() { e.progress.wait() }

// SetConfirmer overrides the default stdin-driven Confirmer.
func (e *Engine) SetConfirmer(c Confirmer) { e.prompt = c }

// Result summarizes one topic's replay.
type Result struct {
	Topic       string
	Prev        vcsgw.Hash
	New         vcsgw.Hash
	Updated     bool
	CommitCount int
}

// ReplayTopic rebuilds refs/heads/<topic> from commits (already
// filtered to the topic's closure, in original scan order) on top of
// base. closure maps every topic in scope to its edge's keepTag flag.
func (e *Engine) ReplayTopic(ctx context.Context, topic string, closure *linkedhashmap.Map, commits []scanner.CommitRecord, base vcsgw.Hash) (Result, error) {
	closureSet := make(map[string]bool)
	keepTagOf := make(map[string]bool)
	it := closure.Iterator()
	for it.Next() {
		t := it.Key().(string)
		closureSet[t] = true
		keepTagOf[t] = it.Value().(bool)
	}

	bar := e.progress.startTopic(topic, len(commits))
	head := base
	for _, c := range commits {
		tree, err := e.replayOne(ctx, base, head, c, closureSet)
		if err != nil {
			return Result{}, err
		}
		message := e.renderMessage(c, topic, keepTagOf)
		newID, err := e.gw.NewCommit(ctx, tree, []vcsgw.Hash{head}, c.Author, c.Committer, message)
		if err != nil {
			return Result{}, fmt.Errorf("replay: create commit for %s: %w", c.ID.Short(), err)
		}
		head = newID
		e.progress.advance(bar, c.TrimmedSubject)
		e.log.WithFields(logrus.Fields{"topic": topic, "source": c.ID.Short(), "new": head.Short()}).Debug("replayed commit")
	}

	ref := "refs/heads/" + topic
	prev, exists := e.gw.RefLookup(ctx, ref)
	oldID := prev
	if !exists {
		if err := e.gw.RefUpdate(ctx, ref, base, vcsgw.ZeroHash, "git-branchstack rewrite"); err != nil {
			return Result{}, fmt.Errorf("replay: initialize %s: %w", ref, err)
		}
		oldID = base
	}

	result := Result{Topic: topic, Prev: oldID, New: head, CommitCount: len(commits)}
	if head != oldID {
		if err := e.gw.RefUpdate(ctx, ref, head, oldID, "git-branchstack rewrite"); err != nil {
			return Result{}, fmt.Errorf("replay: update %s: %w", ref, err)
		}
		result.Updated = true
	}
	return result, nil
}

// replayOne three-way-merges one commit's own change onto head,
// resolving any conflicts through the Conflict Diagnostic, and
// returns the resulting tree. runBase is the overall run's synthetic
// base (the range start the Conflict Diagnostic scans from).
func (e *Engine) replayOne(ctx context.Context, runBase, head vcsgw.Hash, c scanner.CommitRecord, closureSet map[string]bool) (vcsgw.Hash, error) {
	var mergeBase vcsgw.Hash
	if len(c.Parents) > 0 {
		mergeBase = c.Parents[0]
	}

	session, conflicts, err := e.gw.BeginMerge(ctx, mergeBase, head, c.ID)
	if err != nil {
		return "", fmt.Errorf("replay: merge %s: %w", c.ID.Short(), err)
	}

	for _, cf := range conflicts {
		resolved, err := e.resolveConflict(ctx, cf, runBase, mergeBase, c, closureSet)
		if err != nil {
			session.Abort()
			return "", err
		}
		if err := session.Resolve(cf.Path, resolved); err != nil {
			session.Abort()
			return "", err
		}
	}

	tree, err := session.Finish()
	if err != nil {
		return "", fmt.Errorf("replay: finish merge for %s: %w", c.ID.Short(), err)
	}
	return tree, nil
}

func (e *Engine) resolveConflict(ctx context.Context, cf vcsgw.Conflict, runBase, beforeConflict vcsgw.Hash, c scanner.CommitRecord, closureSet map[string]bool) ([]byte, error) {
	if resolved, ok := e.resolutions.Lookup(cf.Content); ok {
		e.log.WithField("path", cf.Path).Debug("replayed recorded resolution")
		return resolved, nil
	}

	candidates, err := findCandidateDependencies(ctx, e.gw, runBase, beforeConflict, cf.Path, e.opt.Prefix, e.opt.Suffix, closureSet)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "conflict in %s while replaying %s (%s)\n", cf.Path, c.ID.Short(), c.Subject)
	if len(candidates) > 0 {
		fmt.Fprintln(os.Stderr, "candidate missing dependencies:")
		for _, cand := range candidates {
			label := ""
			if cand.Topic != nil {
				label = e.opt.Prefix + *cand.Topic + e.opt.Suffix + " "
			}
			fmt.Fprintf(os.Stderr, "  %s %s%s\n", cand.ID.Short(), label, cand.Subject)
		}
	}

	if !e.prompt.Confirm("edit the conflict?") {
		return nil, &ErrMergeConflict{Reason: "user declined to resolve"}
	}

	edited, err := launchEditor(ctx, e.gw, e.scratchDir, cf.Path, cf.Content)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(edited, cf.Content) {
		fmt.Fprintln(os.Stderr, "warning: conflict file was not changed")
	}
	if hasConflictMarkers(edited) {
		fmt.Fprintln(os.Stderr, "warning: conflict markers are still present")
	}

	if !e.prompt.Confirm("merge successful?") {
		return nil, &ErrMergeConflict{Reason: "user marked resolution unsuccessful"}
	}

	if err := e.resolutions.Record(cf.Content, edited); err != nil {
		e.log.WithError(err).Warn("failed to record conflict resolution")
	}
	return edited, nil
}

// renderMessage applies the tag-retention policy to decide whether c
// keeps its original message verbatim or has its tag stripped.
func (e *Engine) renderMessage(c scanner.CommitRecord, target string, keepTagOf map[string]bool) string {
	topic := c.TopicName()
	keep := e.opt.Policy == PolicyAll ||
		(e.opt.Policy == PolicyDependencies && topic != target) ||
		keepTagOf[topic]
	if keep {
		return c.FullMessage
	}
	body := messageBody(c.FullMessage)
	if body == "" {
		return c.TrimmedSubject
	}
	return c.TrimmedSubject + "\n\n" + body
}

// messageBody returns everything after the first blank line in a
// commit message, or "" if there is none.
func messageBody(full string) string {
	if i := strings.Index(full, "\n\n"); i >= 0 {
		return full[i+2:]
	}
	return ""
}
