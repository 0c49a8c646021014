// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator resolves the working branch and base commit,
// scans the range, validates the requested topics, and drives the
// Replay Engine over each one in first-appearance order, with the
// Branch Cache's validate/update bracketing the whole run.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/sirupsen/logrus"

	"github.com/antgroup/branchstack/pkg/cache"
	"github.com/antgroup/branchstack/pkg/depgraph"
	"github.com/antgroup/branchstack/pkg/replay"
	"github.com/antgroup/branchstack/pkg/scanner"
	"github.com/antgroup/branchstack/pkg/vcsgw"
)

// ErrTopicNotFound is raised when a topic named on the command line
// never appears in the scanned range.
type ErrTopicNotFound struct {
	Topic     string
	Base, Tip vcsgw.Hash
}

func (e *ErrTopicNotFound) Error() string {
	return fmt.Sprintf("topic %q not found in range %s..%s", e.Topic, e.Base.Short(), e.Tip.Short())
}

// ErrInvalidRange is raised when --range's value has no "..".
type ErrInvalidRange struct {
	Spec string
}

func (e *ErrInvalidRange) Error() string {
	return fmt.Sprintf("invalid commit range %q", e.Spec)
}

// ErrCurrentBranch is raised when a requested topic names the branch
// currently checked out, which would overwrite it out from under the
// user mid-command.
type ErrCurrentBranch struct {
	Topic string
}

func (e *ErrCurrentBranch) Error() string {
	return fmt.Sprintf("refusing to rewrite %q: it is the currently checked out branch", e.Topic)
}

// Options configures a Run.
type Options struct {
	// Topics restricts produced branches to these names; empty means all.
	Topics []string
	Force  bool
	Policy replay.Policy
	// Range, if non-empty, is an explicit "<a>..<b>" overriding the
	// working-branch/upstream autodetection.
	Range string
}

// ParseRange splits an explicit "<a>..<b>" range spec.
func ParseRange(spec string) (from, to string, err error) {
	from, to, ok := strings.Cut(spec, "..")
	if !ok || from == "" || to == "" {
		return "", "", &ErrInvalidRange{Spec: spec}
	}
	return from, to, nil
}

// Summary reports one topic's outcome for the Orchestrator's final
// printout.
type Summary struct {
	Topic       string
	Ref         string
	New         vcsgw.Hash
	Updated     bool
	CommitCount int
}

// Run executes one full branchstack invocation against gw.
func Run(ctx context.Context, gw *vcsgw.Gateway, opt Options, log *logrus.Entry, out io.Writer) (summaries []Summary, runErr error) {
	base, tip, err := resolveRange(ctx, gw, opt.Range)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"base": base.Short(), "tip": tip.Short()}).Debug("resolved range")

	prefix := gw.Config(ctx, "branchstack.subjectPrefixPrefix", "[")
	suffix := gw.Config(ctx, "branchstack.subjectPrefixSuffix", "]")

	records, graph, err := scanner.Scan(ctx, gw, base, tip, scanner.Options{
		Direction: scanner.Reverse,
		Prefix:    prefix,
		Suffix:    suffix,
	})
	if err != nil {
		return nil, err
	}

	orderedTopics := firstAppearanceOrder(records)

	selected := orderedTopics
	if len(opt.Topics) > 0 {
		known := make(map[string]bool, len(orderedTopics))
		for _, t := range orderedTopics {
			known[t] = true
		}
		for _, t := range opt.Topics {
			if !known[t] {
				return nil, &ErrTopicNotFound{Topic: t, Base: base, Tip: tip}
			}
		}
		selected = opt.Topics
	}

	if current, ok := gw.CurrentBranch(ctx); ok {
		for _, t := range selected {
			if t == current {
				return nil, &ErrCurrentBranch{Topic: t}
			}
		}
	}

	gitDir, err := gw.GitDir(ctx)
	if err != nil {
		return nil, err
	}
	cachePath := filepath.Join(gitDir, cache.FileName)
	store, err := cache.Load(cachePath)
	if err != nil {
		return nil, err
	}

	producing := make(map[string]bool, len(selected))
	for _, t := range selected {
		producing[t] = true
	}
	if opt.Force {
		for topic := range producing {
			cachedOID, ok := store.Lookup(topic)
			if !ok {
				continue
			}
			if current, exists := gw.RefLookup(ctx, "refs/heads/"+topic); exists && current != cachedOID {
				fmt.Fprintf(out, "note: branch %q was modified since the last run, overwriting due to --force\n", topic)
			}
		}
	}
	if err := store.Validate(refResolver{ctx, gw}, producing, opt.Force); err != nil {
		return nil, err
	}

	scratchDir, err := os.MkdirTemp("", "branchstack-*")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	resolutions := replay.NewResolutionStore(gitDir)
	engine := replay.NewEngine(gw, resolutions, scratchDir, replay.Options{Policy: opt.Policy, Prefix: prefix, Suffix: suffix}, log)
	defer engine.Wait()

	updates := make(map[string]vcsgw.Hash)

	defer func() {
		if saveErr := store.Save(cachePath); saveErr != nil && runErr == nil {
			runErr = saveErr
		}
	}()

	for _, topic := range selected {
		closure, missing := depgraph.Closure(graph, topic, false)
		for _, m := range missing {
			fmt.Fprintf(out, "warning: topic %q declares dependency on %q, which was not found in range %s..%s\n", m.From, m.Topic, base.Short(), tip.Short())
		}

		closureSet := make(map[string]bool)
		cit := closure.Iterator()
		for cit.Next() {
			closureSet[cit.Key().(string)] = true
		}
		var ordered []scanner.CommitRecord
		for _, r := range records {
			if closureSet[r.TopicName()] {
				ordered = append(ordered, r)
			}
		}

		result, err := engine.ReplayTopic(ctx, topic, closure, ordered, base)
		if err != nil {
			store.Update(updates)
			runErr = err
			return summaries, runErr
		}
		updates[topic] = result.New
		summaries = append(summaries, Summary{
			Topic:       topic,
			Ref:         "refs/heads/" + topic,
			New:         result.New,
			Updated:     result.Updated,
			CommitCount: result.CommitCount,
		})
		fmt.Fprintf(out, "%s: %s (%d commit(s))\n", topic, result.New.Short(), result.CommitCount)

		commitIDs, err := gw.RevList(ctx, fmt.Sprintf("%s..%s", base, result.New))
		if err != nil {
			store.Update(updates)
			runErr = fmt.Errorf("orchestrator: list commits for %s: %w", topic, err)
			return summaries, runErr
		}
		for _, id := range commitIDs {
			c, err := gw.CommitByID(ctx, id)
			if err != nil {
				store.Update(updates)
				runErr = fmt.Errorf("orchestrator: read commit %s: %w", id.Short(), err)
				return summaries, runErr
			}
			fmt.Fprintf(out, "\t%s %s\n", id.Short(), replay.TruncateSubject(c.Subject))
		}
	}

	store.Update(updates)
	return summaries, runErr
}

// resolveRange determines (base, tip) per spec.md §4.7 step 1-2: an
// explicit range wins; otherwise a live rebase's recorded state;
// otherwise the current branch's upstream. base is then normalized to
// merge-base(base, HEAD) so the range stays well-defined even if
// upstream has advanced past the point the user branched from.
func resolveRange(ctx context.Context, gw *vcsgw.Gateway, rangeSpec string) (base, tip vcsgw.Hash, err error) {
	head, err := gw.RevParse(ctx, "HEAD")
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: resolve HEAD: %w", err)
	}

	var baseRev string
	tip = head
	switch {
	case rangeSpec != "":
		fromRev, toRev, parseErr := ParseRange(rangeSpec)
		if parseErr != nil {
			return "", "", parseErr
		}
		baseRev = fromRev
		toID, revErr := gw.RevParse(ctx, toRev)
		if revErr != nil {
			return "", "", fmt.Errorf("orchestrator: resolve range end %q: %w", toRev, revErr)
		}
		tip = toID
	default:
		if state, ok := gw.DetectRebase(ctx); ok {
			baseRev = state.Onto
		} else if _, ok := gw.CurrentBranch(ctx); ok {
			baseRev = "@{upstream}"
		} else {
			return "", "", fmt.Errorf("orchestrator: HEAD is detached and no --range was given")
		}
	}

	baseID, err := gw.RevParse(ctx, baseRev)
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: resolve base %q: %w", baseRev, err)
	}
	mergeBase, err := gw.MergeBase(ctx, baseID, head)
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: merge-base: %w", err)
	}
	return mergeBase, tip, nil
}

// firstAppearanceOrder returns every topic seen in records, ordered by
// the index of its first-appearing commit (spec.md §4.7 step 4).
func firstAppearanceOrder(records []scanner.CommitRecord) []string {
	seen := linkedhashmap.New()
	for _, r := range records {
		if !r.HasTopic() {
			continue
		}
		topic := r.TopicName()
		if _, ok := seen.Get(topic); !ok {
			seen.Put(topic, true)
		}
	}
	out := make([]string, 0, seen.Size())
	it := seen.Iterator()
	for it.Next() {
		out = append(out, it.Key().(string))
	}
	return out
}

// refResolver adapts vcsgw.Gateway to cache.RefResolver, resolving a
// topic to its refs/heads/<topic> tip.
type refResolver struct {
	ctx context.Context
	gw  *vcsgw.Gateway
}

func (r refResolver) RevParse(topic string) (vcsgw.Hash, bool) {
	return r.gw.RefLookup(r.ctx, "refs/heads/"+topic)
}
