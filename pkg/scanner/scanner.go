// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package scanner walks a commit range and produces the ordered
// CommitRecord list (and, when asked, the inter-topic dependency
// graph) that the rest of branchstack is built from.
package scanner

import (
	"context"
	"fmt"

	"github.com/antgroup/branchstack/pkg/depgraph"
	"github.com/antgroup/branchstack/pkg/subject"
	"github.com/antgroup/branchstack/pkg/vcsgw"
)

// Direction controls whether the scan also builds the dependency
// graph. Both directions return commits in original (oldest-first)
// range order — invariant 2 of the data model requires intra-topic
// order to be preserved regardless of which pass produced the list.
type Direction int

const (
	// Forward scans for the plain commit list only: no graph is
	// built, and every commit is included regardless of tag.
	Forward Direction = iota
	// Reverse additionally builds the DependencyGraph and, unless
	// includeOthers is set, omits untagged commits from the list.
	Reverse
)

// CommitRecord is one commit in the scanned range, immutable once produced.
type CommitRecord struct {
	ID              vcsgw.Hash
	Topic           *string
	DeclaredParents []subject.ParentEdge
	// Subject is the original, untrimmed first line of the message.
	Subject string
	// TrimmedSubject has the tagged word removed (equal to Subject
	// when the commit carries no tag); the Replay Engine uses it when
	// rewriting a commit's message under the tag-retention policy.
	TrimmedSubject string
	FullMessage    string
	Author         vcsgw.Identity
	Committer      vcsgw.Identity
	Tree           vcsgw.Hash
	Parents        []vcsgw.Hash
}

// HasTopic reports whether the commit carries any tag, including an
// explicit empty one.
func (c CommitRecord) HasTopic() bool { return c.Topic != nil }

// TopicName returns the commit's topic, or "" if it has none.
func (c CommitRecord) TopicName() string {
	if c.Topic == nil {
		return ""
	}
	return *c.Topic
}

// Options configures a scan.
type Options struct {
	Direction      Direction
	Prefix, Suffix string
	IncludeOthers  bool
}

// Scan walks base..tip and returns its commits in oldest-first order,
// along with the dependency graph when dir is Reverse.
func Scan(ctx context.Context, gw *vcsgw.Gateway, base, tip vcsgw.Hash, opt Options) ([]CommitRecord, *depgraph.Graph, error) {
	ids, err := gw.RevList(ctx, "--reverse", fmt.Sprintf("%s..%s", base, tip))
	if err != nil {
		return nil, nil, fmt.Errorf("scanner: list range %s..%s: %w", base.Short(), tip.Short(), err)
	}

	var graph *depgraph.Graph
	if opt.Direction == Reverse {
		graph = depgraph.New()
	}

	records := make([]CommitRecord, 0, len(ids))
	for _, id := range ids {
		commit, err := gw.CommitByID(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("scanner: read commit %s: %w", id.Short(), err)
		}
		parsed := subject.Parse(commit.Subject, opt.Prefix, opt.Suffix)
		// An explicit empty tag ("[]") parses as HasTopic() with an
		// empty name; invariant 1 (§3) groups it with "no tag at all"
		// for scan-inclusion and graph purposes, reserving the
		// Some("") vs None distinction for forward+include-others
		// callers that want to tell the two apart.
		hasRealTopic := parsed.HasTopic() && parsed.TopicName() != ""

		if graph != nil && hasRealTopic {
			graph.Ensure(parsed.TopicName())
			for _, p := range parsed.Parents {
				graph.AddEdge(parsed.TopicName(), p.Topic, p.KeepTag)
			}
		}

		if !hasRealTopic && opt.Direction == Reverse && !opt.IncludeOthers {
			continue
		}

		rec := CommitRecord{
			ID:             commit.ID,
			Subject:        commit.Subject,
			TrimmedSubject: parsed.Trimmed,
			FullMessage:    commit.Message,
			Author:         commit.Author,
			Committer:      commit.Committer,
			Tree:           commit.Tree,
			Parents:        commit.Parents,
		}
		if parsed.HasTopic() {
			t := parsed.TopicName()
			rec.Topic = &t
			rec.DeclaredParents = parsed.Parents
		}
		records = append(records, rec)
	}
	return records, graph, nil
}
