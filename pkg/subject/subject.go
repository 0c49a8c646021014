// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package subject parses the topic tag and declared parent topics out
// of a commit subject line, using the configurable affix pair read
// from git config (branchstack.subjectPrefixPrefix/Suffix).
package subject

import "strings"

// ParentEdge is one declared dependency of a topic on another, as
// written in a "[topic:parent1:+parent2]" tag.
type ParentEdge struct {
	Topic   string
	KeepTag bool
}

// Parsed is the result of parsing one subject line.
type Parsed struct {
	// Topic is nil when the subject carries no recognizable tag at
	// all; it is a non-nil pointer to "" for an explicit empty tag
	// ("[]  subject"), which callers distinguish from "no tag".
	Topic   *string
	Parents []ParentEdge
	// Trimmed is the subject with the leading tagged word removed.
	// Equal to the original subject when there is no tag.
	Trimmed string
}

// HasTopic reports whether p carries any tag, including an explicit
// empty one.
func (p Parsed) HasTopic() bool { return p.Topic != nil }

// TopicName returns the parsed topic name, or "" if there is none.
func (p Parsed) TopicName() string {
	if p.Topic == nil {
		return ""
	}
	return *p.Topic
}

// Parse extracts the topic tag and parent edges from subject, using
// prefix/suffix as the tag's opening and closing affixes.
func Parse(subjectLine, prefix, suffix string) Parsed {
	first, rest, hasRest := splitFirstWord(subjectLine)
	if !hasRest {
		return Parsed{Trimmed: subjectLine}
	}
	if !strings.HasPrefix(first, prefix) || !strings.HasSuffix(first, suffix) {
		return Parsed{Trimmed: subjectLine}
	}
	// A tag word must be at least as long as prefix+suffix combined, so
	// the two affixes never overlap on the same characters; a word of
	// exactly that length ("[]" with prefix="[" suffix="]") is the
	// explicit empty tag.
	if len(first) < len(prefix)+len(suffix) {
		return Parsed{Trimmed: subjectLine}
	}

	body := first[len(prefix) : len(first)-len(suffix)]
	segments := strings.Split(body, ":")

	topic := segments[0]
	var parents []ParentEdge
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		keepTag := false
		if strings.HasPrefix(seg, "+") {
			keepTag = true
			seg = seg[1:]
		}
		if seg == "" {
			continue
		}
		parents = append(parents, ParentEdge{Topic: seg, KeepTag: keepTag})
	}

	return Parsed{
		Topic:   &topic,
		Parents: parents,
		Trimmed: rest,
	}
}

// splitFirstWord splits s into its first whitespace-delimited word and
// the remainder, trimmed of the separating whitespace. hasRest is
// false when s has no whitespace run at all (a single word, or empty).
func splitFirstWord(s string) (first, rest string, hasRest bool) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, "", false
	}
	first = s[:i]
	rest = strings.TrimLeft(s[i:], " \t")
	return first, rest, true
}
