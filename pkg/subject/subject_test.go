// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package subject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultAffixes(t *testing.T) {
	cases := []struct {
		name     string
		subject  string
		hasTopic bool
		topic    string
		parents  []ParentEdge
		trimmed  string
	}{
		{"simple tag", "[a] a1", true, "a", nil, "a1"},
		{"no tag, plain prefix word", "WIP commit", false, "", nil, "WIP commit"},
		{"no whitespace at all", "justoneword", false, "", nil, "justoneword"},
		{"forward dependency", "[a:b] a", true, "a", []ParentEdge{{Topic: "b"}}, "a"},
		{"keep-tag parent", "[a:+b] subject a", true, "a", []ParentEdge{{Topic: "b", KeepTag: true}}, "subject a"},
		{"multiple parents", "[a:b:+c] subject a", true, "a", []ParentEdge{{Topic: "b"}, {Topic: "c", KeepTag: true}}, "subject a"},
		{"empty segment ignored", "[a::b] subject a", true, "a", []ParentEdge{{Topic: "b"}}, "subject a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Parse(tc.subject, "[", "]")
			require.Equal(t, tc.hasTopic, p.HasTopic())
			if tc.hasTopic {
				assert.Equal(t, tc.topic, *p.Topic)
			}
			assert.Equal(t, tc.parents, p.Parents)
			assert.Equal(t, tc.trimmed, p.Trimmed)
		})
	}
}

func TestParseExplicitEmptyTag(t *testing.T) {
	p := Parse("[] a3", "[", "]")
	require.NotNil(t, p.Topic)
	assert.Equal(t, "", *p.Topic)
	assert.True(t, p.HasTopic())
	assert.Equal(t, "a3", p.Trimmed)
}

func TestParseNoTagWhenAffixesMissing(t *testing.T) {
	p := Parse("plain subject line", "[", "]")
	assert.False(t, p.HasTopic())
	assert.Nil(t, p.Parents)
	assert.Equal(t, "plain subject line", p.Trimmed)
}

func TestParseCustomAffixes(t *testing.T) {
	cases := []struct {
		subject string
		topic   string
		parents []ParentEdge
	}{
		{"a: a1", "a", nil},
		{"b: b1", "b", nil},
		{"c:a: c1", "c", []ParentEdge{{Topic: "a"}}},
	}
	for _, tc := range cases {
		p := Parse(tc.subject, "", ":")
		require.NotNil(t, p.Topic)
		assert.Equal(t, tc.topic, *p.Topic)
		assert.Equal(t, tc.parents, p.Parents)
	}
}

func TestParseSingleWordSubjectHasNoTag(t *testing.T) {
	p := Parse("[a]", "[", "]")
	assert.False(t, p.HasTopic())
	assert.Equal(t, "[a]", p.Trimmed)
}
