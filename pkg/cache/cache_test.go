// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"path/filepath"
	"testing"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/branchstack/pkg/vcsgw"
)

type fakeResolver map[string]vcsgw.Hash

func (f fakeResolver) RevParse(topic string) (vcsgw.Hash, bool) {
	v, ok := f[topic]
	return v, ok
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	_, ok := c.Lookup("a")
	assert.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "branchstack-cache")
	c := &Cache{entries: linkedhashmap.New()}
	c.Update(map[string]vcsgw.Hash{"a": "aaaa", "b": "bbbb"})
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	oid, ok := loaded.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, vcsgw.Hash("aaaa"), oid)
}

func TestValidateFailsOnModifiedBranch(t *testing.T) {
	c := &Cache{entries: linkedhashmap.New()}
	c.Update(map[string]vcsgw.Hash{"a": "cached-oid"})
	resolver := fakeResolver{"a": "different-oid"}

	err := c.Validate(resolver, map[string]bool{"a": true}, false)
	var modified *ErrBranchWasModified
	require.ErrorAs(t, err, &modified)
	assert.Equal(t, "a", modified.Topic)
}

func TestValidatePassesWithForce(t *testing.T) {
	c := &Cache{entries: linkedhashmap.New()}
	c.Update(map[string]vcsgw.Hash{"a": "cached-oid"})
	resolver := fakeResolver{"a": "different-oid"}

	err := c.Validate(resolver, map[string]bool{"a": true}, true)
	assert.NoError(t, err)
}

func TestValidateIgnoresTopicsOutsideScope(t *testing.T) {
	c := &Cache{entries: linkedhashmap.New()}
	c.Update(map[string]vcsgw.Hash{"a": "cached-oid"})
	resolver := fakeResolver{"a": "different-oid"}

	err := c.Validate(resolver, map[string]bool{"b": true}, false)
	assert.NoError(t, err)
}

func TestValidateTolerantOfDeletedBranch(t *testing.T) {
	c := &Cache{entries: linkedhashmap.New()}
	c.Update(map[string]vcsgw.Hash{"a": "cached-oid"})
	resolver := fakeResolver{}

	err := c.Validate(resolver, map[string]bool{"a": true}, false)
	assert.NoError(t, err)
}

func TestUpdateCarriesOverUntouchedTopics(t *testing.T) {
	c := &Cache{entries: linkedhashmap.New()}
	c.Update(map[string]vcsgw.Hash{"a": "a1", "b": "b1"})
	c.Update(map[string]vcsgw.Hash{"a": "a2"})

	a, _ := c.Lookup("a")
	b, _ := c.Lookup("b")
	assert.Equal(t, vcsgw.Hash("a2"), a)
	assert.Equal(t, vcsgw.Hash("b1"), b)
}

func TestUpdateDropsZeroOID(t *testing.T) {
	c := &Cache{entries: linkedhashmap.New()}
	c.Update(map[string]vcsgw.Hash{"a": "a1"})
	c.Update(map[string]vcsgw.Hash{"a": vcsgw.ZeroHash})

	_, ok := c.Lookup("a")
	assert.False(t, ok)
}

