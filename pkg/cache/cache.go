// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cache is the on-disk Branch Cache: a record of the object id
// branchstack last wrote to each topic's reference, used to detect
// external modification before silently overwriting a branch.
package cache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/antgroup/branchstack/pkg/vcsgw"
)

// FileName is the cache's name under the VCS's private directory.
const FileName = "branchstack-cache"

// ErrBranchWasModified is returned by Validate when a generated
// branch's current tip no longer matches what branchstack last wrote,
// and --force was not given.
type ErrBranchWasModified struct {
	Topic string
}

func (e *ErrBranchWasModified) Error() string {
	return fmt.Sprintf("branch %q was modified since the last run (pass --force to overwrite)", e.Topic)
}

// Cache is the parsed on-disk state: an insertion-ordered topic -> oid
// map, so carry-over preserves original relative order.
type Cache struct {
	entries *linkedhashmap.Map // topic -> vcsgw.Hash
}

// Load reads the cache file at path. A missing file is an empty cache,
// not an error — the first run of branchstack has none yet.
func Load(path string) (*Cache, error) {
	c := &Cache{entries: linkedhashmap.New()}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		topic, oid, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("cache: malformed line %q", line)
		}
		c.entries.Put(topic, vcsgw.Hash(oid))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", path, err)
	}
	return c, nil
}

// Lookup returns the cached oid for topic, if any.
func (c *Cache) Lookup(topic string) (vcsgw.Hash, bool) {
	v, ok := c.entries.Get(topic)
	if !ok {
		return "", false
	}
	return v.(vcsgw.Hash), true
}

// RefResolver looks up a topic's live branch tip. Satisfied by a thin
// wrapper around vcsgw.Gateway.RefLookup bound to "refs/heads/<topic>".
type RefResolver interface {
	RevParse(topic string) (vcsgw.Hash, bool)
}

// Validate checks every cached entry for a topic in producing (the set
// of topics this run will write) against its live reference. A branch
// that exists, is in scope, and no longer matches its cached oid fails
// validation unless force is set; with force, Validate returns nil and
// does not report which topics were modified, so any notice is up to
// the caller.
func (c *Cache) Validate(resolver RefResolver, producing map[string]bool, force bool) error {
	it := c.entries.Iterator()
	for it.Next() {
		topic := it.Key().(string)
		cachedOID := it.Value().(vcsgw.Hash)
		if !producing[topic] {
			continue
		}
		current, exists := resolver.RevParse(topic)
		if !exists {
			continue // deleted branch will simply be recreated
		}
		if current != cachedOID && !force {
			return &ErrBranchWasModified{Topic: topic}
		}
	}
	return nil
}

// Update merges a run's in-memory topic -> new-oid map into the
// cache: topics present in both take the new oid, topics only on disk
// are carried over unchanged, and a zero new oid drops the entry.
func (c *Cache) Update(updates map[string]vcsgw.Hash) {
	for topic, oid := range updates {
		if oid.IsZero() {
			c.entries.Remove(topic)
			continue
		}
		c.entries.Put(topic, oid)
	}
}

// Save writes the cache back to path in "topic<SP>oid\n" order.
func (c *Cache) Save(path string) error {
	var b strings.Builder
	it := c.entries.Iterator()
	for it.Next() {
		fmt.Fprintf(&b, "%s %s\n", it.Key().(string), it.Value().(vcsgw.Hash))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	return nil
}
