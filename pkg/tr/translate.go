// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package tr holds the message catalog used by user-facing CLI output.
// Adapted from the teacher's pkg/tr: trimmed to a single embedded
// en-US catalog, since branchstack ships one language rather than
// detecting the user's locale.
package tr

import (
	"embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed languages/en-US.toml
var langFS embed.FS

var catalog = sync.OnceValue(func() map[string]string {
	m := make(map[string]string)
	fd, err := langFS.Open("languages/en-US.toml")
	if err != nil {
		return m
	}
	defer fd.Close() // nolint
	_, _ = toml.NewDecoder(fd).Decode(&m)
	return m
})

// W looks up k in the message catalog, returning k unchanged if absent.
func W(k string) string {
	if v, ok := catalog()[k]; ok {
		return v
	}
	return k
}

// Sprintf formats W(format) with a.
func Sprintf(format string, a ...any) string {
	return fmt.Sprintf(W(format), a...)
}
