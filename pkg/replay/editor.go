// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kballard/go-shellquote"

	"github.com/antgroup/branchstack/pkg/process"
	"github.com/antgroup/branchstack/pkg/vcsgw"
)

const defaultEditor = "vi"

// resolveEditorCommand picks the editor command: GIT_EDITOR, then
// EDITOR, then core.editor, then a built-in fallback. VISUAL is not
// consulted.
func resolveEditorCommand(ctx context.Context, gw *vcsgw.Gateway) string {
	if e, ok := os.LookupEnv("GIT_EDITOR"); ok && e != "" {
		return e
	}
	if e, ok := os.LookupEnv("EDITOR"); ok && e != "" {
		return e
	}
	if e := gw.Config(ctx, "core.editor", ""); e != "" {
		return e
	}
	return defaultEditor
}

// ErrEditor reports that the external editor failed outright (a
// nonzero exit, or a command line that wouldn't even parse).
type ErrEditor struct {
	Cause error
}

func (e *ErrEditor) Error() string { return fmt.Sprintf("editor failed: %v", e.Cause) }
func (e *ErrEditor) Unwrap() error { return e.Cause }

// launchEditor materializes content at a scratch file named path
// (relative path preserved for editor ergonomics — syntax
// highlighting, relative includes in commit hooks, etc.), runs the
// configured editor on it, and returns the file's contents afterward.
func launchEditor(ctx context.Context, gw *vcsgw.Gateway, scratchDir, relPath string, content []byte) ([]byte, error) {
	full := filepath.Join(scratchDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("replay: prepare scratch file: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return nil, fmt.Errorf("replay: write scratch file: %w", err)
	}

	editor := resolveEditorCommand(ctx, gw)
	args, err := shellquote.Split(editor)
	if err != nil || len(args) == 0 {
		return nil, &ErrEditor{Cause: fmt.Errorf("cannot parse editor command %q", editor)}
	}
	name, rest := args[0], append(args[1:], full)

	r := process.New(ctx, &process.RunOpts{Inherit: true}, name, rest...)
	if err := r.Run(); err != nil {
		return nil, &ErrEditor{Cause: err}
	}

	edited, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("replay: read back scratch file: %w", err)
	}
	return edited, nil
}
