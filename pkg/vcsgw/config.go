// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package vcsgw

import "context"

// Config reads a single-valued git config key, returning def if the
// key is unset (git config --get exits non-zero in that case, which
// is not itself an error branchstack cares about).
func (g *Gateway) Config(ctx context.Context, key, def string) string {
	out, err := g.git(ctx, "config", "--get", key)
	if err != nil {
		return def
	}
	return out
}

// ConfigBool reads a boolean git config key.
func (g *Gateway) ConfigBool(ctx context.Context, key string, def bool) bool {
	out, err := g.git(ctx, "config", "--type=bool", "--get", key)
	if err != nil {
		return def
	}
	return out == "true"
}
