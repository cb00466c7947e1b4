/*
 * Copyright 2024 Zelide Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package zelide

import (
	"fmt"

	"github.com/zelide/zelide/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithMaxChainLength sets the maximum address definition chain length the
// elision pass is willing to walk.
//
// A well formed graph never gets anywhere near the bound, blowing it means
// the graph is cyclic or corrupted and the analysis panics. Set this
// option to "0" to disable the limit.
//
// The default value of this option is "2048".
func WithMaxChainLength(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("zelide: invalid chain length: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxChainLength = n }
	}
}

// WithDomElision enables or disables the removal of barriers proven
// redundant by a dominating access with no interposing safepoint.
//
// The default value of this option is "true".
func WithDomElision(v bool) Option {
	return func(o *opts.Options) { o.DomElision = v }
}

// WithSafepointAttachedBarriers enables or disables turning an elided
// barrier into a stub attached to the interposing safepoints.
//
// Disabling this option makes any access with a safepoint between it and
// its dominator keep the full barrier.
//
// The default value of this option is "true".
func WithSafepointAttachedBarriers(v bool) Option {
	return func(o *opts.Options) { o.SafepointAttachedBarriers = v }
}

// WithDebugDumpLiveness makes the liveness pass dump the computed live-in
// sets to stdout. Debugging aid only.
//
// The default value of this option is "false".
func WithDebugDumpLiveness(v bool) Option {
	return func(o *opts.Options) { o.DebugDumpLiveness = v }
}

// SetMaxChainLength sets the default maximum address chain length for all
// analyses from now on.
//
// This value can also be configured with the `ZELIDE_MAX_CHAIN_LENGTH`
// environment variable.
//
// Returns the old opts.MaxChainLength value.
func SetMaxChainLength(n int) int {
	n, opts.MaxChainLength = opts.MaxChainLength, n
	return n
}
