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
	"github.com/zelide/zelide/arena"
	"github.com/zelide/zelide/internal/opts"
	"github.com/zelide/zelide/opto"
)

// Analyze builds the block graph rooted at root and runs the whole barrier
// analysis pipeline over it: loop barrier hoisting, dominating barrier
// elision, then stub liveness. The returned context holds the per-anchor
// live sets, the graph carries the verdicts on each access.
func Analyze(root *opto.BasicBlock, options ...Option) (*opto.Context, *opto.CFG) {
	return AnalyzeWithStats(root, nil, options...)
}

// AnalyzeWithStats is Analyze with a stats observer attached, every
// decision the passes make is reported to it as it happens.
func AnalyzeWithStats(root *opto.BasicBlock, stats opto.Stats, options ...Option) (*opto.Context, *opto.CFG) {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}
	ctx := opto.NewContext(arena.New(arena.DefaultSize), o)
	ctx.Stats = stats
	cfg := opto.BuildCFG(root)
	opto.EarlyAnalysis(ctx, cfg)
	opto.LateAnalysis(ctx, cfg)
	return ctx, cfg
}
