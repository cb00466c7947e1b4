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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zelide/zelide/opto"
)

func TestAnalyze_Pipeline(t *testing.T) {
	b0 := &opto.BasicBlock{Id: 0}
	al := &opto.IrAlloc{R: 1}
	sfp := &opto.IrSafepoint{In: []opto.Reg{1}}
	ld := &opto.IrAccess{Op: opto.MemLoad, R: 2, A: 1, Addr: al, Off: 8, Barrier: opto.BarrierStrong}
	b0.Ins = []opto.IrNode{al, sfp, ld}
	b0.Term = &opto.IrReturn{R: []opto.Reg{2}}

	stats := opto.NewStatsCounter()
	ctx, cfg := AnalyzeWithStats(b0, stats)

	require.Equal(t, opto.SafepointAttachedElided, ld.State())
	require.Len(t, sfp.Records(), 1)
	require.Equal(t, 1, stats.Attachments)
	require.NotNil(t, ctx.LiveAt(sfp))
	require.Len(t, cfg.Blocks(), 1)
}

func TestAnalyze_Options(t *testing.T) {
	b0 := &opto.BasicBlock{Id: 0}
	al := &opto.IrAlloc{R: 1}
	ld := &opto.IrAccess{Op: opto.MemLoad, R: 2, A: 1, Addr: al, Off: 8, Barrier: opto.BarrierStrong}
	b0.Ins = []opto.IrNode{al, ld}
	b0.Term = &opto.IrReturn{R: []opto.Reg{2}}

	Analyze(b0, WithDomElision(false))
	require.Equal(t, opto.Required, ld.State())

	require.Panics(t, func() { WithMaxChainLength(-1) })

	old := SetMaxChainLength(64)
	require.Equal(t, 64, SetMaxChainLength(old))
}
