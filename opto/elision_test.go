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

package opto

import (
    `testing`

    `github.com/stretchr/testify/require`

    `github.com/zelide/zelide/arena`
    `github.com/zelide/zelide/internal/opts`
)

func runElision(cfg *CFG) *Context {
    ctx := mkctx()
    ctx.Stats = NewStatsCounter()
    LateAnalysis(ctx, cfg)
    return ctx
}

func TestBarrierElision_AllocVouchesSameBlock(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    st := mkstore(2, 1, al, 0)
    ld := mkload(3, 1, al, 8)
    ins(b0, al, mkop("param", 2), st, ld)
    ret(b0, 3)
    cfg := BuildCFG(b0)
    ctx := runElision(cfg)

    require.Equal(t, DominatorElided, st.State())
    require.Equal(t, DominatorElided, ld.State())
    require.True(t, st.Elided())
    require.Equal(t, 2, ctx.Stats.(*StatsCounter).Elisions[DominatorElided])
}

func TestBarrierElision_AllocDoesNotVouchAtomic(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    at := mkatomic(3, 2, 1, al, 0)
    ins(b0, al, mkop("param", 2), at)
    ret(b0, 3)
    runElision(BuildCFG(b0))

    require.Equal(t, Required, at.State())
}

func TestBarrierElision_StoreVouchesAtomic(t *testing.T) {
    b0 := mkblock(0)
    base := mkop("param", 1)
    st := mkstore(2, 1, base, 16)
    at := mkatomic(3, 2, 1, base, 16)
    ins(b0, base, mkop("param", 2), st, at)
    ret(b0, 3)
    runElision(BuildCFG(b0))

    require.Equal(t, Required, st.State())
    require.Equal(t, DominatorElided, at.State())
}

func TestBarrierElision_LoadDoesNotVouchStore(t *testing.T) {
    b0 := mkblock(0)
    base := mkop("param", 1)
    ld := mkload(2, 1, base, 8)
    st := mkstore(2, 1, base, 8)
    ins(b0, base, ld, st)
    ret(b0)
    runElision(BuildCFG(b0))

    /* the earlier load pins the object for the later load only */
    require.Equal(t, Required, ld.State())
    require.Equal(t, Required, st.State())
}

func TestBarrierElision_LoadVouchesLoad(t *testing.T) {
    b0 := mkblock(0)
    base := mkop("param", 1)
    ld1 := mkload(2, 1, base, 8)
    ld2 := mkload(3, 1, base, 8)
    off := mkload(4, 1, base, 16)
    ins(b0, base, ld1, ld2, off)
    ret(b0)
    runElision(BuildCFG(b0))

    require.Equal(t, Required, ld1.State())
    require.Equal(t, DominatorElided, ld2.State())

    /* a different offset is a different field, no elision */
    require.Equal(t, Required, off.State())
}

func TestBarrierElision_SafepointAttached(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    sfp := mksfp(1)
    ld := mkload(2, 1, al, 8)
    ins(b0, al, sfp, ld)
    ret(b0, 2)
    cfg := BuildCFG(b0)
    ctx := runElision(cfg)

    require.Equal(t, SafepointAttachedElided, ld.State())
    require.Len(t, sfp.Records(), 1)
    require.Same(t, ld, sfp.Records()[0].Access)
    require.Same(t, sfp, sfp.Records()[0].Sfp)
    require.Equal(t, IrNode(al), sfp.Records()[0].Def)
    require.Equal(t, 1, ctx.Stats.(*StatsCounter).Attachments)
}

func TestBarrierElision_SafepointPerArm(t *testing.T) {
    b0, b1, b2, b3 := mkblock(0), mkblock(1), mkblock(2), mkblock(3)
    al := &IrAlloc { R: 1 }
    sfp1 := mksfp(1)
    sfp2 := mksfp(1)
    ld := mkload(2, 1, al, 8)
    ins(b0, al)
    branch(b0, 1, b1, b2)
    ins(b1, sfp1)
    jmp(b1, b3)
    ins(b2, sfp2)
    jmp(b2, b3)
    ins(b3, ld)
    ret(b3, 2)
    cfg := BuildCFG(b0)
    ctx := runElision(cfg)

    /* every interposing safepoint gets its own stub */
    require.Equal(t, SafepointAttachedElided, ld.State())
    require.Len(t, sfp1.Records(), 1)
    require.Len(t, sfp2.Records(), 1)
    require.Equal(t, 2, ctx.Stats.(*StatsCounter).Attachments)
}

func TestBarrierElision_DerivedBailsOut(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    sfp := mksfp(1)
    ld := mkload(2, 1, al, 8)
    ld.Derived = true
    ins(b0, al, sfp, ld)
    ret(b0, 2)
    ctx := runElision(BuildCFG(b0))

    /* a derived pointer cannot be re-materialized at the safepoint */
    require.Equal(t, Bailout, ld.State())
    require.False(t, ld.Elided())
    require.Empty(t, sfp.Records())
    require.Equal(t, 1, ctx.Stats.(*StatsCounter).Elisions[Bailout])
}

func TestBarrierElision_WideOffsetBailsOut(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    sfp := mksfp(1)
    ld := mkload(2, 1, al, 1 << 16)
    ins(b0, al, sfp, ld)
    ret(b0, 2)
    runElision(BuildCFG(b0))

    /* the offset does not fit the stub immediate */
    require.Equal(t, Bailout, ld.State())
    require.Empty(t, sfp.Records())
}

func TestBarrierElision_UnknownOffset(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    ld := mkload(2, 1, al, OffUnknown)
    ins(b0, al, ld)
    ret(b0, 2)
    runElision(BuildCFG(b0))

    /* an unknown offset may point past a plain object */
    require.Equal(t, Required, ld.State())

    b1 := mkblock(0)
    ar := &IrAlloc { R: 1, Array: true }
    lv := mkload(2, 1, ar, OffUnknown)
    ins(b1, ar, lv)
    ret(b1, 2)
    runElision(BuildCFG(b1))

    /* inside an array allocation it cannot escape the object */
    require.Equal(t, DominatorElided, lv.State())
}

func TestBarrierElision_NegativeOffset(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    ld := mkload(2, 1, al, -8)
    ins(b0, al, ld)
    ret(b0, 2)
    runElision(BuildCFG(b0))

    require.Equal(t, Required, ld.State())
}

func TestBarrierElision_WeakLoadKeepsBarrier(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    ld := mkload(2, 1, al, 8)
    ld.Barrier = BarrierWeak
    nk := mkload(3, 1, al, 8)
    nk.Barrier = BarrierStrong | BarrierNoKeepalive
    ins(b0, al, ld, nk)
    ret(b0)
    runElision(BuildCFG(b0))

    require.Equal(t, Required, ld.State())
    require.Equal(t, Required, nk.State())
}

func TestBarrierElision_CastChain(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    c1 := &IrCast { R: 2, V: 1, From: al }
    c2 := &IrCopy { R: 3, V: 2, From: c1 }
    sfp := mksfp(3)
    ld := mkload(4, 3, c2, 8)
    ins(b0, al, c1, c2, sfp, ld)
    ret(b0, 4)
    runElision(BuildCFG(b0))

    /* casts and copies are transparent, the safepoint between the copy
     * and the load is still found */
    require.Equal(t, SafepointAttachedElided, ld.State())
    require.Len(t, sfp.Records(), 1)
}

func TestBarrierElision_ChainBoundPanics(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    c1 := &IrCast { R: 2, V: 1, From: al }
    c2 := &IrCast { R: 3, V: 2, From: c1 }
    c3 := &IrCast { R: 4, V: 3, From: c2 }
    ld := mkload(5, 4, c3, 8)
    ins(b0, al, c1, c2, c3, ld)
    ret(b0, 5)
    cfg := BuildCFG(b0)

    ctx := NewContext(arena.New(1 << 22), opts.Options {
        MaxChainLength:           2,
        DomElision:               true,
        SafepointAttachedBarriers: true,
    })
    require.Panics(t, func() { LateAnalysis(ctx, cfg) })
}

func TestBarrierElision_TriviallyElidedSkipped(t *testing.T) {
    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    ld := mkload(2, 1, al, 8)
    ld.MarkTriviallyElided()
    ins(b0, al, ld)
    ret(b0, 2)
    runElision(BuildCFG(b0))

    /* already resolved by the frontend, the pass must not touch it */
    require.Equal(t, TriviallyElided, ld.State())
}

func TestBarrierElision_ResolveTwicePanics(t *testing.T) {
    ld := mkload(2, 1, nil, 8)
    ld.resolve(DominatorElided)
    require.Panics(t, func() { ld.resolve(Bailout) })
}

func TestBarrierElision_OptionsGating(t *testing.T) {
    opt := opts.GetDefaultOptions()
    opt.DomElision = false

    b0 := mkblock(0)
    al := &IrAlloc { R: 1 }
    ld := mkload(2, 1, al, 8)
    ins(b0, al, ld)
    ret(b0, 2)
    cfg := BuildCFG(b0)
    LateAnalysis(NewContext(arena.New(1 << 22), opt), cfg)

    /* elision disabled, the access keeps its barrier untouched */
    require.Equal(t, Required, ld.State())

    opt = opts.GetDefaultOptions()
    opt.SafepointAttachedBarriers = false

    b1 := mkblock(0)
    a2 := &IrAlloc { R: 1 }
    sfp := mksfp(1)
    l2 := mkload(2, 1, a2, 8)
    ins(b1, a2, sfp, l2)
    ret(b1, 2)
    LateAnalysis(NewContext(arena.New(1 << 22), opt), BuildCFG(b1))

    /* stubs disabled, an interposing safepoint forces the bailout */
    require.Equal(t, Bailout, l2.State())
    require.Empty(t, sfp.Records())
}

func TestBarrierElision_SafepointAboveDominatorIgnored(t *testing.T) {
    b0 := mkblock(0)
    base := mkop("param", 1)
    sfp := mksfp(1)
    st := mkstore(2, 1, base, 8)
    ld := mkload(3, 1, base, 8)
    ins(b0, base, sfp, st, ld)
    ret(b0, 3)
    runElision(BuildCFG(b0))

    /* the safepoint sits above the dominating store, the barrier there
     * already repaid it */
    require.Equal(t, DominatorElided, ld.State())
    require.Empty(t, sfp.Records())
}

func TestBarrierElision_LoopReentry(t *testing.T) {
    b0, b1, b2 := mkblock(0), mkblock(1), mkblock(2)
    base := mkop("param", 1)
    st := mkstore(2, 1, base, 8)
    sfp := mksfp(1)
    ld := mkload(3, 1, base, 8)
    ins(b0, base, st)
    jmp(b0, b1)
    ins(b1, ld, sfp)
    branch(b1, 3, b1, b2)
    ret(b2, 3)
    runElision(BuildCFG(b0))

    /* the back edge re-enters the load block through the safepoint, so
     * the barrier cannot simply vanish */
    require.Equal(t, SafepointAttachedElided, ld.State())
    require.Len(t, sfp.Records(), 1)
}

func TestBarrierHoisting_LoopInvariantBase(t *testing.T) {
    ctx := mkctx()
    ctx.Stats = NewStatsCounter()
    b0, b1, b2 := mkblock(0), mkblock(1), mkblock(2)
    base := mkop("param", 1)
    ld := mkload(2, 1, base, 8)
    ins(b0, base)
    jmp(b0, b1)
    ins(b1, ld)
    branch(b1, 2, b1, b2)
    ret(b2, 2)
    cfg := BuildCFG(b0)
    EarlyAnalysis(ctx, cfg)

    require.NotZero(t, ld.Barrier & BarrierHoistCandidate)
    require.Equal(t, 1, ctx.Stats.(*StatsCounter).Hoists)
}

func TestBarrierHoisting_Negative(t *testing.T) {
    ctx := mkctx()

    /* base defined inside the loop body, nothing to hoist to */
    b0, b1, b2, b3 := mkblock(0), mkblock(1), mkblock(2), mkblock(3)
    base := mkop("load_base", 1)
    ld := mkload(2, 1, base, 8)
    ins(b0, mkop("param", 9))
    jmp(b0, b1)
    jmp(b1, b2)
    ins(b2, base, ld)
    branch(b2, 2, b1, b3)
    ret(b3, 2)
    EarlyAnalysis(ctx, BuildCFG(b0))
    require.Zero(t, ld.Barrier & BarrierHoistCandidate)

    /* not in a loop at all */
    c0 := mkblock(0)
    cb := mkop("param", 1)
    cl := mkload(2, 1, cb, 8)
    ins(c0, cb, cl)
    ret(c0, 2)
    EarlyAnalysis(ctx, BuildCFG(c0))
    require.Zero(t, cl.Barrier & BarrierHoistCandidate)

    /* unknown offset stays put */
    d0, d1, d2 := mkblock(0), mkblock(1), mkblock(2)
    db := mkop("param", 1)
    dl := mkload(2, 1, db, OffUnknown)
    ins(d0, db)
    jmp(d0, d1)
    ins(d1, dl)
    branch(d1, 2, d1, d2)
    ret(d2, 2)
    EarlyAnalysis(ctx, BuildCFG(d0))
    require.Zero(t, dl.Barrier & BarrierHoistCandidate)
}

func TestNodeIndex_ForeignNodePanics(t *testing.T) {
    b0 := mkblock(0)
    ins(b0, mkop("param", 1))
    ret(b0, 1)
    nix := indexNodes(BuildCFG(b0))
    require.Panics(t, func() { nix.at(mkop("other", 2)) })
}
