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
    `github.com/davecgh/go-spew/spew`
    `github.com/oleiade/lane`

    `github.com/zelide/zelide/regmask`
)

// StubLiveness computes the set of live registers at every barrier stub
// site, so the stub only has to spill what is actually in use. It is a
// plain backward dataflow fixpoint over the block graph.
//
// The live set recorded at an anchor only ever grows: each visit merges
// the current flow state into it, so whatever order the worklist drains
// in, the final sets are the same.
type StubLiveness struct{}

func (self StubLiveness) Apply(ctx *Context, cfg *CFG) {
    livein := self.run(ctx, cfg)
    if ctx.Opts.DebugDumpLiveness {
        spew.Config.SortKeys = true
        spew.Dump(livein)
    }
}

func (self StubLiveness) run(ctx *Context, cfg *CFG) map[int]*regmask.RegMask {
    livein := make(map[int]*regmask.RegMask)
    worklist := lane.NewStack()

    /* every block starts empty and gets at least one visit */
    cfg.PostOrder(func(bb *BasicBlock) {
        livein[bb.Id] = regmask.New(ctx.Mem)
        worklist.Push(bb)
    })

    /* iterate to a fixpoint */
    for !worklist.Empty() {
        bb := worklist.Pop().(*BasicBlock)
        old := livein[bb.Id]

        /* flow state at the block end is the union of the successors */
        regs := regmask.New(ctx.Mem)
        for it := bb.Term.Successors(); it.Next(); {
            regs.Union(livein[it.Block().Id])
        }
        if use, ok := bb.Term.(IrUsages); ok {
            for _, r := range use.Usages() {
                if *r != Bad {
                    regs.Insert(*r)
                }
            }
        }

        /* walk the block backwards, definitions die, uses are born */
        for i := len(bb.Ins) - 1; i >= 0; i-- {
            v := bb.Ins[i]
            if def, ok := v.(IrDefinations); ok {
                for _, r := range def.Definations() {
                    if *r != Bad {
                        regs.Remove(*r)
                    }
                }
            }
            if use, ok := v.(IrUsages); ok {
                for _, r := range use.Usages() {
                    if *r != Bad {
                        regs.Insert(*r)
                    }
                }
            }

            /* a barrier that survived elision becomes a stub at the
             * access, an attached one becomes a stub at its safepoint,
             * record the registers live across either site */
            switch p := v.(type) {
                case *IrAccess    : if self.anchors(p)   { ctx.liveRef(p).Union(regs) }
                case *IrSafepoint : if len(p.recs) > 0   { ctx.liveRef(p).Union(regs) }
            }
        }

        /* propagate a refined live-in to the predecessors */
        regs.Subtract(old)
        if !regs.IsEmpty() {
            old.Union(regs)
            for _, p := range bb.Pred {
                worklist.Push(p)
            }
        }
    }
    return livein
}

func (self StubLiveness) anchors(acc *IrAccess) bool {
    return acc.Barrier & BarrierTypeMask != 0 && !acc.Elided()
}
