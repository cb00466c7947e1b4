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
    `github.com/oleiade/lane`
)

// BarrierElision removes collector barriers that a dominating access to
// the same object has already paid for.
//
// An access is elidable when an earlier access is proven to touch the very
// same object: same base after stripping casts and copies, and either a
// dominating allocation of that base or a dominating access with the same
// concrete offset. Allocations vouch for loads and stores but not for
// atomics, stores and atomics vouch for everything, loads only for other
// loads.
//
// If no safepoint can interpose between the dominating point and the
// access, the barrier disappears outright. Otherwise it is turned into a
// stub attached to each interposing safepoint, provided the access is
// simple enough to re-materialize there. Anything else keeps its barrier.
type BarrierElision struct{}

func (self BarrierElision) Apply(ctx *Context, cfg *CFG) {
    nix := indexNodes(cfg)
    var loads, stores, atomics []*IrAccess
    var loadDoms, storeDoms, atomicDoms []IrNode

    /* collect the candidates and the potential dominators per kind */
    for _, bb := range cfg.Blocks() {
        for _, v := range bb.Ins {
            switch p := v.(type) {
                case *IrAlloc: {
                    /* a fresh object needs no barriers until it escapes,
                     * but an allocation cannot vouch for an atomic */
                    loadDoms = append(loadDoms, p)
                    storeDoms = append(storeDoms, p)
                }
                case *IrAccess: {
                    switch p.Op {
                        case MemLoad: {
                            if p.Barrier & BarrierStrong != 0 && p.Barrier & BarrierNoKeepalive == 0 {
                                loads = append(loads, p)
                                loadDoms = append(loadDoms, p)
                            }
                        }
                        case MemStore: {
                            if p.Barrier & BarrierTypeMask != 0 {
                                stores = append(stores, p)
                                loadDoms = append(loadDoms, p)
                                storeDoms = append(storeDoms, p)
                                atomicDoms = append(atomicDoms, p)
                            }
                        }
                        case MemAtomic: {
                            if p.Barrier & BarrierTypeMask != 0 {
                                atomics = append(atomics, p)
                                loadDoms = append(loadDoms, p)
                                storeDoms = append(storeDoms, p)
                                atomicDoms = append(atomicDoms, p)
                            }
                        }
                    }
                }
            }
        }
    }

    /* resolve each kind against its dominators */
    self.analyze(ctx, cfg, nix, loads, loadDoms)
    self.analyze(ctx, cfg, nix, stores, storeDoms)
    self.analyze(ctx, cfg, nix, atomics, atomicDoms)
}

func (self BarrierElision) analyze(ctx *Context, cfg *CFG, nix *_NodeIndex, accs []*IrAccess, doms []IrNode) {
    for _, acc := range accs {
        if acc.State() != Required {
            continue
        }

        /* the object identity is the base after stripping aliases */
        base := stripAliases(acc.Addr)
        if base == nil {
            continue
        }

        /* first dominator in collection order wins */
        ap := nix.at(acc)
        for _, dom := range doms {
            if dom == IrNode(acc) {
                continue
            }

            /* the dominator must pin down the same object, allocations
             * match by identity, accesses by identity plus offset */
            var domBase IrNode
            if p, ok := dom.(*IrAlloc); ok {
                if IrNode(p) != base {
                    continue
                }
                if acc.offKnown() {
                    if acc.Off < 0 {
                        continue
                    }
                } else if !p.Array {
                    /* an unknown offset is still inside the object for
                     * an array allocation, nothing else */
                    continue
                }
            } else {
                p := dom.(*IrAccess)
                if !acc.offKnown() || !p.offKnown() || acc.Off < 0 {
                    continue
                }
                if domBase = stripAliases(p.Addr); domBase != base || p.Off != acc.Off {
                    continue
                }
            }

            /* block-level dominance, then intra-block order */
            dp := nix.at(dom)
            if !cfg.Dominates(dp.B, ap.B) {
                continue
            }
            if dp.B == ap.B && ap.I < dp.I {
                continue
            }

            /* safepoints are discovered relative to where the dominating
             * address is defined, not where it is used */
            db := dp.B
            if domBase != nil {
                db = nix.at(domBase).B
            }
            self.decide(ctx, acc, self.walkChain(ctx, cfg, nix, db, dom, domBase, acc))
            break
        }
    }
}

// walkChain walks the address definition chain of acc backwards, from the
// access down to the dominating definition, collecting every safepoint on
// a path between a definition and its use. The chain length is bounded,
// blowing the bound is a compiler bug by definition.
func (self BarrierElision) walkChain(ctx *Context, cfg *CFG, nix *_NodeIndex, db *BasicBlock, dom IrNode, domBase IrNode, acc *IrAccess) []*SafepointRecord {
    var recs []*SafepointRecord
    var node IrNode = acc

    /* start at the direct address input of the access */
    def := acc.Addr
    for i := 0; ; i++ {
        if !ctx.Opts.CanWalkChain(i) {
            panic("opto: address definition chain exceeds the walk bound at " + acc.String())
        }

        /* all paths from the definition to this use */
        self.scanPaths(cfg, nix, db, dom, node, def, acc, &recs)
        if _, ok := def.(*IrAlloc); ok {
            break
        }
        if def == domBase {
            break
        }
        node = def
        def = nextDef(def)
    }
    return recs
}

// scanPaths records the safepoints on every path from def to its use,
// walking the predecessor edges backwards from the use block. Blocks not
// dominated by the block defining the dominating address are pruned: any
// path through them must re-enter via that block, which re-establishes
// the address anyway.
func (self BarrierElision) scanPaths(cfg *CFG, nix *_NodeIndex, db *BasicBlock, dom IrNode, node IrNode, def IrNode, acc *IrAccess, recs *[]*SafepointRecord) {
    np := nix.at(node)
    fp := nix.at(def)

    /* same block: just the instructions in between */
    if np.B == fp.B {
        if fp.I < np.I {
            self.scanBlock(cfg, nix, np.B, dom, fp.I+1, np.I, def, acc, recs)
        }
        return
    }
    if !cfg.Dominates(fp.B, np.B) {
        return
    }

    /* the use block may be re-entered from below inside a loop, so it is
     * scanned in full elsewhere on the walk, here up to the use */
    self.scanBlock(cfg, nix, np.B, dom, 0, np.I, def, acc, recs)
    vis := make(map[int]bool)
    stk := lane.NewStack()
    for _, p := range np.B.Pred {
        stk.Push(p)
    }

    /* walk every backward path until it reaches the defining block */
    for !stk.Empty() {
        bb := stk.Pop().(*BasicBlock)
        if vis[bb.Id] {
            continue
        }
        vis[bb.Id] = true
        if !cfg.Dominates(db, bb) {
            continue
        }
        if bb == fp.B {
            self.scanBlock(cfg, nix, bb, dom, fp.I, len(bb.Ins), def, acc, recs)
            continue
        }
        self.scanBlock(cfg, nix, bb, dom, 0, len(bb.Ins), def, acc, recs)
        for _, p := range bb.Pred {
            stk.Push(p)
        }
    }
}

// scanBlock records the safepoints in bb within [from, to). Safepoints
// above the dominating access itself do not matter, the barrier was still
// armed up there.
func (self BarrierElision) scanBlock(cfg *CFG, nix *_NodeIndex, bb *BasicBlock, dom IrNode, from int, to int, def IrNode, acc *IrAccess, recs *[]*SafepointRecord) {
    dp := nix.at(dom)
    if !cfg.Dominates(dp.B, bb) {
        return
    }
    if dp.B == bb && dp.I > from {
        from = dp.I
    }
    for i := from; i < to && i < len(bb.Ins); i++ {
        if sfp, ok := bb.Ins[i].(*IrSafepoint); ok {
            *recs = append(*recs, &SafepointRecord { Sfp: sfp, Access: acc, Def: def })
        }
    }
}

// decide turns the collected safepoints into a verdict for the access.
func (self BarrierElision) decide(ctx *Context, acc *IrAccess, recs []*SafepointRecord) {
    /* no interposing safepoint, the barrier simply disappears */
    if len(recs) == 0 {
        if !ctx.Opts.DomElision {
            return
        }
        acc.resolve(DominatorElided)
        if ctx.Stats != nil {
            ctx.Stats.Elision(acc.Op, DominatorElided)
        }
        return
    }

    /* the stub must be able to re-materialize the access: a concrete
     * offset that fits the stub immediate, off a full object pointer */
    ok := ctx.Opts.SafepointAttachedBarriers &&
        acc.offKnown() && acc.offShort() && !acc.Derived

    /* anything else keeps its barrier, the safepoints are discarded */
    if !ok {
        acc.resolve(Bailout)
        if ctx.Stats != nil {
            ctx.Stats.Elision(acc.Op, Bailout)
        }
        return
    }

    /* register the stub with every interposing safepoint */
    acc.resolve(SafepointAttachedElided)
    for _, r := range recs {
        r.Sfp.attach(r)
        if ctx.Stats != nil {
            ctx.Stats.SafepointAttach()
        }
    }
    if ctx.Stats != nil {
        ctx.Stats.Elision(acc.Op, SafepointAttachedElided)
    }
}
