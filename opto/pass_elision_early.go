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

// BarrierHoisting flags the loads whose barrier could run once before a
// loop instead of on every iteration: the address computation must be
// available at the loop entry and the load must sit on the hot path of
// the loop body. The flag is advisory, a later transform decides whether
// acting on it pays off.
type BarrierHoisting struct{}

func (self BarrierHoisting) Apply(ctx *Context, cfg *CFG) {
    nix := indexNodes(cfg)
    for _, bb := range cfg.Blocks() {
        for _, v := range bb.Ins {
            acc, ok := v.(*IrAccess)
            if !ok || acc.Op != MemLoad {
                continue
            }
            if acc.Barrier & BarrierStrong == 0 || acc.Barrier & BarrierNoKeepalive != 0 {
                continue
            }
            if !acc.offKnown() || acc.Off < 0 {
                continue
            }

            /* the address must come from outside the loop nest */
            base := stripAliases(acc.Addr)
            if base == nil {
                continue
            }

            /* find the outermost loop still entered with the address in
             * hand */
            mb := nix.at(base).B
            lp := cfg.Loops.InnermostOf(bb)
            var outer *Loop
            for lp != nil && cfg.Dominates(mb, lp.Header) {
                outer = lp
                lp = lp.Parent
            }
            if outer == nil || outer.PreHeader == nil {
                continue
            }

            /* a barrier on a cold path inside the loop is cheaper where
             * it is, leave it alone */
            if outer.PreHeader.Freq >= bb.Freq {
                continue
            }
            acc.Barrier |= BarrierHoistCandidate
            if ctx.Stats != nil {
                ctx.Stats.HoistCandidate(acc.Op)
            }
        }
    }
}
