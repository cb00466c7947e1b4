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
    `sort`
)

// Loop is a natural loop: a dominator back edge target plus every block
// that can reach the back edge without passing through the header. Loops
// sharing a header are merged into one.
type Loop struct {
    Header    *BasicBlock
    PreHeader *BasicBlock
    Parent    *Loop
    Depth     int
    body      map[int]bool
}

func (self *Loop) Size() int {
    return len(self.body)
}

func (self *Loop) Contains(bb *BasicBlock) bool {
    return self.body[bb.Id]
}

// LoopTree is the loop nest of a graph, smallest loops first.
type LoopTree struct {
    loops []*Loop
    inner map[int]*Loop
}

func (self *LoopTree) Loops() []*Loop {
    return self.loops
}

// InnermostOf returns the smallest loop containing bb, nil outside of
// any loop.
func (self *LoopTree) InnermostOf(bb *BasicBlock) *Loop {
    return self.inner[bb.Id]
}

// DepthOf returns the loop nesting depth of bb, zero outside of any loop.
func (self *LoopTree) DepthOf(bb *BasicBlock) int {
    if lp := self.inner[bb.Id]; lp != nil {
        return lp.Depth
    }
    return 0
}

func buildLoopTree(cfg *CFG) *LoopTree {
    loops := make([]*Loop, 0, 4)
    heads := make(map[int]*Loop)

    /* find the back edges, a successor edge into a dominator */
    for _, bb := range cfg.Blocks() {
        for it := bb.Term.Successors(); it.Next(); {
            hb := it.Block()
            if !cfg.Dominates(hb, bb) {
                continue
            }

            /* loops with the same header are one loop */
            lp := heads[hb.Id]
            if lp == nil {
                lp = &Loop { Header: hb, body: map[int]bool { hb.Id: true } }
                heads[hb.Id] = lp
                loops = append(loops, lp)
            }

            /* flood the body backwards from the latch */
            st := []*BasicBlock { bb }
            for len(st) > 0 {
                nb := st[len(st)-1]
                st = st[:len(st)-1]
                if lp.body[nb.Id] {
                    continue
                }
                lp.body[nb.Id] = true
                st = append(st, nb.Pred...)
            }
        }
    }

    /* smallest loops first, ties broken by header DFS order */
    sort.Slice(loops, func(i int, j int) bool {
        if len(loops[i].body) != len(loops[j].body) {
            return len(loops[i].body) < len(loops[j].body)
        }
        return cfg.PreOrder[loops[i].Header.Id] < cfg.PreOrder[loops[j].Header.Id]
    })

    /* the first loop claiming a block is its innermost one */
    inner := make(map[int]*Loop)
    for _, lp := range loops {
        for id := range lp.body {
            if inner[id] == nil {
                inner[id] = lp
            }
        }
    }

    /* parent: the next bigger loop containing the header */
    for i, lp := range loops {
        for _, up := range loops[i+1:] {
            if up != lp && up.Contains(lp.Header) {
                lp.Parent = up
                break
            }
        }
    }

    /* nesting depth from the parent chain */
    for _, lp := range loops {
        d := 1
        for p := lp.Parent; p != nil; p = p.Parent {
            d++
        }
        lp.Depth = d
    }

    /* pre-header: the single predecessor of the header outside the body */
    for _, lp := range loops {
        nb := 0
        var pre *BasicBlock
        for _, p := range lp.Header.Pred {
            if !lp.Contains(p) && (pre == nil || pre.Id != p.Id) {
                nb++
                pre = p
            }
        }
        if nb == 1 {
            lp.PreHeader = pre
        }
    }
    return &LoopTree { loops: loops, inner: inner }
}
