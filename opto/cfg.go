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

    `github.com/oleiade/lane`
)

// BasicBlock is a straight-line run of instructions ended by a single
// terminator. Freq is an execution frequency estimate, filled in from the
// loop nest when the frontend leaves it at zero.
type BasicBlock struct {
    Id   int
    Freq float64
    Ins  []IrNode
    Pred []*BasicBlock
    Term IrTerminator
}

// CFG is the control flow graph with its derived structures: the DFS
// numbering, the dominator tree, the loop nest. They are rebuilt together
// by Rebuild and must not be used across graph mutations.
type CFG struct {
    Root        *BasicBlock
    Depth       map[int]int
    PreOrder    map[int]int
    DominatedBy map[int]*BasicBlock
    DominatorOf map[int][]*BasicBlock
    Loops       *LoopTree
    nodes       int
}

func BuildCFG(root *BasicBlock) *CFG {
    cfg := new(CFG)
    cfg.Root = root
    cfg.Rebuild()
    return cfg
}

// Rebuild recomputes the predecessor lists and every derived structure
// from the successor edges.
func (self *CFG) Rebuild() {
    bbs := make([]*BasicBlock, 0, 16)

    /* repair the predecessor lists */
    self.PostOrder(func(bb *BasicBlock) {
        bb.Pred = bb.Pred[:0]
        bbs = append(bbs, bb)
    })
    for _, bb := range bbs {
        for it := bb.Term.Successors(); it.Next(); {
            sb := it.Block()
            sb.Pred = append(sb.Pred, bb)
        }
    }

    /* dominator tree, with the DFS numbering as a by-product */
    buildDominatorTree(self)

    /* depth of every block in the dominator tree */
    self.Depth = make(map[int]int, len(bbs))
    self.Depth[self.Root.Id] = 0
    q := lane.NewQueue()
    q.Enqueue(self.Root)
    for !q.Empty() {
        bb := q.Dequeue().(*BasicBlock)
        for _, dom := range self.DominatorOf[bb.Id] {
            self.Depth[dom.Id] = self.Depth[bb.Id] + 1
            q.Enqueue(dom)
        }
    }

    /* loop nest, then frequency estimates from the nesting depth */
    self.Loops = buildLoopTree(self)
    for _, bb := range bbs {
        if bb.Freq == 0 {
            bb.Freq = freqOf(self.Loops.DepthOf(bb))
        }
    }
}

// PostOrder visits every reachable block in DFS post-order.
func (self *CFG) PostOrder(fn func(*BasicBlock)) {
    vis := make(map[int]bool)
    var walk func(bb *BasicBlock)

    /* DFS on the successor edges */
    walk = func(bb *BasicBlock) {
        vis[bb.Id] = true
        for it := bb.Term.Successors(); it.Next(); {
            if sb := it.Block(); !vis[sb.Id] {
                walk(sb)
            }
        }
        fn(bb)
    }
    walk(self.Root)
}

// Blocks returns every reachable block in DFS pre-order, which is the
// canonical collection order of the analyses.
func (self *CFG) Blocks() []*BasicBlock {
    ret := make([]*BasicBlock, 0, len(self.PreOrder))
    self.PostOrder(func(bb *BasicBlock) { ret = append(ret, bb) })
    sort.Slice(ret, func(i int, j int) bool {
        return self.PreOrder[ret[i].Id] < self.PreOrder[ret[j].Id]
    })
    return ret
}

// Dominates checks whether p dominates q in the current dominator tree.
// Every block dominates itself.
func (self *CFG) Dominates(p *BasicBlock, q *BasicBlock) bool {
    for q != nil && self.Depth[q.Id] > self.Depth[p.Id] {
        q = self.DominatedBy[q.Id]
    }
    return q != nil && q.Id == p.Id
}

func freqOf(depth int) float64 {
    f := 1.0
    for i := 0; i < depth; i++ {
        f *= 10.0
    }
    return f
}
