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
    `fmt`
)

// Pos locates an instruction inside its block.
type Pos struct {
    B *BasicBlock
    I int
}

func pos(bb *BasicBlock, i int) Pos {
    return Pos { bb, i }
}

func (self Pos) String() string {
    return fmt.Sprintf("bb_%d.ins[%d]", self.B.Id, self.I)
}

// _NodeIndex maps every instruction of a graph to its position. Built once
// per pass, it makes the dominance checks between instructions O(1) after
// the block-level query.
type _NodeIndex struct {
    pos map[IrNode]Pos
}

func indexNodes(cfg *CFG) *_NodeIndex {
    ni := &_NodeIndex {
        pos: make(map[IrNode]Pos, 64),
    }
    cfg.PostOrder(func(bb *BasicBlock) {
        for i, v := range bb.Ins {
            ni.pos[v] = pos(bb, i)
        }
    })
    return ni
}

func (self *_NodeIndex) at(v IrNode) Pos {
    if p, ok := self.pos[v]; ok {
        return p
    }
    panic("opto: instruction does not belong to the graph: " + v.String())
}
