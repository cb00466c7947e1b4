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
    `github.com/zelide/zelide/arena`
    `github.com/zelide/zelide/internal/opts`
    `github.com/zelide/zelide/regmask`
)

type Pass interface {
    Apply(*Context, *CFG)
}

type PassDescriptor struct {
    Pass Pass
    Name string
}

// EarlyPasses run on the machine-independent graph, before scheduling and
// register allocation.
var EarlyPasses = [...]PassDescriptor {
    { Name: "Loop Barrier Hoisting", Pass: new(BarrierHoisting) },
}

// LatePasses run on the scheduled graph. The elision verdicts must be in
// place before liveness picks its anchors, the order here is load-bearing.
var LatePasses = [...]PassDescriptor {
    { Name: "Dominating Barrier Elision", Pass: new(BarrierElision) },
    { Name: "Barrier Stub Liveness",      Pass: new(StubLiveness) },
}

// Context carries everything one analysis run needs: the memory provider,
// the options, an optional stats observer, and the side tables the passes
// produce. Contexts are single-use and confined to one goroutine, nothing
// in here is global.
type Context struct {
    Mem   *arena.Arena
    Opts  opts.Options
    Stats Stats
    live  []*regmask.RegMask
}

func NewContext(mem *arena.Arena, opt opts.Options) *Context {
    return &Context {
        Mem:  mem,
        Opts: opt,
    }
}

// LiveAt returns the live register set recorded at an anchor instruction,
// nil when the instruction is not an anchor or liveness has not run.
func (self *Context) LiveAt(v IrNode) *regmask.RegMask {
    if i := v.Vid(); i < len(self.live) {
        return self.live[i]
    }
    return nil
}

func (self *Context) liveRef(v IrNode) *regmask.RegMask {
    i := v.Vid()
    if self.live[i] == nil {
        self.live[i] = regmask.New(self.Mem)
    }
    return self.live[i]
}

// numberNodes assigns the stable instruction numbers, in block DFS order,
// instructions before the terminator. Re-numbering invalidates every side
// table built from the previous numbering.
func numberNodes(cfg *CFG) {
    i := 0
    for _, bb := range cfg.Blocks() {
        for _, v := range bb.Ins {
            v.setvid(i)
            i++
        }
        bb.Term.setvid(i)
        i++
    }
    cfg.nodes = i
}

// EarlyAnalysis runs the machine-independent passes.
func EarlyAnalysis(ctx *Context, cfg *CFG) {
    for _, p := range EarlyPasses {
        p.Pass.Apply(ctx, cfg)
    }
}

// LateAnalysis numbers the instructions and runs the late passes over the
// scheduled graph.
func LateAnalysis(ctx *Context, cfg *CFG) {
    numberNodes(cfg)
    ctx.live = make([]*regmask.RegMask, cfg.nodes)
    for _, p := range LatePasses {
        p.Pass.Apply(ctx, cfg)
    }
}
