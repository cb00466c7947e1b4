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
    `math`
    `sort`
    `strings`

    `github.com/zelide/zelide/regmask`
)

type Reg = regmask.Reg

const (
    Bad = regmask.Bad
)

// OffUnknown marks an access whose offset within its base object cannot
// be proven at compile time, a variable array index for example.
const OffUnknown = math.MinInt64

// Nid carries the stable instruction number. Numbers are assigned once per
// graph by the late analysis driver and index the per-instruction side
// tables, they are not positions and survive any later reordering.
type Nid struct {
    nid int
}

func (self *Nid) Vid() int {
    return self.nid
}

func (self *Nid) setvid(i int) {
    self.nid = i
}

type IrNode interface {
    fmt.Stringer
    irnode()
    Vid() int
    setvid(int)
}

func (*IrOp)        irnode() {}
func (*IrCast)      irnode() {}
func (*IrCopy)      irnode() {}
func (*IrAlloc)     irnode() {}
func (*IrAccess)    irnode() {}
func (*IrSafepoint) irnode() {}
func (*IrSwitch)    irnode() {}
func (*IrReturn)    irnode() {}

type IrUsages interface {
    IrNode
    Usages() []*Reg
}

type IrDefinations interface {
    IrNode
    Definations() []*Reg
}

// IrOp is an opaque value computation. The analyses only care about its
// registers, the mnemonic is for dumps.
type IrOp struct {
    Nid
    Op   string
    R    Reg
    Args []Reg
}

func (self *IrOp) String() string {
    nb := len(self.Args)
    args := make([]string, 0, nb)
    for _, r := range self.Args {
        args = append(args, r.String())
    }
    return fmt.Sprintf("%s = %s(%s)", self.R, self.Op, strings.Join(args, ", "))
}

func (self *IrOp) Usages() []*Reg {
    return regsliceref(self.Args)
}

func (self *IrOp) Definations() []*Reg {
    return []*Reg { &self.R }
}

// IrCast narrows or re-types a pointer without changing the object it
// points to. Casts are transparent to access identity.
type IrCast struct {
    Nid
    R    Reg
    V    Reg
    From IrNode
}

func (self *IrCast) String() string {
    return fmt.Sprintf("%s = cast %s", self.R, self.V)
}

func (self *IrCast) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrCast) Definations() []*Reg {
    return []*Reg { &self.R }
}

// IrCopy is a register-to-register move inserted by spilling. Copies are
// transparent to access identity.
type IrCopy struct {
    Nid
    R    Reg
    V    Reg
    From IrNode
}

func (self *IrCopy) String() string {
    return fmt.Sprintf("%s = copy %s", self.R, self.V)
}

func (self *IrCopy) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrCopy) Definations() []*Reg {
    return []*Reg { &self.R }
}

// IrAlloc is an object allocation. The result is a fresh, fully
// initialized object that no collector barrier has to protect until the
// next safepoint may move it.
type IrAlloc struct {
    Nid
    R     Reg
    Array bool
}

func (self *IrAlloc) String() string {
    if self.Array {
        return fmt.Sprintf("%s = alloc.array", self.R)
    }
    return fmt.Sprintf("%s = alloc", self.R)
}

func (self *IrAlloc) Definations() []*Reg {
    return []*Reg { &self.R }
}

type MemOp uint8

const (
    MemLoad MemOp = iota
    MemStore
    MemAtomic
)

func (self MemOp) String() string {
    switch self {
        case MemLoad   : return "load"
        case MemStore  : return "store"
        case MemAtomic : return "atomic"
        default        : return "???"
    }
}

// BarrierData describes the collector barrier attached to an access.
type BarrierData uint16

const (
    BarrierStrong BarrierData = 1 << iota
    BarrierWeak
    BarrierPhantom
    BarrierNoKeepalive
    BarrierNative
    BarrierHoistCandidate
)

const (
    BarrierTypeMask = BarrierStrong | BarrierWeak | BarrierPhantom
)

func (self BarrierData) String() string {
    fs := make([]string, 0, 4)
    if self & BarrierStrong != 0         { fs = append(fs, "strong") }
    if self & BarrierWeak != 0           { fs = append(fs, "weak") }
    if self & BarrierPhantom != 0        { fs = append(fs, "phantom") }
    if self & BarrierNoKeepalive != 0    { fs = append(fs, "nokeepalive") }
    if self & BarrierNative != 0         { fs = append(fs, "native") }
    if self & BarrierHoistCandidate != 0 { fs = append(fs, "hoist") }
    return strings.Join(fs, "+")
}

// ElisionState is the verdict on one access. It starts as Required and is
// resolved at most once, a second resolution is a compiler bug.
type ElisionState uint8

const (
    Required ElisionState = iota
    TriviallyElided
    DominatorElided
    SafepointAttachedElided
    Bailout
)

func (self ElisionState) String() string {
    switch self {
        case Required                : return "required"
        case TriviallyElided         : return "trivial"
        case DominatorElided         : return "dominator"
        case SafepointAttachedElided : return "safepoint-attached"
        case Bailout                 : return "bailout"
        default                      : return "???"
    }
}

// IrAccess is a heap access through a base pointer plus a constant or
// unknown offset. Loads define R, stores and atomics consume V, atomics
// also define R with the previous value.
type IrAccess struct {
    Nid
    Op      MemOp
    R       Reg
    V       Reg
    A       Reg
    Addr    IrNode
    Off     int64
    Derived bool
    Barrier BarrierData
    state   ElisionState
}

func (self *IrAccess) String() string {
    off := "?"
    if self.Off != OffUnknown {
        off = fmt.Sprintf("%d", self.Off)
    }
    switch self.Op {
        case MemStore : return fmt.Sprintf("store [%s+%s] = %s {%s}", self.A, off, self.V, self.Barrier)
        case MemAtomic: return fmt.Sprintf("%s = atomic [%s+%s], %s {%s}", self.R, self.A, off, self.V, self.Barrier)
        default       : return fmt.Sprintf("%s = load [%s+%s] {%s}", self.R, self.A, off, self.Barrier)
    }
}

func (self *IrAccess) Usages() []*Reg {
    if self.Op == MemLoad {
        return []*Reg { &self.A }
    }
    return []*Reg { &self.A, &self.V }
}

func (self *IrAccess) Definations() []*Reg {
    if self.Op == MemStore {
        return nil
    }
    return []*Reg { &self.R }
}

// State returns the current elision verdict.
func (self *IrAccess) State() ElisionState {
    return self.state
}

// Elided reports whether the barrier has been proven removable.
func (self *IrAccess) Elided() bool {
    switch self.state {
        case TriviallyElided         : return true
        case DominatorElided         : return true
        case SafepointAttachedElided : return true
        default                      : return false
    }
}

// MarkTriviallyElided records a verdict made by the frontend, a load of an
// immutable field for example. The analysis will not look at the access
// again.
func (self *IrAccess) MarkTriviallyElided() {
    self.resolve(TriviallyElided)
}

func (self *IrAccess) resolve(st ElisionState) {
    if self.state != Required {
        panic("opto: elision state resolved twice: " + self.String())
    }
    self.state = st
}

func (self *IrAccess) offKnown() bool {
    return self.Off != OffUnknown
}

// offShort checks that the offset fits the immediate field of an attached
// barrier stub, 16 bits as of now.
func (self *IrAccess) offShort() bool {
    return self.Off >> 16 == 0
}

// IrSafepoint is a point where the collector may inspect and move every
// object the In registers keep alive. Elided barriers that depend on this
// safepoint register themselves here.
type IrSafepoint struct {
    Nid
    In   []Reg
    recs []*SafepointRecord
}

func (self *IrSafepoint) String() string {
    nb := len(self.In)
    in := make([]string, 0, nb)
    for _, r := range self.In {
        in = append(in, r.String())
    }
    return fmt.Sprintf("safepoint {%s}", strings.Join(in, ", "))
}

func (self *IrSafepoint) Usages() []*Reg {
    return regsliceref(self.In)
}

// Records lists the accesses whose elided barrier this safepoint must
// re-establish, in attachment order.
func (self *IrSafepoint) Records() []*SafepointRecord {
    return self.recs
}

func (self *IrSafepoint) attach(r *SafepointRecord) {
    self.recs = append(self.recs, r)
}

type IrSuccessors interface {
    Next() bool
    Block() *BasicBlock
    Value() (int64, bool)
}

type IrTerminator interface {
    IrNode
    Successors() IrSuccessors
    irterminator()
}

func (*IrSwitch) irterminator() {}
func (*IrReturn) irterminator() {}

type _SwitchTarget struct {
    i int64
    b *BasicBlock
}

type _SwitchSuccessors struct {
    i  int
    ln *BasicBlock
    br []_SwitchTarget
}

func (self *_SwitchSuccessors) Next() bool {
    if self.i++; self.i < len(self.br) {
        return true
    } else {
        return self.i == len(self.br) && self.ln != nil
    }
}

func (self *_SwitchSuccessors) Block() *BasicBlock {
    if self.i < len(self.br) {
        return self.br[self.i].b
    }
    return self.ln
}

func (self *_SwitchSuccessors) Value() (int64, bool) {
    if self.i < len(self.br) {
        return self.br[self.i].i, true
    }
    return 0, false
}

// IrSwitch branches on V, taking Ln when no case matches. A plain goto is
// a switch without cases.
type IrSwitch struct {
    Nid
    V  Reg
    Ln *BasicBlock
    Br map[int64]*BasicBlock
}

func (self *IrSwitch) String() string {
    nb := len(self.Br)
    ret := make([]string, 0, nb)

    /* no branches */
    if nb == 0 {
        return fmt.Sprintf("goto bb_%d", self.Ln.Id)
    }

    /* add each case, sorted for determinism */
    for it := self.Successors(); it.Next(); {
        if i, ok := it.Value(); ok {
            ret = append(ret, fmt.Sprintf("  %d => bb_%d,", i, it.Block().Id))
        }
    }

    /* default branch */
    ret = append(ret, fmt.Sprintf(
        "  _ => bb_%d,",
        self.Ln.Id,
    ))

    /* join them together */
    return fmt.Sprintf(
        "switch %s {\n%s\n}",
        self.V,
        strings.Join(ret, "\n"),
    )
}

func (self *IrSwitch) Usages() []*Reg {
    if len(self.Br) == 0 {
        return nil
    }
    return []*Reg { &self.V }
}

func (self *IrSwitch) Successors() IrSuccessors {
    nb := len(self.Br)
    br := make([]_SwitchTarget, 0, nb)

    /* the branch table in value order, then the default */
    for i, b := range self.Br {
        br = append(br, _SwitchTarget { i: i, b: b })
    }
    sort.Slice(br, func(i int, j int) bool {
        return br[i].i < br[j].i
    })
    return &_SwitchSuccessors { i: -1, ln: self.Ln, br: br }
}

type _EmptySuccessor struct{}
func (_EmptySuccessor) Next()  bool          { return false }
func (_EmptySuccessor) Block() *BasicBlock   { return nil }
func (_EmptySuccessor) Value() (int64, bool) { return 0, false }

type IrReturn struct {
    Nid
    R []Reg
}

func (self *IrReturn) String() string {
    nb := len(self.R)
    ret := make([]string, 0, nb)
    for _, r := range self.R {
        ret = append(ret, r.String())
    }
    return fmt.Sprintf("ret {%s}", strings.Join(ret, ", "))
}

func (self *IrReturn) Usages() []*Reg {
    return regsliceref(self.R)
}

func (self *IrReturn) Successors() IrSuccessors {
    return _EmptySuccessor{}
}
