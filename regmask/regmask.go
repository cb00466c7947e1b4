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

package regmask

import (
    `strconv`
    `strings`
    `math/bits`

    `github.com/bytedance/gopkg/lang/dirtmake`

    `github.com/zelide/zelide/arena`
    `github.com/zelide/zelide/internal/rt`
)

// Reg identifies a machine register or stack slot. Register ids grow
// without bound as the allocator spills, stack slots are just high ids.
type Reg int32

const (
    Bad Reg = -1
)

const (
    _WordBits    = 64
    _LogWordBits = 6
    _WordMask    = _WordBits - 1
)

const (
    _BaseWords = 4
    _BaseMax   = _BaseWords - 1
)

// _StartsMask selects the first bit of every aligned group, indexed by
// log2 of the group size.
var _StartsMask = [6]uint64{
    0xffffffffffffffff,
    0x5555555555555555,
    0x1111111111111111,
    0x0101010101010101,
    0x0001000100010001,
    0x0000000100000001,
}

// RegMask is a dense register set. A small word array is kept inline, masks
// that outgrow it extend into arena (or heap) storage, always by powers of
// two. The id window served by the mask starts at an offset which is zero
// for a fresh mask and moves up in whole capacities via Rollover. Bits at
// or above the window are summarized by a single all-stack flag.
//
// Low and high watermarks bound the words that may contain set bits, the
// destructive operations only touch words inside them.
type RegMask struct {
    mem  *arena.Arena
    ext  []uint64
    all  bool
    off  uint32
    size uint32
    lwm  uint32
    hwm  uint32
    base [_BaseWords]uint64
}

// New creates an empty mask. Extension words are carved out of mem when it
// is not nil, otherwise they come from the heap.
func New(mem *arena.Arena) *RegMask {
    return &RegMask{
        mem:  mem,
        size: _BaseWords,
        lwm:  _BaseMax,
        hwm:  0,
    }
}

// Of creates a heap-backed mask holding exactly the given registers.
func Of(rr ...Reg) *RegMask {
    rm := New(nil)
    for _, r := range rr {
        rm.Insert(r)
    }
    return rm
}

func (self *RegMask) Clone() *RegMask {
    rm := new(RegMask)
    *rm = *self
    if self.ext != nil {
        rm.ext = rm.allocWords(uint32(len(self.ext)))
        copy(rm.ext, self.ext)
    }
    return rm
}

/** Capacity & Window **/

// Capacity is the number of bits the mask can represent explicitly,
// starting at the window offset.
func (self *RegMask) Capacity() int {
    return int(self.size) * _WordBits
}

// Offset is the first register id the current window covers.
func (self *RegMask) Offset() Reg {
    return Reg(self.off) * _WordBits
}

func (self *RegMask) offsetBits() int32 {
    return int32(self.off) * _WordBits
}

func (self *RegMask) maxWord() uint32 {
    return self.size - 1
}

func (self *RegMask) word(i uint32) uint64 {
    if i < _BaseWords {
        return self.base[i]
    } else {
        return self.ext[i-_BaseWords]
    }
}

func (self *RegMask) wordRef(i uint32) *uint64 {
    if i < _BaseWords {
        return &self.base[i]
    } else {
        return &self.ext[i-_BaseWords]
    }
}

func (self *RegMask) fill(from uint32, nw uint32, v uint64) {
    for i := from; i < from+nw; i++ {
        *self.wordRef(i) = v
    }
}

func (self *RegMask) allocWords(nw uint32) []uint64 {
    if self.mem != nil {
        return self.mem.Uint64s(int(nw))
    } else {
        return rt.WordsOf(dirtmake.Bytes(int(nw)*8, int(nw)*8))
    }
}

// grow extends the mask to hold at least min words, rounding the new size
// up to a power of two. New words are all ones when the all-stack flag is
// set, all zeroes otherwise.
func (self *RegMask) grow(min uint32) {
    if min <= self.size {
        return
    }

    /* carve the new extension, keep the old content */
    min = roundUpPow2(min)
    ext := self.allocWords(min - _BaseWords)
    old := self.size
    copy(ext, self.ext)
    self.ext = ext
    self.size = min

    /* the all-stack flag semantically covers the new words */
    if !self.all {
        self.fill(old, min-old, 0)
    } else {
        self.fill(old, min-old, ^uint64(0))
        self.hwm = self.maxWord()
    }
}

func (self *RegMask) checkOffset(o *RegMask) {
    if self.off != o.off {
        panic("regmask: window offset mismatch")
    }
}

func debugAssert(cond bool, msg string) {
    if !cond {
        panic("regmask: " + msg)
    }
}

// verify checks the watermark invariant, every set word must fall within
// [lwm, hwm]. Verification only, the operations trust their bookkeeping.
func (self *RegMask) verify() {
    for i := uint32(0); i < self.size; i++ {
        if self.word(i) != 0 {
            debugAssert(i >= self.lwm, "low watermark above a set word")
            debugAssert(i <= self.hwm, "high watermark below a set word")
        }
    }
}

/** Single Register Operations **/

// Member checks whether r is in the mask. Registers above the window
// resolve to the all-stack flag, registers below it are never members.
func (self *RegMask) Member(r Reg) bool {
    i := int32(r) - self.offsetBits()
    if i < 0 {
        return false
    } else if int(i) >= self.Capacity() {
        return self.all
    } else {
        return self.word(uint32(i)>>_LogWordBits)&(1<<(uint32(i)&_WordMask)) != 0
    }
}

// Insert adds r to the mask, growing it when r lies above the current
// capacity. Inserting below the window is a fault.
func (self *RegMask) Insert(r Reg) {
    i := int32(r) - self.offsetBits()
    if r == Bad || i < 0 {
        panic("regmask: register below the mask window: " + r.String())
    }

    /* locate the word, extending as needed */
    wx := uint32(i) >> _LogWordBits
    self.grow(wx + 1)

    /* maintain the watermarks */
    if wx > self.hwm {
        self.hwm = wx
    }
    if wx < self.lwm {
        self.lwm = wx
    }
    *self.wordRef(wx) |= 1 << (uint32(i) & _WordMask)
}

// Remove clears r from the mask. Registers above the capacity are not
// stored explicitly, so removal up there is a no-op unless the all-stack
// flag covers them, which is a fault.
func (self *RegMask) Remove(r Reg) {
    i := int32(r) - self.offsetBits()
    if r == Bad || i < 0 {
        panic("regmask: register below the mask window: " + r.String())
    }
    if int(i) >= self.Capacity() {
        if self.all {
            panic("regmask: cannot remove a register covered by the all-stack flag")
        }
        return
    }
    *self.wordRef(uint32(i)>>_LogWordBits) &^= 1 << (uint32(i) & _WordMask)
}

/** Whole Mask Operations **/

func (self *RegMask) Clear() {
    self.fill(0, self.size, 0)
    self.lwm = self.maxWord()
    self.hwm = 0
    self.all = false
}

// SetAll sets every representable bit and the all-stack flag. It is only
// meaningful on an unshifted window.
func (self *RegMask) SetAll() {
    if self.off != 0 {
        panic("regmask: set-all on a shifted window")
    }
    self.SetAllFromOffset()
}

// SetAllFromOffset sets every bit of the current window and the all-stack
// flag, regardless of where the window starts.
func (self *RegMask) SetAllFromOffset() {
    self.fill(0, self.size, ^uint64(0))
    self.lwm = 0
    self.hwm = self.maxWord()
    self.all = true
}

// SetAllFrom sets every bit from r upwards, including the all-stack flag.
func (self *RegMask) SetAllFrom(r Reg) {
    i := int32(r) - self.offsetBits()
    if r == Bad || i < 0 {
        panic("regmask: register below the mask window: " + r.String())
    }

    /* partial first word, then solid words up to the capacity */
    wx := uint32(i) >> _LogWordBits
    self.grow(wx + 1)
    *self.wordRef(wx) |= ^uint64(0) << (uint32(i) & _WordMask)
    if wx < self.maxWord() {
        self.fill(wx+1, self.maxWord()-wx, ^uint64(0))
    }

    /* everything above the capacity is covered by the flag */
    if wx < self.lwm {
        self.lwm = wx
    }
    self.hwm = self.maxWord()
    self.all = true
}

func (self *RegMask) SetAllStack(v bool) {
    self.all = v
}

func (self *RegMask) IsAllStack() bool {
    return self.all
}

// IsEmpty reports whether no representable bit is set. The all-stack flag
// is not considered, see IsAllStackOnly.
func (self *RegMask) IsEmpty() bool {
    t := uint64(0)
    for i := self.lwm; i <= self.hwm && i < self.size; i++ {
        t |= self.word(i)
    }
    return t == 0
}

// IsAllStackOnly reports whether the mask consists of nothing but the
// all-stack flag. This is the precondition for Rollover.
func (self *RegMask) IsAllStackOnly() bool {
    return self.all && self.IsEmpty()
}

// Rollover advances the window to the next chunk of register ids and
// materializes the all-stack flag into it. The mask must be all-stack-only,
// otherwise explicit bits would silently change identity.
func (self *RegMask) Rollover() {
    if !self.IsAllStackOnly() {
        panic("regmask: rollover of a mask with explicit bits")
    }
    self.off += self.size
    self.SetAllFromOffset()
}

// Size counts the set bits inside the window. Bits covered only by the
// all-stack flag are not counted.
func (self *RegMask) Size() int {
    n := 0
    for i := self.lwm; i <= self.hwm && i < self.size; i++ {
        n += bits.OnesCount64(self.word(i))
    }
    return n
}

// FindFirst returns the lowest member of the window, or Bad when the
// window is empty.
func (self *RegMask) FindFirst() Reg {
    for i := self.lwm; i <= self.hwm && i < self.size; i++ {
        if w := self.word(i); w != 0 {
            return Reg(int32(i)<<_LogWordBits+int32(bits.TrailingZeros64(w))) + Reg(self.offsetBits())
        }
    }
    return Bad
}

// FindLast returns the highest member of the window, or Bad when the
// window is empty.
func (self *RegMask) FindLast() Reg {
    for i := self.hwm + 1; i > self.lwm; i-- {
        if w := self.word(i - 1); w != 0 {
            return Reg(int32(i-1)<<_LogWordBits+_WordMask-int32(bits.LeadingZeros64(w))) + Reg(self.offsetBits())
        }
    }
    return Bad
}

/** Set Algebra **/

// Union adds every member of o, including its all-stack coverage. Both
// masks must share a window offset.
func (self *RegMask) Union(o *RegMask) {
    self.checkOffset(o)
    self.grow(o.size)

    /* widen the watermarks, then merge word by word */
    if o.lwm < self.lwm {
        self.lwm = o.lwm
    }
    if o.hwm > self.hwm {
        self.hwm = o.hwm
    }
    for i := self.lwm; i <= self.hwm && i < o.size; i++ {
        *self.wordRef(i) |= o.word(i)
    }

    /* o's all-stack flag covers the words it cannot represent */
    if o.all && o.size < self.size {
        self.fill(o.size, self.size-o.size, ^uint64(0))
        self.hwm = self.maxWord()
    }
    self.all = self.all || o.all
}

// Intersect keeps only the members shared with o. Both masks must share a
// window offset.
func (self *RegMask) Intersect(o *RegMask) {
    self.checkOffset(o)
    self.grow(o.size)
    for i := self.lwm; i <= self.hwm && i < o.size; i++ {
        *self.wordRef(i) &= o.word(i)
    }

    /* bits beyond o's capacity survive only under o's all-stack flag */
    if !o.all && self.hwm >= o.size {
        self.fill(o.size, self.hwm-o.size+1, 0)
        self.hwm = o.size - 1
    }
    if o.lwm > self.lwm {
        self.lwm = o.lwm
    }
    if !o.all && o.hwm < self.hwm {
        self.hwm = o.hwm
    }
    self.all = self.all && o.all
}

// Subtract removes every member of o, including its all-stack coverage.
// Both masks must share a window offset.
func (self *RegMask) Subtract(o *RegMask) {
    self.checkOffset(o)
    self.grow(o.size)

    /* only the overlapping word range can change */
    lw, hw := self.lwm, self.hwm
    if o.lwm > lw {
        lw = o.lwm
    }
    if o.hwm < hw {
        hw = o.hwm
    }
    for i := lw; i <= hw && i < o.size; i++ {
        *self.wordRef(i) &^= o.word(i)
    }

    /* o's all-stack flag wipes everything beyond its capacity */
    if o.all && self.hwm >= o.size {
        self.fill(o.size, self.hwm-o.size+1, 0)
        self.hwm = o.size - 1
    }
    self.all = self.all && !o.all
}

// Overlap reports whether the two masks share any explicitly represented
// member. The all-stack flags are deliberately not consulted, matching
// the conservative use at interference checks.
func (self *RegMask) Overlap(o *RegMask) bool {
    self.checkOffset(o)
    lw, hw := self.lwm, self.hwm
    if o.lwm > lw {
        lw = o.lwm
    }
    if o.hwm < hw {
        hw = o.hwm
    }
    for i := lw; i <= hw && i < self.size && i < o.size; i++ {
        if self.word(i)&o.word(i) != 0 {
            return true
        }
    }
    return false
}

/** Alignment Queries **/

func checkSetSize(n uint) uint {
    if n == 0 || n > 32 || n&(n-1) != 0 {
        panic("regmask: invalid lane set size: " + strconv.Itoa(int(n)))
    }
    return uint(bits.TrailingZeros(n))
}

// clearWord keeps only the fully populated aligned groups of size bits.
func clearWord(w uint64, n uint, log uint) uint64 {
    f := w
    for i := uint(1); i < n; i++ {
        f &= w >> i
    }
    return (f & _StartsMask[log]) * (1<<n - 1)
}

// smearWord fills every aligned group of size bits that has any bit set.
func smearWord(w uint64, n uint, log uint) uint64 {
    f := w
    for i := uint(1); i < n; i++ {
        f |= w >> i
    }
    return (f & _StartsMask[log]) * (1<<n - 1)
}

// ClearToSets removes every member whose aligned group of n registers is
// not fully contained in the mask.
func (self *RegMask) ClearToSets(n uint) {
    log := checkSetSize(n)
    if n == 1 {
        return
    }
    for i := self.lwm; i <= self.hwm && i < self.size; i++ {
        *self.wordRef(i) = clearWord(self.word(i), n, log)
    }
}

// SmearToSets completes every aligned group of n registers that has at
// least one member.
func (self *RegMask) SmearToSets(n uint) {
    log := checkSetSize(n)
    if n == 1 {
        return
    }
    for i := self.lwm; i <= self.hwm && i < self.size; i++ {
        *self.wordRef(i) = smearWord(self.word(i), n, log)
    }
}

func (self *RegMask) ClearToPairs() {
    self.ClearToSets(2)
}

func (self *RegMask) SmearToPairs() {
    self.SmearToSets(2)
}

// IsAlignedSets checks that the mask is composed of whole aligned groups
// of n registers. The empty mask is trivially aligned.
func (self *RegMask) IsAlignedSets(n uint) bool {
    log := checkSetSize(n)
    if n == 1 {
        return true
    }
    for i := self.lwm; i <= self.hwm && i < self.size; i++ {
        if w := self.word(i); clearWord(w, n, log) != w {
            return false
        }
    }
    return true
}

func (self *RegMask) IsAlignedPairs() bool {
    return self.IsAlignedSets(2)
}

// IsBound1 checks for exactly one member. An all-stack mask is never
// bound, it offers infinitely many choices.
func (self *RegMask) IsBound1() bool {
    return !self.all && self.Size() == 1
}

// IsBoundSet checks for exactly one contiguous run of n members. The run
// does not have to be aligned. The empty mask counts as bound.
func (self *RegMask) IsBoundSet(n uint) bool {
    if self.all {
        return false
    }
    first := self.FindFirst()
    if first == Bad {
        return true
    }
    sz := self.Size()
    return uint(sz) == n && int32(self.FindLast()-first)+1 == int32(sz)
}

func (self *RegMask) IsBoundPair() bool {
    return self.IsBoundSet(2)
}

// IsMisalignedPair checks for exactly two members that do not form an
// aligned pair.
func (self *RegMask) IsMisalignedPair() bool {
    return self.Size() == 2 && !self.IsAlignedPairs()
}

/** Formatting **/

func (self Reg) String() string {
    if self == Bad {
        return "?"
    }
    return "r" + strconv.Itoa(int(self))
}

func (self *RegMask) String() string {
    rs := make([]string, 0, 16)
    for it := self.Iter(); it.Next(); {
        rs = append(rs, it.Reg().String())
    }
    if self.all {
        rs = append(rs, "...")
    }
    return "{" + strings.Join(rs, ", ") + "}"
}

func roundUpPow2(v uint32) uint32 {
    v--
    v |= v >> 1
    v |= v >> 2
    v |= v >> 4
    v |= v >> 8
    v |= v >> 16
    return v + 1
}
