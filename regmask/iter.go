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
    `math/bits`
)

// Iterator walks the explicitly represented members of a mask in
// ascending order. The all-stack flag is not enumerable. The mask must
// not be mutated while iterating.
type Iterator struct {
    rm   *RegMask
    reg  Reg
    cur  uint64
    next uint32
}

func (self *RegMask) Iter() *Iterator {
    return &Iterator{
        rm:   self,
        reg:  Bad,
        next: self.lwm,
    }
}

// Reg returns the member found by the last successful Next.
func (self *Iterator) Reg() Reg {
    return self.reg
}

// Next advances to the next member, returning false when the mask is
// exhausted.
func (self *Iterator) Next() bool {
    for {
        if self.cur != 0 {
            i := int32(self.next-1) << _LogWordBits
            self.reg = Reg(i+int32(bits.TrailingZeros64(self.cur))) + Reg(self.rm.offsetBits())
            self.cur &= self.cur - 1
            return true
        }
        if self.next > self.rm.hwm || self.next >= self.rm.size {
            self.reg = Bad
            return false
        }
        self.cur = self.rm.word(self.next)
        self.next++
    }
}
