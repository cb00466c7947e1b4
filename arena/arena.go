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

package arena

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/klauspost/cpuid/v2"

	"github.com/zelide/zelide/internal/rt"
)

const (
	// DefaultSize is the reserved size of an arena created with Default.
	// The reservation is virtual, pages are only committed as the arena
	// grows into them.
	DefaultSize = 1 << 30
)

const (
	_Slack = 256 << 10
)

// OutOfMemory is thrown as a panic value when an allocation does not fit
// into the reserved region. It is not recoverable by the analysis itself,
// callers that want a soft failure must recover it at the entry point.
type OutOfMemory struct {
	Need uintptr
	Size uintptr
}

func (self *OutOfMemory) Error() string {
	return fmt.Sprintf("arena: out of memory: need %d bytes, reserved %d", self.Need, self.Size)
}

// Arena is a contiguous bump allocator. Individual allocations cannot be
// freed, the allocation point can only be saved with Mark and rolled back
// with ResetTo. Memory handed out is NOT zeroed.
//
// An Arena is not safe for concurrent use.
type Arena struct {
	mem  []byte
	off  uintptr
	high uintptr
	line uintptr
}

func New(size uintptr) *Arena {
	ln := uintptr(cpuid.CPU.CacheLine)
	if ln < 8 {
		ln = 64
	}
	return &Arena{
		mem:  reserve(alignUp(size, os.Getpagesize())),
		line: ln,
	}
}

func Default() *Arena {
	return New(DefaultSize)
}

func (self *Arena) Size() uintptr {
	return uintptr(len(self.mem))
}

func (self *Arena) Used() uintptr {
	return self.off
}

// Alloc carves nb bytes out of the arena, aligned to the cache line size.
func (self *Arena) Alloc(nb uintptr) unsafe.Pointer {
	if nb == 0 {
		return nil
	}

	/* align the request, then bump */
	nb = alignUp(nb, int(self.line))
	if self.Size()-self.off < nb {
		panic(&OutOfMemory{Need: nb, Size: self.Size()})
	}

	/* track the committed high-water mark */
	p := unsafe.Pointer(&self.mem[self.off])
	self.off += nb
	if self.off > self.high {
		self.high = self.off
	}
	return p
}

func (self *Arena) Bytes(n int) []byte {
	if n == 0 {
		return nil
	}
	return rt.BytesFrom(self.Alloc(uintptr(n)), n, n)
}

func (self *Arena) Uint64s(n int) []uint64 {
	if n == 0 {
		return nil
	}
	return rt.Uint64sFrom(self.Alloc(uintptr(n)*8), n, n)
}

// Mark saves the current allocation point for a later ResetTo.
func (self *Arena) Mark() uintptr {
	return self.off
}

// ResetTo rolls the allocation point back to a mark obtained from Mark.
// Everything allocated after the mark is invalidated. Committed pages above
// the mark are returned to the OS once they exceed a small slack, so a hot
// mark/reset cycle does not thrash the page tables.
func (self *Arena) ResetTo(m uintptr) {
	if m > self.off {
		panic("arena: reset past the allocation point")
	}
	self.off = m
	if keep := alignUp(m, os.Getpagesize()); self.high > keep && self.high-keep > _Slack {
		release(self.mem[keep:self.high])
		self.high = keep
	}
}

func (self *Arena) Reset() {
	self.ResetTo(0)
}

func alignUp(n uintptr, a int) uintptr {
	return (n + uintptr(a) - 1) &^ (uintptr(a) - 1)
}
