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

//go:build linux

package arena

import (
	"syscall"
	"unsafe"

	"github.com/zelide/zelide/internal/opts"
	"github.com/zelide/zelide/internal/rt"
)

const (
	_AP = syscall.MAP_ANON | syscall.MAP_PRIVATE | syscall.MAP_NORESERVE
	_RW = syscall.PROT_READ | syscall.PROT_WRITE
)

func mkptr(m uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&m))
}

func reserve(nb uintptr) []byte {
	mm, _, err := syscall.Syscall6(syscall.SYS_MMAP, 0, nb, _RW, _AP, 0, 0)
	if err != 0 {
		panic(err)
	}
	mem := rt.BytesFrom(mkptr(mm), int(nb), int(nb))
	if opts.ArenaHugePages {
		_ = syscall.Madvise(mem, syscall.MADV_HUGEPAGE)
	}
	return mem
}

func release(mem []byte) {
	if err := syscall.Madvise(mem, syscall.MADV_DONTNEED); err != nil {
		panic(err)
	}
}
