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

//go:build !linux

package arena

import (
	"github.com/bytedance/gopkg/lang/dirtmake"
)

// reserve falls back to a regular heap allocation, skipping the zeroing
// pass since arena memory is dirty anyway. Pages are still committed
// lazily by the OS as they are first touched.
func reserve(nb uintptr) []byte {
	return dirtmake.Bytes(int(nb), int(nb))
}

func release(mem []byte) {}
