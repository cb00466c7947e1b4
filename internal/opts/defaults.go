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

package opts

import (
	"os"
	"strconv"
)

const (
	_DefaultMaxChainLength = 2048 // cutoff for the address definition walk
)

var (
	MaxChainLength            = parseOrDefault("ZELIDE_MAX_CHAIN_LENGTH", _DefaultMaxChainLength, 16)
	DomElision                = parseBoolOrDefault("ZELIDE_DOM_ELISION", true)
	SafepointAttachedBarriers = parseBoolOrDefault("ZELIDE_SAB_ELISION", true)
	DebugDumpLiveness         = parseBoolOrDefault("ZELIDE_DEBUG_LIVENESS", false)

	// ArenaHugePages advises the kernel to back arena reservations with
	// transparent huge pages, linux only.
	ArenaHugePages = parseBoolOrDefault("ZELIDE_ARENA_HUGEPAGES", false)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("zelide: invalid value for " + key)
	} else if ret := int(val); ret <= min {
		panic("zelide: value too small for " + key)
	} else {
		return ret
	}
}

func parseBoolOrDefault(key string, def bool) bool {
	switch os.Getenv(key) {
	case "":
		return def
	case "0", "no", "false":
		return false
	case "1", "yes", "true":
		return true
	default:
		panic("zelide: invalid value for " + key)
	}
}
