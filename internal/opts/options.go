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

// Options controls the behavior of a single analysis run. The zero value
// disables everything, use GetDefaultOptions for the usual configuration.
type Options struct {
	MaxChainLength            int
	DomElision                bool
	SafepointAttachedBarriers bool
	DebugDumpLiveness         bool
}

func (self *Options) CanWalkChain(n int) bool {
	return self.MaxChainLength > n || self.MaxChainLength == 0
}

func GetDefaultOptions() Options {
	return Options{
		MaxChainLength:            MaxChainLength,
		DomElision:                DomElision,
		SafepointAttachedBarriers: SafepointAttachedBarriers,
		DebugDumpLiveness:         DebugDumpLiveness,
	}
}
