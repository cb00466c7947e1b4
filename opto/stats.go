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

// Stats observes analysis decisions as they are made. A nil observer on
// the context disables collection entirely.
type Stats interface {
    Elision(op MemOp, state ElisionState)
    HoistCandidate(op MemOp)
    SafepointAttach()
}

// StatsCounter is the trivial Stats implementation, a plain tally of every
// event. Not safe for concurrent use, one context gets one counter.
type StatsCounter struct {
    Elisions    map[ElisionState]int
    Hoists      int
    Attachments int
}

func NewStatsCounter() *StatsCounter {
    return &StatsCounter {
        Elisions: make(map[ElisionState]int),
    }
}

func (self *StatsCounter) Elision(_ MemOp, state ElisionState) {
    self.Elisions[state]++
}

func (self *StatsCounter) HoistCandidate(_ MemOp) {
    self.Hoists++
}

func (self *StatsCounter) SafepointAttach() {
    self.Attachments++
}
