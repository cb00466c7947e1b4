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

func minInt(a int, b int) int {
    if a < b {
        return a
    } else {
        return b
    }
}

func regsliceref(rr []Reg) []*Reg {
    rs := make([]*Reg, len(rr))
    for i := range rr {
        rs[i] = &rr[i]
    }
    return rs
}

// stripAliases walks through the identity-preserving wrappers around a
// pointer, casts and spill copies, down to the node that actually produces
// the object address.
func stripAliases(v IrNode) IrNode {
    for {
        switch p := v.(type) {
            case *IrCast : v = p.From
            case *IrCopy : v = p.From
            default      : return v
        }
    }
}

// nextDef steps one level down an address definition chain. Anything but a
// cast or a copy here means the chain did not end where the base said it
// would, which is a malformed graph.
func nextDef(v IrNode) IrNode {
    switch p := v.(type) {
        case *IrCast : return p.From
        case *IrCopy : return p.From
        default      : panic("opto: malformed address definition chain at " + v.String())
    }
}
