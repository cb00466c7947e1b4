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
)

// SafepointRecord ties an access with a safepoint-attached elided barrier
// to one safepoint its address may survive across. The stub emitted at the
// safepoint re-executes the barrier for Access, reloading the address from
// Def.
type SafepointRecord struct {
    Sfp    *IrSafepoint
    Access *IrAccess
    Def    IrNode
}

func (self *SafepointRecord) String() string {
    return fmt.Sprintf("{%s @ %s}", self.Access, self.Sfp)
}
