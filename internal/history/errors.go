/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"errors"
	"fmt"
)

// ErrUnbalancedGroup reports an EndGroup call with no matching BeginGroup.
// That is a programming error in the caller, not a recoverable condition.
var ErrUnbalancedGroup = errors.New("history: end group without matching begin")

// ErrStaleTarget marks failures caused by an action whose target no longer
// exists in the scene. Actions wrap it in a StaleTargetError; callers check
// with errors.Is(err, ErrStaleTarget).
var ErrStaleTarget = errors.New("history: stale action target")

// StaleTargetError is returned by actions that find their captured target
// gone at execute or undo time. The manager drops the owning entry from
// history so the stacks stay consistent.
type StaleTargetError struct {
	Action string // action description
	Target string // item id the action captured
}

func (e *StaleTargetError) Error() string {
	return fmt.Sprintf("history: target %s gone for %q", e.Target, e.Action)
}

func (e *StaleTargetError) Unwrap() error { return ErrStaleTarget }
