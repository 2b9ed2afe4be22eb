// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/duckling-db/duckling/go/common/cancel"
)

// State is the lifecycle stage of an execution.
type State int32

const (
	Idle State = iota
	Planning
	Running
	Completed
	Interrupted
	Failed
)

var stateNames = [...]string{
	Idle:        "idle",
	Planning:    "planning",
	Running:     "running",
	Completed:   "completed",
	Interrupted: "interrupted",
	Failed:      "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s >= Completed
}

// transitions lists the states each state may move to.
var transitions = map[State][]State{
	Idle:     {Planning},
	Planning: {Running, Interrupted, Failed},
	Running:  {Completed, Interrupted, Failed},
}

// Execution is one run of a statement batch or relation. It owns the
// cancellation token for that run; the token is never reused.
type Execution struct {
	ID      string
	Query   string
	Started time.Time

	token *cancel.Token
	state atomic.Int32
}

func newExecution(query string) *Execution {
	return &Execution{
		ID:      uuid.NewString(),
		Query:   query,
		Started: time.Now(),
		token:   cancel.NewToken(),
	}
}

// State returns the current state.
func (e *Execution) State() State {
	return State(e.state.Load())
}

// Interrupt sets the execution's token. It returns false if the execution
// already finished or was already interrupted.
func (e *Execution) Interrupt() bool {
	if e.State().Terminal() {
		return false
	}
	return e.token.Interrupt()
}

// advance moves the execution to next. Transitions not listed in
// transitions are programming errors.
func (e *Execution) advance(next State) {
	cur := e.State()
	for _, allowed := range transitions[cur] {
		if allowed == next {
			e.state.Store(int32(next))
			return
		}
	}
	panic(fmt.Sprintf("execution %s: invalid transition %s -> %s", e.ID, cur, next))
}
