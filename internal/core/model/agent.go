// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

// AgentState is the pose of the embodied agent for one generation attempt.
type AgentState struct {
	Position Vec3       `json:"position"`
	Rotation Quaternion `json:"rotation"`
}

// Action is a discrete simulator action.
type Action string

const (
	ActionNone        Action = ""
	ActionStop        Action = "stop"
	ActionMoveForward Action = "move_forward"
	ActionTurnLeft    Action = "turn_left"
	ActionTurnRight   Action = "turn_right"
)

// IsNoop reports whether the action produces no observation. The path
// follower terminates its plans with one.
func (a Action) IsNoop() bool {
	return a == ActionNone || a == ActionStop
}

// ActionSequence is a planned path. It is never mutated after planning.
type ActionSequence []Action

// Recordable returns the number of actions that yield a frame.
func (s ActionSequence) Recordable() int {
	n := 0
	for _, a := range s {
		if !a.IsNoop() {
			n++
		}
	}
	return n
}
