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

import "errors"

var (
	// ErrAssetMissing marks a geometry asset without its semantic counterpart.
	ErrAssetMissing = errors.New("semantic asset missing")
	// ErrPlacementExhausted is returned when no valid start point was found
	// within the attempt budget.
	ErrPlacementExhausted = errors.New("agent placement attempts exhausted")
	// ErrPathNotFound is returned when the path follower cannot reach the goal.
	ErrPathNotFound = errors.New("path to goal not found")
	// ErrSimulatorFault wraps any unexpected simulator failure. It aborts the
	// remaining objects of the scene.
	ErrSimulatorFault = errors.New("simulator fault")
	// ErrEmptyActionSequence is returned when a plan has no recordable action.
	ErrEmptyActionSequence = errors.New("action sequence has no recordable actions")
)

// IsSceneFatal reports whether err aborts the remaining objects of a scene.
// Every other failure only invalidates the current object.
func IsSceneFatal(err error) bool {
	return errors.Is(err, ErrSimulatorFault)
}
