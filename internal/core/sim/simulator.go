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

// Package sim defines the contract between the generator and a 3D simulator.
// A Simulator is bound to exactly one scene for its whole lifetime and is not
// safe for concurrent use; each worker owns its own instance.
//
// Two backends implement the contract:
//   - gridsim: an in-process simulator over YAML occupancy grids.
//   - bridge: a sidecar process speaking line-delimited JSON, used to drive
//     Habitat-sim with real HM3D assets.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// ErrGreedyFollower is returned by GreedyPath when the follower cannot reach
// the goal from the current agent state.
var ErrGreedyFollower = errors.New("greedy follower failed to reach goal")

// Settings configures a simulator instance.
type Settings struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	HFOV           float64 `json:"hfov"`
	ColorSensor    bool    `json:"color_sensor"`
	DepthSensor    bool    `json:"depth_sensor"`
	SemanticSensor bool    `json:"semantic_sensor"`
	Seed           int64   `json:"seed"`
	MaxFrames      int     `json:"max_frames"`
	DefaultAgent   int     `json:"default_agent"`
}

// Frame is a colour observation in packed RGB order, three bytes per pixel.
type Frame struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	RGB    []byte `json:"rgb"`
}

// Validate checks the frame buffer matches its declared size.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 || len(f.RGB) != f.Width*f.Height*3 {
		return fmt.Errorf("%w: malformed frame %dx%d with %d bytes", model.ErrSimulatorFault, f.Width, f.Height, len(f.RGB))
	}
	return nil
}

// Stepper advances the agent by one action and returns the colour observation.
type Stepper interface {
	Step(action model.Action) (Frame, error)
}

// Simulator is a scene-bound navigation simulator.
type Simulator interface {
	Stepper

	// SemanticObjects lists the annotated object instances of the scene.
	SemanticObjects() ([]model.SemanticObject, error)

	// InitializeAgent resets the agent to its default state and returns it.
	InitializeAgent() (model.AgentState, error)

	// SetAgentState teleports the agent.
	SetAgentState(state model.AgentState) error

	// AgentState returns the current agent state.
	AgentState() (model.AgentState, error)

	// RandomNavigablePoint samples a point on the navigable surface using
	// the simulator's seeded random source.
	RandomNavigablePoint() (model.Vec3, error)

	// GeodesicDistance returns the shortest navigable distance between two
	// points. found is false when no path exists.
	GeodesicDistance(from, to model.Vec3) (distance float64, found bool, err error)

	// GreedyPath plans actions from the current agent state to goal. The
	// returned sequence is terminated by a no-op action. It returns
	// ErrGreedyFollower when the goal is unreachable.
	GreedyPath(goal model.Vec3) (model.ActionSequence, error)

	// Close releases the simulator. Further calls fail.
	Close() error
}

// Factory opens simulators bound to a scene.
type Factory interface {
	Open(ctx context.Context, scene model.Scene, settings Settings) (Simulator, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, scene model.Scene, settings Settings) (Simulator, error)

// Open calls f.
func (f FactoryFunc) Open(ctx context.Context, scene model.Scene, settings Settings) (Simulator, error) {
	return f(ctx, scene, settings)
}
