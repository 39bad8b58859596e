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

// Package navigation places the embodied agent relative to a goal object and
// plans the walk toward it. An Agent moves through a fixed set of states for
// each object:
//
//	Uninitialized -> SimulatorReady -> AgentPlaced -> PathComputed -> Recording -> Done
//	                                 \-> Failed     \-> Failed          \-> Failed
//
// Reset returns a finished agent to SimulatorReady so the same simulator can
// serve the next object of the scene.
package navigation

import (
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
)

// State is the lifecycle position of an Agent.
type State int

const (
	Uninitialized State = iota
	SimulatorReady
	AgentPlaced
	PathComputed
	Recording
	Done
	Failed
)

var stateNames = map[State]string{
	Uninitialized:  "uninitialized",
	SimulatorReady: "simulator-ready",
	AgentPlaced:    "agent-placed",
	PathComputed:   "path-computed",
	Recording:      "recording",
	Done:           "done",
	Failed:         "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrInvalidTransition is returned when an operation is called out of order.
var ErrInvalidTransition = errors.New("invalid navigation state transition")

// Default placement constraints.
const (
	DefaultMinGeodesicDistance  = 10.0
	DefaultMaxPlacementAttempts = 100
	DefaultFloorHeightThreshold = 0.5
)

// Options bounds the search for a start point.
type Options struct {
	MinGeodesicDistance  float64 // Minimum navigable distance between start and goal.
	MaxPlacementAttempts int     // Number of random points tried before giving up.
	FloorHeightThreshold float64 // Start points above this height are rejected.
}

// DefaultOptions returns the standard placement constraints.
func DefaultOptions() Options {
	return Options{
		MinGeodesicDistance:  DefaultMinGeodesicDistance,
		MaxPlacementAttempts: DefaultMaxPlacementAttempts,
		FloorHeightThreshold: DefaultFloorHeightThreshold,
	}
}

// Agent drives one simulator through placement and planning for a sequence of
// goal objects. It is not safe for concurrent use.
type Agent struct {
	sim     sim.Simulator
	opts    Options
	state   State
	initial model.AgentState
	start   model.AgentState
	goal    model.Vec3
	path    model.ActionSequence
	lastErr error
}

// NewAgent binds an agent to an open simulator and initializes its default
// state. A nil simulator leaves the agent Uninitialized.
func NewAgent(s sim.Simulator, opts Options) (*Agent, error) {
	a := &Agent{sim: s, opts: opts, state: Uninitialized}
	if opts.MaxPlacementAttempts <= 0 {
		a.opts.MaxPlacementAttempts = DefaultMaxPlacementAttempts
	}
	if s == nil {
		return a, nil
	}
	initial, err := s.InitializeAgent()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize agent: %w", err)
	}
	a.initial = initial
	a.state = SimulatorReady
	return a, nil
}

// State returns the lifecycle state of the current attempt.
func (a *Agent) State() State { return a.state }

// Simulator returns the simulator the agent drives.
func (a *Agent) Simulator() sim.Simulator { return a.sim }

// Start returns the placed start state.
func (a *Agent) Start() model.AgentState { return a.start }

// Path returns the planned action sequence.
func (a *Agent) Path() model.ActionSequence { return a.path }

// Err returns the error that moved the agent to Failed.
func (a *Agent) Err() error { return a.lastErr }

func (a *Agent) fail(err error) error {
	a.state = Failed
	a.lastErr = err
	return err
}

func (a *Agent) expect(op string, want State) error {
	if a.state != want {
		return fmt.Errorf("%w: %s requires %s, agent is %s", ErrInvalidTransition, op, want, a.state)
	}
	return nil
}

// Place searches for a start point that is on the ground floor, reachable
// from goal and at least MinGeodesicDistance away from it, then teleports the
// agent there keeping its default orientation.
func (a *Agent) Place(goal model.Vec3) (model.AgentState, error) {
	if err := a.expect("place", SimulatorReady); err != nil {
		return model.AgentState{}, err
	}
	a.goal = goal
	for attempt := 0; attempt < a.opts.MaxPlacementAttempts; attempt++ {
		p, err := a.sim.RandomNavigablePoint()
		if err != nil {
			return model.AgentState{}, a.fail(err)
		}
		if p.Y > a.opts.FloorHeightThreshold {
			continue
		}
		d, found, err := a.sim.GeodesicDistance(p, goal)
		if err != nil {
			return model.AgentState{}, a.fail(err)
		}
		if !found || d < a.opts.MinGeodesicDistance {
			continue
		}
		start := model.AgentState{Position: p, Rotation: a.initial.Rotation}
		if err := a.sim.SetAgentState(start); err != nil {
			return model.AgentState{}, a.fail(err)
		}
		a.start = start
		a.state = AgentPlaced
		return start, nil
	}
	return model.AgentState{}, a.fail(fmt.Errorf("%w: %d attempts", model.ErrPlacementExhausted, a.opts.MaxPlacementAttempts))
}

// PlanPath asks the simulator's greedy follower for the action sequence from
// the placed start to the goal. A plan without a single movement action is
// reported as ErrPathNotFound.
func (a *Agent) PlanPath() (model.ActionSequence, error) {
	if err := a.expect("plan path", AgentPlaced); err != nil {
		return nil, err
	}
	path, err := a.sim.GreedyPath(a.goal)
	if errors.Is(err, sim.ErrGreedyFollower) {
		return nil, a.fail(fmt.Errorf("%w: %v", model.ErrPathNotFound, err))
	}
	if err != nil {
		return nil, a.fail(err)
	}
	if path.Recordable() == 0 {
		return nil, a.fail(fmt.Errorf("%w: follower returned no movement", model.ErrPathNotFound))
	}
	a.path = path
	a.state = PathComputed
	return path, nil
}

// BeginRecording marks the planned path as being replayed.
func (a *Agent) BeginRecording() error {
	if err := a.expect("begin recording", PathComputed); err != nil {
		return err
	}
	a.state = Recording
	return nil
}

// Finish closes the recording. A nil err moves the agent to Done.
func (a *Agent) Finish(err error) error {
	if err != nil {
		return a.fail(err)
	}
	if e := a.expect("finish", Recording); e != nil {
		return e
	}
	a.state = Done
	return nil
}

// Abort fails the current attempt from any state.
func (a *Agent) Abort(err error) {
	_ = a.fail(err)
}

// Reset prepares the agent for the next goal. It is only valid once the
// current attempt is Done or Failed.
func (a *Agent) Reset() error {
	if a.state != Done && a.state != Failed && a.state != SimulatorReady {
		return fmt.Errorf("%w: reset requires done or failed, agent is %s", ErrInvalidTransition, a.state)
	}
	if a.sim == nil {
		a.state = Uninitialized
		return nil
	}
	a.start, a.goal, a.path, a.lastErr = model.AgentState{}, model.Vec3{}, nil, nil
	a.state = SimulatorReady
	return nil
}
