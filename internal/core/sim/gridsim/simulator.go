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

package gridsim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
)

// Simulator is the grid backed implementation of sim.Simulator.
type Simulator struct {
	grid     *grid
	objects  []model.SemanticObject
	settings sim.Settings
	rng      *rand.Rand
	agent    cell
	heading  int
	closed   bool
}

var _ sim.Simulator = (*Simulator)(nil)

// Factory opens grid simulators from the scene's geometry and semantic files.
type Factory struct{}

// Open implements sim.Factory.
func (Factory) Open(_ context.Context, scene model.Scene, settings sim.Settings) (sim.Simulator, error) {
	return Load(scene.GeometryPath, scene.SemanticPath, settings)
}

// Load reads a grid scene from disk.
func Load(geometryPath string, semanticPath string, settings sim.Settings) (*Simulator, error) {
	geometry, err := readFile(geometryPath)
	if err != nil {
		return nil, err
	}
	semantics, err := readFile(semanticPath)
	if err != nil {
		return nil, err
	}
	return New(geometry, semantics, settings)
}

// New builds a simulator from in-memory YAML documents.
func New(geometry []byte, semantics []byte, settings sim.Settings) (*Simulator, error) {
	if settings.Width <= 0 || settings.Height <= 0 {
		return nil, fmt.Errorf("grid simulator: invalid frame size %dx%d", settings.Width, settings.Height)
	}
	g, err := parseGeometry(geometry)
	if err != nil {
		return nil, err
	}
	objects, err := parseSemantics(semantics)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		grid:     g,
		objects:  objects,
		settings: settings,
		rng:      rand.New(rand.NewSource(settings.Seed)),
	}
	if _, err := s.InitializeAgent(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) checkOpen() error {
	if s.closed {
		return fmt.Errorf("%w: grid simulator is closed", model.ErrSimulatorFault)
	}
	return nil
}

func (s *Simulator) SemanticObjects() ([]model.SemanticObject, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]model.SemanticObject, len(s.objects))
	copy(out, s.objects)
	return out, nil
}

// InitializeAgent places the agent on the first navigable cell facing -Z.
func (s *Simulator) InitializeAgent() (model.AgentState, error) {
	if err := s.checkOpen(); err != nil {
		return model.AgentState{}, err
	}
	if len(s.grid.cells) == 0 {
		return model.AgentState{}, fmt.Errorf("%w: scene has no navigable cells", model.ErrSimulatorFault)
	}
	s.agent = s.grid.cells[0]
	s.heading = 0
	return s.AgentState()
}

func (s *Simulator) SetAgentState(state model.AgentState) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	c, ok := s.grid.locate(state.Position)
	if !ok {
		return fmt.Errorf("%w: position %+v is not navigable", model.ErrSimulatorFault, state.Position)
	}
	s.agent = c
	s.heading = headingFromYaw(state.Rotation.Yaw())
	return nil
}

func (s *Simulator) AgentState() (model.AgentState, error) {
	if err := s.checkOpen(); err != nil {
		return model.AgentState{}, err
	}
	return model.AgentState{
		Position: s.grid.center(s.agent),
		Rotation: model.YawQuaternion(yawFromHeading(s.heading)),
	}, nil
}

func (s *Simulator) RandomNavigablePoint() (model.Vec3, error) {
	if err := s.checkOpen(); err != nil {
		return model.Vec3{}, err
	}
	if len(s.grid.cells) == 0 {
		return model.Vec3{}, fmt.Errorf("%w: scene has no navigable cells", model.ErrSimulatorFault)
	}
	return s.grid.center(s.grid.cells[s.rng.Intn(len(s.grid.cells))]), nil
}

func (s *Simulator) GeodesicDistance(from, to model.Vec3) (float64, bool, error) {
	if err := s.checkOpen(); err != nil {
		return 0, false, err
	}
	a, okA := s.grid.snap(from)
	b, okB := s.grid.snap(to)
	if !okA || !okB || a.level != b.level {
		return 0, false, nil
	}
	l := s.grid.levels[a.level]
	steps := s.grid.bfs(a)[l.index(b.row, b.col)]
	if steps < 0 {
		return 0, false, nil
	}
	return float64(steps) * s.grid.cellSize, true, nil
}

// GreedyPath follows the steepest descent of the distance field to the goal,
// preferring to keep the current heading. The agent itself is not moved.
func (s *Simulator) GreedyPath(goal model.Vec3) (model.ActionSequence, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	target, ok := s.grid.snap(goal)
	if !ok || target.level != s.agent.level {
		return nil, sim.ErrGreedyFollower
	}
	l := s.grid.levels[target.level]
	dist := s.grid.bfs(target)
	if dist[l.index(s.agent.row, s.agent.col)] < 0 {
		return nil, sim.ErrGreedyFollower
	}

	var actions model.ActionSequence
	cur, heading := s.agent, s.heading
	for cur != target {
		here := dist[l.index(cur.row, cur.col)]
		next := -1
		for i := 0; i < 4; i++ {
			h := (heading + i) % 4
			nr, nc := cur.row+directions[h][0], cur.col+directions[h][1]
			if l.isNavigable(nr, nc) && dist[l.index(nr, nc)] == here-1 {
				next = h
				break
			}
		}
		if next < 0 {
			return nil, sim.ErrGreedyFollower
		}
		switch (next - heading + 4) % 4 {
		case 1:
			actions = append(actions, model.ActionTurnLeft)
		case 2:
			actions = append(actions, model.ActionTurnLeft, model.ActionTurnLeft)
		case 3:
			actions = append(actions, model.ActionTurnRight)
		}
		actions = append(actions, model.ActionMoveForward)
		heading = next
		cur = cell{level: cur.level, row: cur.row + directions[next][0], col: cur.col + directions[next][1]}
		if s.settings.MaxFrames > 0 && len(actions) > s.settings.MaxFrames {
			return nil, sim.ErrGreedyFollower
		}
	}
	return append(actions, model.ActionStop), nil
}

func (s *Simulator) Step(action model.Action) (sim.Frame, error) {
	if err := s.checkOpen(); err != nil {
		return sim.Frame{}, err
	}
	switch action {
	case model.ActionMoveForward:
		l := s.grid.levels[s.agent.level]
		nr, nc := s.agent.row+directions[s.heading][0], s.agent.col+directions[s.heading][1]
		if l.isNavigable(nr, nc) {
			s.agent.row, s.agent.col = nr, nc
		}
	case model.ActionTurnLeft:
		s.heading = (s.heading + 1) % 4
	case model.ActionTurnRight:
		s.heading = (s.heading + 3) % 4
	case model.ActionNone, model.ActionStop:
	default:
		return sim.Frame{}, fmt.Errorf("%w: unknown action %q", model.ErrSimulatorFault, action)
	}
	return s.render(), nil
}

func (s *Simulator) Close() error {
	s.closed = true
	return nil
}

var (
	wallColor    = [3]byte{70, 70, 80}
	floorColor   = [3]byte{220, 215, 200}
	agentColor   = [3]byte{200, 30, 30}
	headingColor = [3]byte{240, 150, 150}
)

func categoryColor(category string) [3]byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(category))
	v := h.Sum32()
	return [3]byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// render draws a top-down view of the agent's level.
func (s *Simulator) render() sim.Frame {
	w, h := s.settings.Width, s.settings.Height
	l := s.grid.levels[s.agent.level]
	colors := make(map[int][3]byte)
	for _, o := range s.objects {
		c := s.grid.rawCell(o.Center)
		if c.level == s.agent.level && l.inBounds(c.row, c.col) {
			colors[l.index(c.row, c.col)] = categoryColor(o.Category)
		}
	}
	colors[l.index(s.agent.row, s.agent.col)] = agentColor
	if hr, hc := s.agent.row+directions[s.heading][0], s.agent.col+directions[s.heading][1]; l.inBounds(hr, hc) {
		if _, taken := colors[l.index(hr, hc)]; !taken {
			colors[l.index(hr, hc)] = headingColor
		}
	}

	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		row := y * l.rows / h
		for x := 0; x < w; x++ {
			col := x * l.cols / w
			idx := l.index(row, col)
			c, ok := colors[idx]
			if !ok {
				if l.navigable[idx] {
					c = floorColor
				} else {
					c = wallColor
				}
			}
			o := (y*w + x) * 3
			pix[o], pix[o+1], pix[o+2] = c[0], c[1], c[2]
		}
	}
	return sim.Frame{Width: w, Height: h, RGB: pix}
}
