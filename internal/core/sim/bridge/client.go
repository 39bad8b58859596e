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

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
)

// ShutdownGrace bounds how long Close waits for the sidecar to exit before
// killing it.
const ShutdownGrace = 5 * time.Second

// Factory starts one sidecar process per simulator.
type Factory struct {
	Command string   // Executable of the sidecar, e.g. "python3".
	Args    []string // Arguments, e.g. the sidecar script path.
	Env     []string // Extra environment entries appended to the current environment.
}

// Open implements sim.Factory.
func (f Factory) Open(ctx context.Context, scene model.Scene, settings sim.Settings) (sim.Simulator, error) {
	if f.Command == "" {
		return nil, errors.New("bridge: no sidecar command configured")
	}
	cmd := exec.CommandContext(ctx, f.Command, f.Args...)
	cmd.Env = append(os.Environ(), f.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("bridge: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("bridge: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("bridge: failed to start %s: %w", f.Command, err)
	}
	slog.Debug("started simulator sidecar", "pid", cmd.Process.Pid, "scene", scene.Name)

	s := NewSimulator(stdout, stdin, func() error { return waitOrKill(cmd) })
	if err := s.open(scene, settings); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func waitOrKill(cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(ShutdownGrace):
		_ = cmd.Process.Kill()
		return <-done
	}
}

// Simulator is a sim.Simulator proxied over the line protocol.
type Simulator struct {
	in      *bufio.Reader
	out     io.WriteCloser
	release func() error
	seq     int
	closed  bool
}

var _ sim.Simulator = (*Simulator)(nil)

// NewSimulator wraps an established connection. release is called once on
// Close after the write side has been closed; it may be nil.
func NewSimulator(in io.Reader, out io.WriteCloser, release func() error) *Simulator {
	return &Simulator{in: bufio.NewReader(in), out: out, release: release}
}

func (s *Simulator) call(method string, params any, result any) error {
	if s.closed {
		return fmt.Errorf("%w: bridge simulator is closed", model.ErrSimulatorFault)
	}
	s.seq++
	req := request{ID: s.seq, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("bridge: encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("bridge: encode %s: %w", method, err)
	}
	if _, err := s.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write %s: %v", model.ErrSimulatorFault, method, err)
	}

	reply, err := s.in.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", model.ErrSimulatorFault, method, err)
	}
	var resp response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", model.ErrSimulatorFault, method, err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("%w: response id %d does not match request %d", model.ErrSimulatorFault, resp.ID, req.ID)
	}
	if resp.Error != nil {
		if resp.Error.Kind == errorKindGreedyFollower {
			return fmt.Errorf("%w: %s", sim.ErrGreedyFollower, resp.Error.Message)
		}
		return fmt.Errorf("%w: %s: %s", model.ErrSimulatorFault, method, resp.Error.Message)
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%w: decode %s result: %v", model.ErrSimulatorFault, method, err)
		}
	}
	return nil
}

func (s *Simulator) open(scene model.Scene, settings sim.Settings) error {
	return s.call(methodOpen, openParams{Scene: scene, Settings: settings}, nil)
}

func (s *Simulator) SemanticObjects() (out []model.SemanticObject, err error) {
	err = s.call(methodSemanticObjects, nil, &out)
	return out, err
}

func (s *Simulator) InitializeAgent() (out model.AgentState, err error) {
	err = s.call(methodInitializeAgent, nil, &out)
	return out, err
}

func (s *Simulator) SetAgentState(state model.AgentState) error {
	return s.call(methodSetAgentState, state, nil)
}

func (s *Simulator) AgentState() (out model.AgentState, err error) {
	err = s.call(methodAgentState, nil, &out)
	return out, err
}

func (s *Simulator) RandomNavigablePoint() (out model.Vec3, err error) {
	err = s.call(methodRandomNavigablePoint, nil, &out)
	return out, err
}

func (s *Simulator) GeodesicDistance(from, to model.Vec3) (float64, bool, error) {
	var out geodesicResult
	if err := s.call(methodGeodesicDistance, geodesicParams{From: from, To: to}, &out); err != nil {
		return 0, false, err
	}
	return out.Distance, out.Found, nil
}

func (s *Simulator) GreedyPath(goal model.Vec3) (out model.ActionSequence, err error) {
	err = s.call(methodGreedyPath, goalParams{Goal: goal}, &out)
	return out, err
}

func (s *Simulator) Step(action model.Action) (out sim.Frame, err error) {
	if err = s.call(methodStep, stepParams{Action: action}, &out); err != nil {
		return out, err
	}
	return out, out.Validate()
}

// Close asks the sidecar to shut down and releases the connection. It is
// safe to call more than once.
func (s *Simulator) Close() error {
	if s.closed {
		return nil
	}
	callErr := s.call(methodClose, nil, nil)
	s.closed = true
	err := s.out.Close()
	if s.release != nil {
		err = errors.Join(err, s.release())
	}
	if callErr != nil {
		slog.Debug("simulator sidecar did not acknowledge close", "error", callErr)
	}
	return err
}
