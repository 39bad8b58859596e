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

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
)

// Serve answers protocol requests read from r using simulators opened by
// factory, until the peer sends close or r reaches EOF.
func Serve(ctx context.Context, r io.Reader, w io.Writer, factory sim.Factory) error {
	in := bufio.NewReader(r)
	enc := json.NewEncoder(w)
	var current sim.Simulator
	defer func() {
		if current != nil {
			_ = current.Close()
		}
	}()

	for {
		line, err := in.ReadBytes('\n')
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			return fmt.Errorf("bridge: malformed request: %w", err)
		}

		result, callErr := dispatch(ctx, factory, &current, req)
		resp := response{ID: req.ID}
		if callErr != nil {
			kind := errorKindFault
			if errors.Is(callErr, sim.ErrGreedyFollower) {
				kind = errorKindGreedyFollower
			}
			resp.Error = &rpcError{Kind: kind, Message: callErr.Error()}
		} else if result != nil {
			raw, err := json.Marshal(result)
			if err != nil {
				return err
			}
			resp.Result = raw
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if req.Method == methodClose {
			return nil
		}
	}
}

func dispatch(ctx context.Context, factory sim.Factory, current *sim.Simulator, req request) (any, error) {
	if req.Method == methodOpen {
		var p openParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		if *current != nil {
			_ = (*current).Close()
		}
		s, err := factory.Open(ctx, p.Scene, p.Settings)
		if err != nil {
			return nil, err
		}
		*current = s
		return struct{}{}, nil
	}
	if req.Method == methodClose {
		if *current == nil {
			return struct{}{}, nil
		}
		err := (*current).Close()
		*current = nil
		return struct{}{}, err
	}
	s := *current
	if s == nil {
		return nil, fmt.Errorf("no scene open for %s", req.Method)
	}

	switch req.Method {
	case methodSemanticObjects:
		return s.SemanticObjects()
	case methodInitializeAgent:
		return s.InitializeAgent()
	case methodSetAgentState:
		var state model.AgentState
		if err := json.Unmarshal(req.Params, &state); err != nil {
			return nil, err
		}
		return struct{}{}, s.SetAgentState(state)
	case methodAgentState:
		return s.AgentState()
	case methodRandomNavigablePoint:
		return s.RandomNavigablePoint()
	case methodGeodesicDistance:
		var p geodesicParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		d, found, err := s.GeodesicDistance(p.From, p.To)
		return geodesicResult{Distance: d, Found: found}, err
	case methodGreedyPath:
		var p goalParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return s.GreedyPath(p.Goal)
	case methodStep:
		var p stepParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		return s.Step(p.Action)
	}
	return nil, fmt.Errorf("unknown method %q", req.Method)
}
