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

// Package bridge drives a simulator living in a separate process. The
// generator writes one JSON request per line to the process stdin and reads
// one JSON response per line from its stdout:
//
//	-> {"id":1,"method":"open","params":{"scene":{...},"settings":{...}}}
//	<- {"id":1,"result":{}}
//	-> {"id":2,"method":"greedy_path","params":{"goal":{"x":1,"y":0,"z":2}}}
//	<- {"id":2,"error":{"kind":"greedy_follower","message":"unreachable"}}
//
// Methods mirror sim.Simulator: open, semantic_objects, initialize_agent,
// set_agent_state, agent_state, random_navigable_point, geodesic_distance,
// greedy_path, step and close. Frames carry base64 encoded RGB bytes. An
// error of kind "greedy_follower" maps to sim.ErrGreedyFollower; any other
// error, and any I/O failure, is a simulator fault.
//
// sidecar/habitat_bridge.py implements the protocol over Habitat-sim. Serve
// exposes any sim.Factory over it, which is how the protocol is exercised in
// tests and how a grid scene can be served from another host.
package bridge

import (
	"encoding/json"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
)

const (
	methodOpen                 = "open"
	methodSemanticObjects      = "semantic_objects"
	methodInitializeAgent      = "initialize_agent"
	methodSetAgentState        = "set_agent_state"
	methodAgentState           = "agent_state"
	methodRandomNavigablePoint = "random_navigable_point"
	methodGeodesicDistance     = "geodesic_distance"
	methodGreedyPath           = "greedy_path"
	methodStep                 = "step"
	methodClose                = "close"

	errorKindGreedyFollower = "greedy_follower"
	errorKindFault          = "fault"
)

type request struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type openParams struct {
	Scene    model.Scene  `json:"scene"`
	Settings sim.Settings `json:"settings"`
}

type geodesicParams struct {
	From model.Vec3 `json:"from"`
	To   model.Vec3 `json:"to"`
}

type geodesicResult struct {
	Distance float64 `json:"distance"`
	Found    bool    `json:"found"`
}

type goalParams struct {
	Goal model.Vec3 `json:"goal"`
}

type stepParams struct {
	Action model.Action `json:"action"`
}
