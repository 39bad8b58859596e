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

package main

import (
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim/bridge"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim/gridsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimulatorFactory(t *testing.T) {
	base := cloud.NewConfig().Simulator

	factory, err := NewSimulatorFactory(base, ".glb")
	require.NoError(t, err)
	assert.Equal(t, bridge.Factory{Command: "python3", Args: []string{"sidecar/habitat_bridge.py"}}, factory)

	grid := base
	grid.Backend = "grid"
	factory, err = NewSimulatorFactory(grid, gridsim.Extension)
	require.NoError(t, err)
	assert.Equal(t, gridsim.Factory{}, factory)

	_, err = NewSimulatorFactory(grid, ".glb")
	assert.ErrorContains(t, err, "grid reads .yaml scenes")

	noCommand := base
	noCommand.BridgeCommand = ""
	_, err = NewSimulatorFactory(noCommand, ".glb")
	assert.Error(t, err)

	unknown := base
	unknown.Backend = "unity"
	_, err = NewSimulatorFactory(unknown, ".glb")
	assert.ErrorContains(t, err, "unknown simulator backend")
}
