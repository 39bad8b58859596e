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
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim/gridsim"
	test "github.com/jaycherian/gcp-go-embodied-datagen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect serves factory over an in-memory pipe and returns the client end.
func connect(t *testing.T, factory sim.Factory) (*Simulator, <-chan error) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	served := make(chan error, 1)
	go func() {
		err := Serve(context.Background(), reqR, respW, factory)
		_ = respW.Close()
		_ = reqR.Close()
		served <- err
	}()
	client := NewSimulator(respR, reqW, nil)
	t.Cleanup(func() { _ = client.Close() })
	return client, served
}

func TestBridgeProxiesGridSimulator(t *testing.T) {
	scene := test.WriteGridScene(t, t.TempDir(), "val", "grid")
	client, served := connect(t, gridsim.Factory{})
	require.NoError(t, client.open(scene, test.GridSettings()))

	objects, err := client.SemanticObjects()
	require.NoError(t, err)
	require.Len(t, objects, 4)
	assert.Equal(t, "chair", objects[0].Category)

	state, err := client.InitializeAgent()
	require.NoError(t, err)
	assert.Equal(t, model.Vec3{X: 1.5, Y: 0, Z: 1.5}, state.Position)

	d, found, err := client.GeodesicDistance(state.Position, objects[0].Center)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 11.0, d)

	path, err := client.GreedyPath(objects[0].Center)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, model.ActionStop, path[len(path)-1])

	frame, err := client.Step(model.ActionTurnRight)
	require.NoError(t, err)
	assert.Equal(t, 16, frame.Width)
	assert.Len(t, frame.RGB, 16*16*3)

	moved, err := client.AgentState()
	require.NoError(t, err)
	assert.Equal(t, state.Position, moved.Position)
	require.NoError(t, client.SetAgentState(state))

	require.NoError(t, client.Close())
	require.NoError(t, <-served)
	require.NoError(t, client.Close())

	_, err = client.SemanticObjects()
	assert.ErrorIs(t, err, model.ErrSimulatorFault)
}

func TestBridgeMapsGreedyFollowerErrors(t *testing.T) {
	scene := test.WriteGridScene(t, t.TempDir(), "val", "grid")
	client, _ := connect(t, gridsim.Factory{})
	require.NoError(t, client.open(scene, test.GridSettings()))
	_, err := client.InitializeAgent()
	require.NoError(t, err)

	_, err = client.GreedyPath(model.Vec3{X: 2.5, Y: 3.5, Z: 1.5})
	assert.ErrorIs(t, err, sim.ErrGreedyFollower)
	assert.NotErrorIs(t, err, model.ErrSimulatorFault)

	_, err = client.Step(model.Action("jump"))
	assert.ErrorIs(t, err, model.ErrSimulatorFault)
}

func TestBridgeOpenFailures(t *testing.T) {
	client, _ := connect(t, gridsim.Factory{})
	_, err := client.SemanticObjects()
	assert.ErrorIs(t, err, model.ErrSimulatorFault)

	dir := t.TempDir()
	missing := model.Scene{Name: "missing", GeometryPath: filepath.Join(dir, "missing.yaml"), SemanticPath: filepath.Join(dir, "missing.semantic.yaml")}
	err = client.open(missing, test.GridSettings())
	assert.ErrorIs(t, err, model.ErrSimulatorFault)
}

func TestServeStopsAtEOF(t *testing.T) {
	r, w := io.Pipe()
	require.NoError(t, w.Close())
	assert.NoError(t, Serve(context.Background(), r, io.Discard, gridsim.Factory{}))
}

func TestFactoryRequiresCommand(t *testing.T) {
	_, err := Factory{}.Open(context.Background(), model.Scene{}, test.GridSettings())
	assert.Error(t, err)
}
