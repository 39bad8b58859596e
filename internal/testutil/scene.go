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

package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/sim/gridsim"
	"github.com/stretchr/testify/require"
)

// Grid scene file naming, for catalog.Options.
const (
	GridExtension      = gridsim.Extension
	GridSemanticSuffix = ".semantic"
)

// GridSceneGeometry is a 12 x 4 room of one metre cells on the ground level
// plus a small closed room on an upper level. Every ground cell is reachable
// from every other ground cell.
const GridSceneGeometry = `cell_size: 1.0
levels:
  - height: 0.0
    rows:
      - "##############"
      - "#............#"
      - "#............#"
      - "#............#"
      - "#............#"
      - "##############"
  - height: 3.0
    rows:
      - "#####"
      - "#...#"
      - "#####"
`

// GridSceneSemantics places a chair and a table in opposite corners of the
// ground room, at least ten metres apart from a good share of the floor,
// and a bed on the upper level that no ground start can reach.
const GridSceneSemantics = `objects:
  - id: "1"
    category: chair
    center: [12.5, 0.5, 1.5]
    sizes: [0.6, 1.0, 0.6]
  - id: "2"
    category: table
    center: [1.5, 0.4, 4.5]
    sizes: [1.2, 0.8, 0.8]
  - id: "3"
    category: bed
    center: [2.5, 3.5, 1.5]
    sizes: [2.0, 0.6, 1.6]
  - id: "4"
    category: wall
    center: [0.5, 1.5, 0.5]
    sizes: [0.1, 3.0, 6.0]
`

// GridSceneTable is a frequency table covering the fixture categories
// except "wall".
func GridSceneTable() model.FrequencyTable {
	return model.FrequencyTable{"chair": 12, "table": 7, "bed": 3, "sofa": 2}
}

// GridSettings are simulator settings small enough for fast tests.
func GridSettings() sim.Settings {
	return sim.Settings{Width: 16, Height: 16, HFOV: 90, ColorSensor: true, Seed: 42, MaxFrames: 1000}
}

// WriteGridScene writes a scene directory split/<dir>/ with the fixture
// geometry and semantics and returns the scene as the catalog reports it.
func WriteGridScene(t testing.TB, root string, split string, name string) model.Scene {
	return WriteGridSceneWith(t, root, split, name, GridSceneGeometry, GridSceneSemantics)
}

// WriteGridSceneWith is WriteGridScene with custom documents.
func WriteGridSceneWith(t testing.TB, root string, split string, name string, geometry string, semantics string) model.Scene {
	t.Helper()
	dir := filepath.Join(root, split, "00000-"+name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	geometryPath := filepath.Join(dir, name+GridExtension)
	semanticPath := filepath.Join(dir, name+GridSemanticSuffix+GridExtension)
	require.NoError(t, os.WriteFile(geometryPath, []byte(geometry), 0o644))
	require.NoError(t, os.WriteFile(semanticPath, []byte(semantics), 0o644))
	return model.Scene{Name: name, GeometryPath: geometryPath, SemanticPath: semanticPath}
}
