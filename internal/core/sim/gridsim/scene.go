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

// Package gridsim is an in-process simulator over occupancy grids described
// in YAML. A scene is a stack of levels; each level is a grid of square cells
// where '.' is navigable floor and any other rune is an obstacle. Levels are
// not connected to each other, so points on different levels have no
// geodesic path.
//
// Geometry file (<name>.yaml):
//
//	cell_size: 0.5
//	levels:
//	  - height: 0.0
//	    rows:
//	      - "#####"
//	      - "#...#"
//	      - "#####"
//
// Semantic file (<name>.semantic.yaml):
//
//	objects:
//	  - id: "7"
//	    category: chair
//	    center: [1.25, 0.4, 0.75]
//	    sizes: [0.5, 0.8, 0.5]
package gridsim

import (
	"fmt"
	"math"
	"os"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"gopkg.in/yaml.v3"
)

const navigableRune = '.'

// Extension is the file extension of grid geometry and semantic files.
const Extension = ".yaml"

type geometryFile struct {
	CellSize float64     `yaml:"cell_size"`
	Levels   []levelFile `yaml:"levels"`
}

type levelFile struct {
	Height float64  `yaml:"height"`
	Rows   []string `yaml:"rows"`
}

type semanticFile struct {
	Objects []objectFile `yaml:"objects"`
}

type objectFile struct {
	ID       string    `yaml:"id"`
	Category string    `yaml:"category"`
	Center   []float64 `yaml:"center"`
	Sizes    []float64 `yaml:"sizes"`
}

type level struct {
	height    float64
	rows      int
	cols      int
	navigable []bool
}

func (l *level) index(row, col int) int {
	return row*l.cols + col
}

func (l *level) inBounds(row, col int) bool {
	return row >= 0 && row < l.rows && col >= 0 && col < l.cols
}

func (l *level) isNavigable(row, col int) bool {
	return l.inBounds(row, col) && l.navigable[l.index(row, col)]
}

type cell struct {
	level int
	row   int
	col   int
}

// grid is the parsed, immutable scene geometry.
type grid struct {
	cellSize float64
	levels   []*level
	cells    []cell // every navigable cell, in level/row/col order
}

func parseGeometry(data []byte) (*grid, error) {
	var gf geometryFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("failed to decode grid geometry: %w", err)
	}
	if gf.CellSize <= 0 {
		return nil, fmt.Errorf("grid geometry: cell_size must be positive, got %v", gf.CellSize)
	}
	if len(gf.Levels) == 0 {
		return nil, fmt.Errorf("grid geometry: no levels defined")
	}
	g := &grid{cellSize: gf.CellSize}
	for li, lf := range gf.Levels {
		if len(lf.Rows) == 0 {
			return nil, fmt.Errorf("grid geometry: level %d has no rows", li)
		}
		cols := len(lf.Rows[0])
		l := &level{height: lf.Height, rows: len(lf.Rows), cols: cols, navigable: make([]bool, len(lf.Rows)*cols)}
		for r, row := range lf.Rows {
			if len(row) != cols {
				return nil, fmt.Errorf("grid geometry: level %d row %d has %d columns, want %d", li, r, len(row), cols)
			}
			for c := 0; c < cols; c++ {
				if row[c] == navigableRune {
					l.navigable[l.index(r, c)] = true
					g.cells = append(g.cells, cell{level: li, row: r, col: c})
				}
			}
		}
		g.levels = append(g.levels, l)
	}
	return g, nil
}

func parseSemantics(data []byte) ([]model.SemanticObject, error) {
	var sf semanticFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to decode grid semantics: %w", err)
	}
	out := make([]model.SemanticObject, 0, len(sf.Objects))
	for i, o := range sf.Objects {
		if len(o.Center) != 3 || len(o.Sizes) != 3 {
			return nil, fmt.Errorf("grid semantics: object %d needs 3-component center and sizes", i)
		}
		id := o.ID
		if id == "" {
			id = fmt.Sprintf("%d", i)
		}
		out = append(out, model.SemanticObject{
			ID:       id,
			Category: o.Category,
			Center:   model.Vec3{X: o.Center[0], Y: o.Center[1], Z: o.Center[2]},
			Sizes:    model.Vec3{X: o.Sizes[0], Y: o.Sizes[1], Z: o.Sizes[2]},
		})
	}
	return out, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (g *grid) center(c cell) model.Vec3 {
	return model.Vec3{
		X: (float64(c.col) + 0.5) * g.cellSize,
		Y: g.levels[c.level].height,
		Z: (float64(c.row) + 0.5) * g.cellSize,
	}
}

// nearestLevel picks the level whose floor height is closest to y.
func (g *grid) nearestLevel(y float64) int {
	best, bestDelta := 0, math.Inf(1)
	for i, l := range g.levels {
		if d := math.Abs(l.height - y); d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return best
}

// rawCell maps p onto the cell containing it, navigable or not.
func (g *grid) rawCell(p model.Vec3) cell {
	return cell{
		level: g.nearestLevel(p.Y),
		row:   int(math.Floor(p.Z / g.cellSize)),
		col:   int(math.Floor(p.X / g.cellSize)),
	}
}

// locate returns the navigable cell containing p.
func (g *grid) locate(p model.Vec3) (cell, bool) {
	c := g.rawCell(p)
	return c, g.levels[c.level].isNavigable(c.row, c.col)
}

// snap returns the navigable cell closest to p on p's level.
func (g *grid) snap(p model.Vec3) (cell, bool) {
	if c, ok := g.locate(p); ok {
		return c, true
	}
	li := g.nearestLevel(p.Y)
	var best cell
	found := false
	bestDist := math.Inf(1)
	for _, c := range g.cells {
		if c.level != li {
			continue
		}
		ctr := g.center(c)
		dx, dz := ctr.X-p.X, ctr.Z-p.Z
		if d := dx*dx + dz*dz; d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

// bfs returns the step distance from origin to every cell of its level, -1
// for unreachable cells.
func (g *grid) bfs(origin cell) []int {
	l := g.levels[origin.level]
	dist := make([]int, len(l.navigable))
	for i := range dist {
		dist[i] = -1
	}
	dist[l.index(origin.row, origin.col)] = 0
	queue := []cell{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range directions {
			nr, nc := cur.row+d[0], cur.col+d[1]
			if !l.isNavigable(nr, nc) || dist[l.index(nr, nc)] >= 0 {
				continue
			}
			dist[l.index(nr, nc)] = dist[l.index(cur.row, cur.col)] + 1
			queue = append(queue, cell{level: cur.level, row: nr, col: nc})
		}
	}
	return dist
}

// directions are (row, col) offsets indexed by heading. Heading h faces yaw
// h*90 degrees; heading 0 faces -Z and positive yaw turns left.
var directions = [4][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}}

func headingFromYaw(yaw float64) int {
	h := int(math.Round(yaw/(math.Pi/2))) % 4
	if h < 0 {
		h += 4
	}
	return h
}

func yawFromHeading(h int) float64 {
	return float64(h) * math.Pi / 2
}
