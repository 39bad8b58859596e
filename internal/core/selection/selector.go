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

// Package selection chooses which annotated objects of a scene get a clip.
package selection

import (
	"math/rand"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// Select keeps the objects whose category appears in table. When at most
// maxCount remain they are all returned in scene order. Otherwise exactly
// maxCount distinct objects are drawn without replacement, each draw weighted
// by the category frequency among the objects still available.
func Select(objects []model.SemanticObject, table model.FrequencyTable, maxCount int, rng *rand.Rand) []model.SemanticObject {
	eligible := make([]model.SemanticObject, 0, len(objects))
	for _, o := range objects {
		if table.Contains(o.Category) {
			eligible = append(eligible, o)
		}
	}
	if maxCount <= 0 {
		return []model.SemanticObject{}
	}
	if len(eligible) <= maxCount {
		return eligible
	}

	weights := make([]float64, len(eligible))
	for i, o := range eligible {
		if w := table[o.Category]; w > 0 {
			weights[i] = float64(w)
		}
	}

	out := make([]model.SemanticObject, 0, maxCount)
	for len(out) < maxCount {
		idx := draw(weights, rng)
		out = append(out, eligible[idx])
		weights[idx] = -1 // taken
	}
	return out
}

// draw returns the index of an available entry. Entries marked -1 are taken;
// if every available weight is zero the draw is uniform over them.
func draw(weights []float64, rng *rand.Rand) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total > 0 {
		r := rng.Float64() * total
		last := -1
		for i, w := range weights {
			if w <= 0 {
				continue
			}
			last = i
			if r < w {
				return i
			}
			r -= w
		}
		if last >= 0 {
			return last
		}
	}
	available := make([]int, 0, len(weights))
	for i, w := range weights {
		if w == 0 {
			available = append(available, i)
		}
	}
	return available[rng.Intn(len(available))]
}
