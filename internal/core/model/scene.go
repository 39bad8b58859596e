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

package model

import (
	"sort"
	"strings"
)

// Scene identifies one navigable environment. It is immutable once the
// catalog has produced it.
type Scene struct {
	Name          string `json:"name"`           // Geometry file name without its extension.
	DatasetConfig string `json:"dataset_config"` // Scene dataset configuration shared by all scenes of a split.
	GeometryPath  string `json:"geometry_path"`  // Local path or gs:// URI of the geometry asset.
	SemanticPath  string `json:"semantic_path"`  // Local path or gs:// URI of the semantic annotation asset.
}

// IsRemote reports whether the scene assets live in Cloud Storage.
func (s Scene) IsRemote() bool {
	return IsRemotePath(s.GeometryPath)
}

// IsRemotePath reports whether p is a gs:// URI.
func IsRemotePath(p string) bool {
	return strings.HasPrefix(p, "gs://")
}

// SemanticObject is an annotated object instance inside a scene.
type SemanticObject struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Center   Vec3   `json:"center"` // Center of the axis-aligned bounding box.
	Sizes    Vec3   `json:"sizes"`  // Extents of the axis-aligned bounding box.
}

// FrequencyTable maps an object category to how often it appears in the
// reference question-answer corpus. Only categories present in the table are
// eligible for clip generation.
type FrequencyTable map[string]int

// Contains reports whether category is a key of the table.
func (f FrequencyTable) Contains(category string) bool {
	_, ok := f[category]
	return ok
}

// CategoryCount is a single entry of a frequency table.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// MostCommon returns up to n entries ordered by descending count, ties broken
// alphabetically. A non-positive n returns every entry.
func (f FrequencyTable) MostCommon(n int) []CategoryCount {
	out := make([]CategoryCount, 0, len(f))
	for k, v := range f {
		out = append(out, CategoryCount{Category: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
