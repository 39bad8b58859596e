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

// Package dataset lays out generated videos on disk and assembles the
// conversational annotation records that reference them.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Layout prefixes.
const (
	SceneDirPrefix  = "scene_"
	VideoNamePrefix = "object_"
	VideoExtension  = ".mp4"
	relativeDepth   = 3
)

var categoryReplacer = strings.NewReplacer("/", "_", "\\", "_")

// SceneDir returns the directory holding the videos of scene.
func SceneDir(root string, scene string) string {
	return filepath.Join(root, SceneDirPrefix+scene)
}

// VideoPath returns {root}/scene_{scene}/object_{category}.mp4. occurrence
// counts the clips of category within the scene from 1; the first clip has no
// suffix and the k-th clip, for k > 1, gets a _k suffix.
func VideoPath(root string, scene string, category string, occurrence int) string {
	name := VideoNamePrefix + categoryReplacer.Replace(category)
	if occurrence > 1 {
		name = fmt.Sprintf("%s_%d", name, occurrence)
	}
	return filepath.Join(SceneDir(root, scene), name+VideoExtension)
}

// RelativeVideoPath keeps the last three components of path, joined with
// forward slashes: {output dir}/scene_{scene}/object_{category}.mp4.
func RelativeVideoPath(path string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	if len(parts) > relativeDepth {
		parts = parts[len(parts)-relativeDepth:]
	}
	return strings.Join(parts, "/")
}
