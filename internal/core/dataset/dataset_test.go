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

package dataset_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clip(rel string, caption string) model.CaptionedClip {
	return model.CaptionedClip{RelativePath: rel, Caption: caption}
}

func TestAssemblerWritesDenseRecords(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ft_json", "captions.json")
	prompts := []string{"Describe the video.", "What's in the video?"}
	a, err := dataset.NewAssembler(out, prompts, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	a.Add(clip("v/scene_a/object_chair.mp4", "Walking to the chair."))
	require.NoError(t, a.Flush())
	a.Add(clip("v/scene_b/object_bed.mp4", "Walking to the bed."), clip("v/scene_b/object_sofa.mp4", "Walking to the sofa."))
	require.NoError(t, a.Flush())

	records, err := dataset.Load(out)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, i, r.ID)
		require.Len(t, r.Conversations, 2)
		assert.Equal(t, model.RoleHuman, r.Conversations[0].From)
		assert.True(t, strings.HasPrefix(r.Conversations[0].Value, model.VideoPrefix))
		assert.Contains(t, prompts, strings.TrimPrefix(r.Conversations[0].Value, model.VideoPrefix))
		assert.Equal(t, model.RoleModel, r.Conversations[1].From)
	}
	assert.Equal(t, "v/scene_b/object_sofa.mp4", records[2].Video)
	assert.Equal(t, "Walking to the sofa.", records[2].Conversations[1].Value)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestAssemblerFlushesEmptyDataset(t *testing.T) {
	out := filepath.Join(t.TempDir(), "captions.json")
	a, err := dataset.NewAssembler(out, []string{"p"}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Flush())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
}

func TestAssemblerNeedsPrompts(t *testing.T) {
	_, err := dataset.NewAssembler("x.json", nil, nil)
	assert.ErrorIs(t, err, dataset.ErrNoPrompts)
}

func TestWriteJSONDoesNotEscapeHTML(t *testing.T) {
	out := filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, dataset.WriteJSON(out, []string{"<video>\nhi"}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<video>")
}

func TestVideoPaths(t *testing.T) {
	root := filepath.Join("out", "hm3d_gen_videos")
	assert.Equal(t, filepath.Join(root, "scene_TEEsavR23oF.basis", "object_chair.mp4"), dataset.VideoPath(root, "TEEsavR23oF.basis", "chair", 0))
	assert.Equal(t, filepath.Join(root, "scene_x", "object_chair.mp4"), dataset.VideoPath(root, "x", "chair", 1))
	assert.Equal(t, filepath.Join(root, "scene_x", "object_chair_2.mp4"), dataset.VideoPath(root, "x", "chair", 2))
	assert.Equal(t, filepath.Join(root, "scene_x", "object_chair_3.mp4"), dataset.VideoPath(root, "x", "chair", 3))
	assert.Equal(t, filepath.Join(root, "scene_x", "object_tv_monitor.mp4"), dataset.VideoPath(root, "x", "tv/monitor", 0))

	assert.Equal(t, "hm3d_gen_videos/scene_x/object_chair.mp4", dataset.RelativeVideoPath(dataset.VideoPath(root, "x", "chair", 0)))
	assert.Equal(t, "scene_x/object_chair.mp4", dataset.RelativeVideoPath("scene_x/object_chair.mp4"))
}

func TestReindex(t *testing.T) {
	records := []model.DatasetRecord{{ID: 4}, {ID: 9}}
	dataset.Reindex(records)
	assert.Equal(t, 0, records[0].ID)
	assert.Equal(t, 1, records[1].ID)
}
