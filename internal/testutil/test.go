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

// Package test holds fixtures shared by the package tests: configuration
// loading, small grid scenes and a frame encoder that needs no ffmpeg.
package test

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
)

// HandleErr reports err as a test failure.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ConfigDir returns the repository configs directory.
func ConfigDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs")
}

// SetupOS points configuration loading at the test overlay.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, ConfigDir())
	if err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig returns a freshly loaded test configuration, so tests may
// modify it freely.
func GetConfig() *cloud.Config {
	if err := SetupOS(); err != nil {
		log.Fatalf("failed to setup environment for test: %v\n", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		log.Fatalf("failed to load test configuration: %v\n", err)
	}
	return config
}

// GetTestClipBatchMessageText is a Pub/Sub payload announcing two clips.
func GetTestClipBatchMessageText() string {
	return `{
  "run_id": "0b8e3c1a-3a55-4d0b-9d1e-5f9b2c7e8a10",
  "scene": "TEEsavR23oF.basis",
  "clips": [
    {
      "id": "8f0f8b0e-2d7c-5a55-9c1c-2f1d0c9e6b11",
      "run_id": "0b8e3c1a-3a55-4d0b-9d1e-5f9b2c7e8a10",
      "scene": "TEEsavR23oF.basis",
      "object_id": "12",
      "category": "chair",
      "relative_path": "hm3d_gen_videos/scene_TEEsavR23oF.basis/object_chair.mp4",
      "video_url": "gs://embodied-clips/hm3d_gen_videos/scene_TEEsavR23oF.basis/object_chair.mp4",
      "caption": "The person is walking towards the chair.",
      "frame_count": 42,
      "create_date": "2024-10-11T03:04:08.672Z"
    },
    {
      "id": "1c2d9e55-7b4f-5e0a-8d3b-6a7c8e9f0a12",
      "run_id": "0b8e3c1a-3a55-4d0b-9d1e-5f9b2c7e8a10",
      "scene": "TEEsavR23oF.basis",
      "object_id": "31",
      "category": "table",
      "relative_path": "hm3d_gen_videos/scene_TEEsavR23oF.basis/object_table.mp4",
      "video_url": "gs://embodied-clips/hm3d_gen_videos/scene_TEEsavR23oF.basis/object_table.mp4",
      "caption": "I see someone walking up to the table.",
      "frame_count": 37,
      "create_date": "2024-10-11T03:04:08.672Z"
    }
  ]
}`
}

// GetTestOpenEQAText is a small question-answer corpus.
func GetTestOpenEQAText() string {
	return `[
  {"question": "What is next to the sofa?", "answer": "A wooden table", "episode_history": "hm3d-v0/000-hm3d-BFRyYbPCCPE"},
  {"question": "Where can I sit?", "answer": "On the chair near the table", "episode_history": "hm3d-v0/000-hm3d-BFRyYbPCCPE"},
  {"question": "What is on the wall?", "answer": "A painting on the wall", "episode_history": "hm3d-v0/001-hm3d-TPhiubUHKcP"},
  {"question": "What color are the chairs?", "answer": "The chairs are black", "episode_history": "hm3d-v0/001-hm3d-TPhiubUHKcP"}
]`
}
