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

package commands

import (
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// ClipBatchBuilder turns the clips of a scene into a notification with one
// row per clip. Input: ParamClips. Output: ParamBatch.
type ClipBatchBuilder struct {
	cor.BaseCommand
	runID string
}

func NewClipBatchBuilder(name string, runID string) *ClipBatchBuilder {
	out := &ClipBatchBuilder{BaseCommand: *cor.NewBaseCommand(name), runID: runID}
	out.InputParamName = ParamClips
	out.OutputParamName = ParamBatch
	return out
}

func (c *ClipBatchBuilder) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamScene) != nil
}

func (c *ClipBatchBuilder) Execute(context cor.Context) {
	clips := context.Get(c.GetInputParam()).([]*model.CaptionedClip)
	scene := context.Get(ParamScene).(model.Scene)

	batch := &model.ClipBatchNotification{RunID: c.runID, Scene: scene.Name, Clips: make([]*model.ClipRow, 0, len(clips))}
	for _, clip := range clips {
		batch.Clips = append(batch.Clips, model.NewClipRow(c.runID, clip))
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), batch)
}
