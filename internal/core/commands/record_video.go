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
	"fmt"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/dataset"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/navigation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/video"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordVideo replays the planned actions and encodes the observations to
// ParamVideoPath. Input: model.ActionSequence. Output: *model.CaptionedClip
// without a caption.
type RecordVideo struct {
	cor.BaseCommand
	recorder *video.Recorder
}

func NewRecordVideo(name string, recorder *video.Recorder) *RecordVideo {
	return &RecordVideo{BaseCommand: *cor.NewBaseCommand(name), recorder: recorder}
}

func (c *RecordVideo) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) &&
		context.Get(ParamAgent) != nil &&
		context.Get(ParamScene) != nil &&
		context.Get(ParamObject) != nil &&
		context.Get(ParamVideoPath) != nil
}

func (c *RecordVideo) Execute(context cor.Context) {
	actions := context.Get(c.GetInputParam()).(model.ActionSequence)
	agent := context.Get(ParamAgent).(*navigation.Agent)
	scene := context.Get(ParamScene).(model.Scene)
	object := context.Get(ParamObject).(model.SemanticObject)
	path := context.Get(ParamVideoPath).(string)

	if err := agent.BeginRecording(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	frames, err := c.recorder.Record(context.GetContext(), agent.Simulator(), actions, path)
	if finishErr := agent.Finish(err); err == nil && finishErr != nil {
		err = finishErr
	}
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("recording %s: %w", path, err))
		return
	}

	trace.SpanFromContext(context.GetContext()).SetAttributes(attribute.Int("video.frames", frames))
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), &model.CaptionedClip{
		Scene:        scene.Name,
		ObjectID:     object.ID,
		Category:     object.Category,
		VideoPath:    path,
		RelativePath: dataset.RelativeVideoPath(path),
		FrameCount:   frames,
	})
}
