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

// Package workflow combines commands into the generator pipelines: the
// per-object clip chain, the scene job and its worker pool, the per-scene
// publishing chain and the question-answer annotation chain.
package workflow

import (
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/commands"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/video"
)

// ObjectClipWorkflow walks the agent toward one object and produces a
// captioned clip. The context must carry ParamAgent, ParamScene,
// ParamObject, ParamVideoPath and ParamSynthesizer; the clip is stored
// under ParamClip.
type ObjectClipWorkflow struct {
	cor.BaseCommand
	recorder *video.Recorder
	chain    cor.Chain
}

func (w *ObjectClipWorkflow) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(commands.ParamObject) != nil
}

func (w *ObjectClipWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *ObjectClipWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Start state at least the minimum geodesic distance from the object.
	out.AddCommand(commands.NewPlaceAgent("place-agent"))

	// Greedy follower actions from the start state to the object.
	out.AddCommand(commands.NewPlanPath("plan-path"))

	// Replay and encode; the file only exists when every frame was written.
	out.AddCommand(commands.NewRecordVideo("record-video", w.recorder))

	out.AddCommand(commands.NewCaptionClip("caption-clip"))

	w.chain = out
}

// NewObjectClipWorkflow returns the per-object chain recording with recorder.
func NewObjectClipWorkflow(recorder *video.Recorder) *ObjectClipWorkflow {
	w := &ObjectClipWorkflow{
		BaseCommand: *cor.NewBaseCommand("object-clip-workflow"),
		recorder:    recorder,
	}
	w.initializeChain()
	return w
}
