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

// Package commands holds the chain commands of the generator workflows.
// Commands exchange data through named context parameters; the per-object
// chain expects ParamAgent, ParamScene, ParamObject, ParamVideoPath and
// ParamSynthesizer to be set before it runs.
package commands

// Context parameter names.
const (
	ParamAgent       = "__AGENT__"       // *navigation.Agent for the current scene.
	ParamScene       = "__SCENE__"       // model.Scene being processed.
	ParamObject      = "__OBJECT__"      // model.SemanticObject the agent walks toward.
	ParamVideoPath   = "__VIDEO_PATH__"  // Destination of the clip.
	ParamSynthesizer = "__SYNTHESIZER__" // *caption.Synthesizer seeded for the scene.
	ParamClip        = "__CLIP__"        // *model.CaptionedClip produced by the object chain.
	ParamClips       = "__CLIPS__"       // []*model.CaptionedClip of a finished scene.
	ParamBatch       = "__BATCH__"       // *model.ClipBatchNotification.
	ParamTasks       = "__TASKS__"       // []model.ClipAnnotationTask.
)
