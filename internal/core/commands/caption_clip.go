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
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/caption"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// CaptionClip fills in the caption of a recorded clip with the scene's
// ParamSynthesizer and publishes it under ParamClip.
type CaptionClip struct {
	cor.BaseCommand
}

func NewCaptionClip(name string) *CaptionClip {
	out := &CaptionClip{BaseCommand: *cor.NewBaseCommand(name)}
	out.OutputParamName = ParamClip
	return out
}

func (c *CaptionClip) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamSynthesizer) != nil
}

func (c *CaptionClip) Execute(context cor.Context) {
	clip := context.Get(c.GetInputParam()).(*model.CaptionedClip)
	synthesizer := context.Get(ParamSynthesizer).(*caption.Synthesizer)
	clip.Caption = synthesizer.Caption(clip.Category)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), clip)
}
