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
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/navigation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlaceAgent samples a start position far enough from the target object
// and moves the agent there. Output: the start model.AgentState.
type PlaceAgent struct {
	cor.BaseCommand
}

func NewPlaceAgent(name string) *PlaceAgent {
	out := &PlaceAgent{BaseCommand: *cor.NewBaseCommand(name)}
	out.InputParamName = ParamObject
	return out
}

func (c *PlaceAgent) IsExecutable(context cor.Context) bool {
	return context != nil &&
		context.GetContext() != nil &&
		context.Get(c.GetInputParam()) != nil &&
		context.Get(ParamAgent) != nil
}

func (c *PlaceAgent) Execute(context cor.Context) {
	object := context.Get(c.GetInputParam()).(model.SemanticObject)
	agent := context.Get(ParamAgent).(*navigation.Agent)
	trace.SpanFromContext(context.GetContext()).SetAttributes(
		attribute.String("object.id", object.ID),
		attribute.String("object.category", object.Category),
	)

	start, err := agent.Place(object.Center)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("placing agent for %s: %w", object.Category, err))
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), start)
}
