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
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/navigation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlanPath asks the greedy follower for the action sequence from the placed
// start to the goal. Input: the start state. Output: model.ActionSequence.
type PlanPath struct {
	cor.BaseCommand
}

func NewPlanPath(name string) *PlanPath {
	return &PlanPath{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *PlanPath) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamAgent) != nil
}

func (c *PlanPath) Execute(context cor.Context) {
	agent := context.Get(ParamAgent).(*navigation.Agent)
	actions, err := agent.PlanPath()
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("planning path: %w", err))
		return
	}
	trace.SpanFromContext(context.GetContext()).SetAttributes(attribute.Int("path.length", len(actions)))
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), actions)
}
