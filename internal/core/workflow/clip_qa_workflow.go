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

package workflow

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/annotation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/commands"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// ClipQAWorkflow generates question-answer responses for clips. Execute
// consumes a clip batch notification from cor.CtxIn, as delivered by a
// Pub/Sub listener; RunTasks processes an explicit task list.
type ClipQAWorkflow struct {
	cor.BaseCommand
	generativeAIModel *cloud.QuotaAwareGenerativeAIModel
	instruction       string
	store             *annotation.ResponseStore
	policy            cloud.RetryPolicy
	numberOfWorkers   int
	chain             cor.Chain
	generator         cor.Command
}

func (w *ClipQAWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// RunTasks generates responses for tasks and returns the joined errors of
// the clips that failed.
func (w *ClipQAWorkflow) RunTasks(ctx context.Context, tasks []model.ClipAnnotationTask) error {
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.ParamTasks, tasks)
	w.generator.Execute(chainCtx)
	return chainCtx.Err()
}

func (w *ClipQAWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: decode the notification into one task per uploaded clip.
	out.AddCommand(commands.NewClipBatchTriggerReader("clip-batch-trigger-reader"))

	// Step 2: ask the model about every clip not answered yet.
	out.AddCommand(w.generator)

	w.chain = out
}

// NewClipQAWorkflow stores responses in store, asking the model with
// instruction under policy.
func NewClipQAWorkflow(
	genModel *cloud.QuotaAwareGenerativeAIModel,
	instruction string,
	store *annotation.ResponseStore,
	policy cloud.RetryPolicy,
	numberOfWorkers int) *ClipQAWorkflow {
	w := &ClipQAWorkflow{
		BaseCommand:       *cor.NewBaseCommand("clip-qa-workflow"),
		generativeAIModel: genModel,
		instruction:       instruction,
		store:             store,
		policy:            policy,
		numberOfWorkers:   numberOfWorkers,
	}
	w.generator = commands.NewClipQAGenerator("generate-clip-qa", genModel, instruction, store, policy, numberOfWorkers)
	w.initializeChain()
	return w
}

// NewClipQAPipeline builds the workflow for the configured annotation model.
func NewClipQAPipeline(config *cloud.Config, serviceClients *cloud.ServiceClients, store *annotation.ResponseStore) (*ClipQAWorkflow, error) {
	genModel, ok := serviceClients.AgentModels[config.Annotation.Model]
	if !ok {
		return nil, fmt.Errorf("agent model %q is not configured", config.Annotation.Model)
	}
	return NewClipQAWorkflow(
		genModel,
		config.PromptTemplates.QAInstruction,
		store,
		cloud.NewRetryPolicy(config.Retry),
		config.Annotation.WorkerCount), nil
}
