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
	goctx "context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/annotation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ClipQAGenerator asks the model for question-answer pairs about each clip
// and stores the raw responses. Clips already in the store are skipped.
// Failed clips are recorded as errors; the others are still stored.
// Input: ParamTasks. Output: the number of new responses.
type ClipQAGenerator struct {
	cor.BaseCommand
	generativeAIModel        *cloud.QuotaAwareGenerativeAIModel
	instruction              string
	store                    *annotation.ResponseStore
	policy                   cloud.RetryPolicy
	numberOfWorkers          int
	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

func NewClipQAGenerator(
	name string,
	model *cloud.QuotaAwareGenerativeAIModel,
	instruction string,
	store *annotation.ResponseStore,
	policy cloud.RetryPolicy,
	numberOfWorkers int) *ClipQAGenerator {
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	out := &ClipQAGenerator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: model,
		instruction:       instruction,
		store:             store,
		policy:            policy,
		numberOfWorkers:   numberOfWorkers,
	}
	out.InputParamName = ParamTasks
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.retry", out.GetName()))
	return out
}

type qaJob struct {
	ctx  goctx.Context
	span trace.Span
	task model.ClipAnnotationTask
}

type qaResult struct {
	task model.ClipAnnotationTask
	err  error
}

func (s *ClipQAGenerator) Execute(context cor.Context) {
	tasks := context.Get(s.GetInputParam()).([]model.ClipAnnotationTask)

	jobs := make(chan *qaJob, len(tasks))
	results := make(chan *qaResult, len(tasks))
	var wg sync.WaitGroup
	for w := 0; w < s.numberOfWorkers; w++ {
		wg.Add(1)
		go s.worker(jobs, results, &wg)
	}

	skipped := 0
	for _, task := range tasks {
		if s.store.Has(task.Video) {
			skipped++
			continue
		}
		ctx, span := s.Tracer.Start(context.GetContext(), fmt.Sprintf("%s_genai_clip", s.GetName()))
		span.SetAttributes(attribute.Int("record.id", task.RecordID), attribute.String("video", task.Video))
		jobs <- &qaJob{ctx: ctx, span: span, task: task}
	}
	close(jobs)
	wg.Wait()
	close(results)

	added := 0
	for r := range results {
		if r.err != nil {
			s.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(fmt.Sprintf("%s:%s", s.GetName(), r.task.Video), r.err)
			continue
		}
		added++
	}
	if err := s.store.Flush(); err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("failed to save responses: %w", err))
		return
	}
	slog.Info("generated clip QA", "new", added, "skipped", skipped, "failed", len(tasks)-skipped-added)
	if added > 0 {
		s.GetSuccessCounter().Add(context.GetContext(), int64(added))
	}
	context.Add(s.GetOutputParam(), added)
}

func (s *ClipQAGenerator) worker(jobs <-chan *qaJob, results chan<- *qaResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		results <- s.generate(j)
	}
}

func (s *ClipQAGenerator) generate(j *qaJob) *qaResult {
	defer j.span.End()
	content := cloud.NewVideoContent(j.task.FileURI, j.task.MIMEType, s.instruction)
	text, err := cloud.GenerateMultiModalResponse(j.ctx, s.geminiInputTokenCounter, s.geminiOutputTokenCounter, s.geminiRetryCounter, s.policy, s.generativeAIModel, content)
	if err == nil {
		err = s.store.Add(model.QAResponse{RecordID: j.task.RecordID, Video: j.task.Video, Text: text})
	}
	if err != nil {
		j.span.SetStatus(codes.Error, err.Error())
		slog.Warn("clip QA generation failed", "video", j.task.Video, "error", err)
		return &qaResult{task: j.task, err: fmt.Errorf("generating QA for %s: %w", j.task.Video, err)}
	}
	j.span.SetStatus(codes.Ok, "success")
	return &qaResult{task: j.task}
}
