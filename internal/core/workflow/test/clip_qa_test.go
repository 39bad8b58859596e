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

package workflow_test

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/annotation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-embodied-datagen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

// fakeGemini answers every request with the example response unless the
// video URI is listed in fail.
type fakeGemini struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeGemini) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	uri := contents[0].Parts[0].FileData.FileURI
	if f.fail[uri] {
		return nil, errors.New("video unavailable")
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: model.GetExampleQAResponse()}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 120, CandidatesTokenCount: 80},
	}, nil
}

func newQAWorkflow(t *testing.T, gemini *fakeGemini, responses string) (*workflow.ClipQAWorkflow, *annotation.ResponseStore) {
	t.Helper()
	store, err := annotation.OpenResponseStore(responses, config.Annotation.FlushEvery)
	require.NoError(t, err)
	genModel := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-test", gemini, 0)
	return workflow.NewClipQAWorkflow(genModel, config.PromptTemplates.QAInstruction, store, cloud.NewRetryPolicy(config.Retry), 2), store
}

func TestClipQAChain(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "clip-qa-test")
	defer span.End()

	responses := filepath.Join(t.TempDir(), "gemini_responses.json")
	gemini := &fakeGemini{}
	qa, store := newQAWorkflow(t, gemini, responses)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(traceCtx)
	chainCtx.Add(cor.CtxIn, test.GetTestClipBatchMessageText())
	qa.Execute(chainCtx)

	for k, err := range chainCtx.GetErrors() {
		logger.Error("chain error", "command", k, "error", err)
	}
	if chainCtx.HasErrors() {
		span.SetStatus(codes.Error, "failed to execute clip qa test")
	}
	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, 2, gemini.calls)
	assert.Equal(t, 2, store.Len())

	records := annotation.Assemble(store.Responses(), rand.New(rand.NewSource(config.Annotation.Seed)))
	require.Len(t, records, 2)
	for _, r := range records {
		require.NotEmpty(t, r.Conversations)
		assert.Contains(t, r.Conversations[0].Value, model.VideoPrefix)
	}

	// A redelivered batch is answered from the store.
	reopened, err := annotation.OpenResponseStore(responses, config.Annotation.FlushEvery)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	again := cor.NewBaseContext()
	again.SetContext(traceCtx)
	again.Add(cor.CtxIn, test.GetTestClipBatchMessageText())
	qa.Execute(again)
	assert.False(t, again.HasErrors())
	assert.Equal(t, 2, gemini.calls)
	span.SetStatus(codes.Ok, "passed - clip qa test")
}

func TestClipQARejectsMalformedMessages(t *testing.T) {
	qa, _ := newQAWorkflow(t, &fakeGemini{}, filepath.Join(t.TempDir(), "responses.json"))
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, "{not json")

	qa.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}

func TestClipQARunTasksKeepsSuccessfulResponses(t *testing.T) {
	records := []model.DatasetRecord{
		model.NewCaptionRecord(0, "hm3d_gen_videos/scene_A/object_chair.mp4", "Describe the video.", "The person is walking towards the chair."),
		model.NewCaptionRecord(1, "hm3d_gen_videos/scene_A/object_table.mp4", "Describe the video.", "The person is walking towards the table."),
	}
	tasks, err := annotation.TasksFromRecords(records, "embodied-clips")
	require.NoError(t, err)
	gemini := &fakeGemini{fail: map[string]bool{tasks[1].FileURI: true}}
	qa, store := newQAWorkflow(t, gemini, filepath.Join(t.TempDir(), "responses.json"))

	err = qa.RunTasks(ctx, tasks)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "object_table.mp4")
	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Has(records[0].Video))
	// Two attempts for the failing clip, one for the other.
	assert.Equal(t, 3, gemini.calls)
}
