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

package cloud_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"google.golang.org/genai"
)

type scriptedModel struct {
	failures int
	calls    int
	contents []*genai.Content
}

func (s *scriptedModel) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.calls++
	s.contents = contents
	if s.calls <= s.failures {
		return nil, errors.New("resource exhausted")
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "Category: object recognition\n"}, {Text: "Question: What is it?"}}}},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5},
	}, nil
}

func TestGenerateMultiModalResponseRetries(t *testing.T) {
	meter := otel.Meter("cloud-test")
	in, err := meter.Int64Counter("test.tokens.input")
	require.NoError(t, err)
	out, err := meter.Int64Counter("test.tokens.output")
	require.NoError(t, err)
	retries, err := meter.Int64Counter("test.retries")
	require.NoError(t, err)

	handle := &scriptedModel{failures: 1}
	model := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-test", handle, 0)
	content := cloud.NewVideoContent("gs://bucket/scene/object_chair.mp4", "video/mp4", "Describe it.")

	text, err := cloud.GenerateMultiModalResponse(context.Background(), in, out, retries, cloud.RetryPolicy{MaxAttempts: 2}, model, content)
	require.NoError(t, err)
	assert.Equal(t, "Category: object recognition\nQuestion: What is it?", text)
	assert.Equal(t, 2, handle.calls)

	require.Len(t, handle.contents, 1)
	parts := handle.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "gs://bucket/scene/object_chair.mp4", parts[0].FileData.FileURI)
	assert.Equal(t, "video/mp4", parts[0].FileData.MIMEType)
	assert.Equal(t, "Describe it.", parts[1].Text)
}

func TestQuotaAwareModelWaitsForContext(t *testing.T) {
	handle := &scriptedModel{}
	model := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-test", handle, 1)

	_, err := model.GenerateContent(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = model.GenerateContent(ctx, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, handle.calls)
}

func TestResponseTextHandlesEmptyResponses(t *testing.T) {
	assert.Equal(t, "", cloud.ResponseText(nil))
	assert.Equal(t, "", cloud.ResponseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))
}
