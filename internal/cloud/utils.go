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

// Package cloud wraps the Google Cloud services used by the generator. This
// file holds helpers shared by the package: layered TOML configuration
// loading and a retried, metered call to a generative model.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // Directory holding the configuration files.
	EnvConfigRuntime    = "GCP_RUNTIME"       // Runtime overlay, "test" when unset.
	DefaultRuntime      = "test"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFiles returns the base and runtime overlay file names in load order.
func ConfigFiles() (base string, overlay string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}
	runtime := os.Getenv(EnvConfigRuntime)
	if runtime == "" {
		runtime = DefaultRuntime
	}
	base = prefix + ConfigFileBaseName + ConfigFileExtension
	overlay = prefix + ConfigFileBaseName + ConfigSeparator + runtime + ConfigFileExtension
	return base, overlay
}

// LoadConfig decodes the base file and then the runtime overlay into
// baseConfig. Missing files are skipped so defaults survive.
//
// Inputs:
//   - baseConfig: Pointer to the struct to fill, normally from NewConfig.
//
// Outputs:
//   - error: A file exists but is not valid TOML for baseConfig.
func LoadConfig(baseConfig interface{}) error {
	base, overlay := ConfigFiles()
	for _, name := range []string{base, overlay} {
		if !fileExists(name) {
			slog.Debug("configuration file not found", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Debug("loaded configuration file", "file", name)
	}
	return nil
}

// GenerateMultiModalResponse sends content to the model under the retry
// policy, records token usage and returns the concatenated candidate text.
//
// Inputs:
//   - ctx: Bounds every attempt and the backoff between them.
//   - inputTokenCounter, outputTokenCounter: Receive the usage metadata of
//     the successful response.
//   - retryCounter: Incremented once per attempt after the first.
//   - policy: Retry policy; only errors it classifies as transient retry.
//   - model: Rate limited model wrapper.
//   - content: Conversation sent as is.
//
// Outputs:
//   - string: Text of every candidate part.
//   - error: The last error once the policy gives up.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	policy RetryPolicy,
	model *QuotaAwareGenerativeAIModel,
	content []*genai.Content) (value string, err error) {

	var resp *genai.GenerateContentResponse
	attempt := 0
	err = policy.Do(ctx, func(ctx context.Context) error {
		if attempt > 0 {
			retryCounter.Add(ctx, 1)
		}
		attempt++
		var callErr error
		resp, callErr = model.GenerateContent(ctx, content)
		return callErr
	})
	if err != nil {
		return "", err
	}
	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	return ResponseText(resp), nil
}

// ResponseText concatenates every text part of every candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// NewVideoContent builds a single user turn with a video reference followed
// by the instruction text.
func NewVideoContent(fileURI string, mimeType string, instruction string) []*genai.Content {
	return []*genai.Content{
		{Parts: []*genai.Part{
			{FileData: &genai.FileData{FileURI: fileURI, MIMEType: mimeType}},
			{Text: instruction},
		}, Role: string(genai.RoleUser)},
	}
}
