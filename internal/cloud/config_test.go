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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	test "github.com/jaycherian/gcp-go-embodied-datagen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	config := cloud.NewConfig()
	assert.Equal(t, int64(42), config.Simulator.Seed)
	assert.Equal(t, 1000, config.Simulator.MaxFrames)
	assert.Equal(t, 10.0, config.Navigation.MinGeodesicDistance)
	assert.Equal(t, 100, config.Navigation.MaxPlacementAttempts)
	assert.Equal(t, 0.5, config.Navigation.FloorHeightThreshold)
	assert.Equal(t, 30, config.HM3D.MaxNumObjects)
	assert.Equal(t, 1, config.HM3D.WorkerCount)
	assert.Len(t, config.HM3D.Prompts, 10)
	assert.Equal(t, 30, config.Video.FPS)
	assert.Contains(t, config.AgentModels, config.Annotation.Model)
}

func TestLoadConfigOverlay(t *testing.T) {
	config := test.GetConfig()
	assert.Equal(t, "grid", config.Simulator.Backend)
	assert.Equal(t, 16, config.Simulator.Width)
	assert.Equal(t, ".yaml", config.HM3D.GeometryExtension)
	assert.Equal(t, time.Duration(0), config.Retry.InitialBackoff.Duration)
	assert.Equal(t, time.Minute, cloud.NewConfig().Retry.MaxBackoff.Duration)
	// Values only present in the base file survive the overlay.
	assert.Equal(t, "embodied-clip-batches-sub", config.TopicSubscriptions["ClipBatchTopic"].Name)
	assert.Equal(t, 15*time.Minute, config.API.SignedURLTTL.Duration)
}

func TestLoadConfigRejectsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[retry]\ninitial_backoff = \"soon\"\n"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "missing")

	err := cloud.LoadConfig(cloud.NewConfig())
	assert.Error(t, err)
}

func TestLoadConfigWithoutFilesKeepsDefaults(t *testing.T) {
	t.Setenv(cloud.EnvConfigFilePrefix, t.TempDir())
	t.Setenv(cloud.EnvConfigRuntime, "")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, cloud.NewConfig().HM3D, config.HM3D)

	base, overlay := cloud.ConfigFiles()
	assert.Equal(t, ".env.toml", filepath.Base(base))
	assert.Equal(t, ".env.test.toml", filepath.Base(overlay))
}

// The QA parser reads plain-text Category/Question/Short answer blocks, so
// the annotation model must not be switched to JSON mode by any runtime.
func TestQAModelAnswersInPlainText(t *testing.T) {
	for _, runtime := range []string{"test", "local", "missing"} {
		t.Setenv(cloud.EnvConfigFilePrefix, test.ConfigDir())
		t.Setenv(cloud.EnvConfigRuntime, runtime)
		config := cloud.NewConfig()
		require.NoError(t, cloud.LoadConfig(config))

		qa, ok := config.AgentModels[config.Annotation.Model]
		require.True(t, ok, runtime)
		assert.Equal(t, "text/plain", qa.OutputFormat, runtime)
		assert.Equal(t, "text/plain", cloud.NewGenerateContentConfig(qa).ResponseMIMEType, runtime)
	}
	assert.Equal(t, "text/plain", cloud.NewConfig().AgentModels["qa-flash"].OutputFormat)
}

// Without an overlay the generator drives real HM3D scenes through the
// Habitat sidecar shipped in the repository.
func TestBaseConfigUsesHabitatSidecar(t *testing.T) {
	t.Setenv(cloud.EnvConfigFilePrefix, test.ConfigDir())
	t.Setenv(cloud.EnvConfigRuntime, "missing")
	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))

	for _, c := range []*cloud.Config{config, cloud.NewConfig()} {
		assert.Equal(t, "bridge", c.Simulator.Backend)
		assert.Equal(t, ".glb", c.HM3D.GeometryExtension)
		require.NotEmpty(t, c.Simulator.BridgeArgs)
		script := filepath.Join(test.ConfigDir(), "..", c.Simulator.BridgeArgs[0])
		assert.FileExists(t, script)
	}
}

// The [publisher] section and the Publisher interface live side by side in
// this package.
func TestPublisherSectionDecodes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[publisher]\ntopic = \"embodied-clip-batches\"\n"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "missing")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, cloud.PublisherSection{Topic: "embodied-clip-batches"}, config.Publisher)

	var _ cloud.Publisher = (*cloud.TopicPublisher)(nil)
}
