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

// Package cloud holds the application configuration and the Google Cloud
// plumbing shared by the generator commands: service clients, the quota
// aware Gemini wrapper, the retry policy, the Pub/Sub listener and the
// remote asset slot cache.
//
// Configuration is loaded from TOML. NewConfig returns a fully defaulted
// Config, so files only need to carry the values that differ.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings disables content blocking for QA generation; the
// inputs are synthetic indoor walkthroughs.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// DefaultPrompts are the human turns paired with a generated caption.
var DefaultPrompts = []string{
	"Can you please provide a brief description of the video?",
	"Describe the content of the video.",
	"What is happening in the video? Please describe it.",
	"Can you summarize the key events or actions in the video?",
	"Describe the visual elements and any notable features in the video.",
	"Provide a narrative description of the video.",
	"What's in the video?",
	"What can you see in this video?",
	"What's happening in the video?",
	"What is the main focus of the video?",
}

// DefaultIgnoredNouns are answer nouns that say nothing about an object.
var DefaultIgnoredNouns = []string{
	"end", "wall", "floor", "ceiling", "items", "c", "l", "left", "right", "center", "-", "room",
}

// DefaultQAInstruction asks the model for one question per category.
const DefaultQAInstruction = `You are an intelligent embodied agent that can answer questions. You will be shown a video that was collected from a single location.

Your task is to generate a question for each of the following categories: object recognition, attribute recognition, object state recognition, object localisation, spatial reasoning, functional reasoning, world knowledge.

Ask diverse questions and give corresponding short answers. Include questions asking about the visual content of the video. The questions you posed can include the actions and behaviors of people or objects in the video, the chronological order of events, and causal relationships. Only include questions that have definite answers. Do not ask any questions that cannot be answered confidently.

Don't use headers. You should use the following format for each category:
Category: <category>
Question: <question>
Short answer: <answer>

Assistant:
`

// Duration decodes TOML strings such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Simulator selects and parameterizes the simulator backend.
type Simulator struct {
	Backend        string   `toml:"backend"` // "grid" or "bridge".
	Width          int      `toml:"width"`
	Height         int      `toml:"height"`
	HFOV           float64  `toml:"hfov"`
	ColorSensor    bool     `toml:"color_sensor"`
	DepthSensor    bool     `toml:"depth_sensor"`
	SemanticSensor bool     `toml:"semantic_sensor"`
	Seed           int64    `toml:"seed"`
	MaxFrames      int      `toml:"max_frames"`
	DefaultAgent   int      `toml:"default_agent"`
	BridgeCommand  string   `toml:"bridge_command"` // Executable serving the bridge protocol on stdin/stdout.
	BridgeArgs     []string `toml:"bridge_args"`
}

// Navigation holds the start placement limits.
type Navigation struct {
	MinGeodesicDistance  float64 `toml:"min_geodesic_distance"`
	MaxPlacementAttempts int     `toml:"max_placement_attempts"`
	FloorHeightThreshold float64 `toml:"floor_height_threshold"`
}

// HM3D configures the video and caption generation run.
type HM3D struct {
	SceneRoot          string   `toml:"scene_root"`
	Split              string   `toml:"split"`
	GeometryExtension  string   `toml:"geometry_extension"`
	SemanticSuffix     string   `toml:"semantic_suffix"`
	DatasetConfig      string   `toml:"dataset_config"`
	OutputRoot         string   `toml:"output_root"`
	AnnotationsPath    string   `toml:"annotations_path"`
	FrequencyTablePath string   `toml:"frequency_table_path"` // Saved table; built from OpenEQAPath when blank.
	OpenEQAPath        string   `toml:"open_eqa_path"`
	MaxNumObjects      int      `toml:"max_num_objects"`
	WorkerCount        int      `toml:"worker_count"`
	Prompts            []string `toml:"prompts"`
	CaptionTemplates   []string `toml:"caption_templates"`
}

// Vocabulary controls frequency table construction.
type Vocabulary struct {
	Ignore []string `toml:"ignore"`
	TopK   int      `toml:"top_k"`
}

// Video configures the encoder.
type Video struct {
	FfmpegCommand string `toml:"ffmpeg_command"`
	Codec         string `toml:"codec"`
	FPS           int    `toml:"fps"`
	Validate      bool   `toml:"validate"`
}

// Storage names the Cloud Storage locations used by the generator.
type Storage struct {
	OutputBucket string `toml:"output_bucket"` // Clips are uploaded here when set.
	OutputPrefix string `toml:"output_prefix"`
	ScratchDir   string `toml:"scratch_dir"` // Local slot for remote scene assets.
}

// BigQueryDataSource names the clip table.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`
	ClipTable   string `toml:"clip_table"`
}

// PublisherSection names the topic receiving per-scene clip notifications.
type PublisherSection struct {
	Topic string `toml:"topic"`
}

// TopicSubscription configures one Pub/Sub subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// VertexAiLLMModel configures a generative model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // Requests per minute.
}

// PromptTemplates holds model prompts.
type PromptTemplates struct {
	QAInstruction string `toml:"qa_instruction"`
}

// Annotation configures the QA annotation pass.
type Annotation struct {
	Model         string `toml:"model"` // Key into AgentModels.
	InputPath     string `toml:"input_path"`
	ResponsesPath string `toml:"responses_path"`
	OutputPath    string `toml:"output_path"`
	VideoBucket   string `toml:"video_bucket"`
	FlushEvery    int    `toml:"flush_every"`
	WorkerCount   int    `toml:"worker_count"`
	Seed          int64  `toml:"seed"`
}

// Retry is the bounded exponential backoff shared by remote calls.
type Retry struct {
	MaxAttempts    int      `toml:"max_attempts"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
	Multiplier     float64  `toml:"multiplier"`
}

// Telemetry selects exporters and logging.
type Telemetry struct {
	Exporter string `toml:"exporter"` // "none", "gcp" or "prometheus".
	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`
}

// API configures the status server.
type API struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	SignedURLTTL   Duration `toml:"signed_url_ttl"`
}

// Config aggregates every section.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
	} `toml:"application"`
	Simulator          Simulator                    `toml:"simulator"`
	Navigation         Navigation                   `toml:"navigation"`
	HM3D               HM3D                         `toml:"hm3d"`
	Vocabulary         Vocabulary                   `toml:"vocabulary"`
	Video              Video                        `toml:"video"`
	Storage            Storage                      `toml:"storage"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	Publisher          PublisherSection             `toml:"publisher"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	Annotation         Annotation                   `toml:"annotation"`
	Retry              Retry                        `toml:"retry"`
	Telemetry          Telemetry                    `toml:"telemetry"`
	API                API                          `toml:"api"`
}

// NewConfig returns a Config populated with the generator defaults.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
	c.Application.Name = "embodied-datagen"
	c.Application.GoogleLocation = "us-central1"

	c.Simulator = Simulator{
		Backend:        "bridge",
		Width:          512,
		Height:         512,
		HFOV:           90,
		ColorSensor:    true,
		SemanticSensor: true,
		Seed:           42,
		MaxFrames:      1000,
		BridgeCommand:  "python3",
		BridgeArgs:     []string{"sidecar/habitat_bridge.py"},
	}
	c.Navigation = Navigation{
		MinGeodesicDistance:  10,
		MaxPlacementAttempts: 100,
		FloorHeightThreshold: 0.5,
	}
	c.HM3D = HM3D{
		SceneRoot:         "../matterport_data/scene_datasets/hm3d/",
		Split:             "train",
		GeometryExtension: ".glb",
		SemanticSuffix:    ".semantic",
		DatasetConfig:     "hm3d_annotated_basis.scene_dataset_config.json",
		OutputRoot:        "../output/hm3d_gen_videos/",
		AnnotationsPath:   "../output/ft_json/hm3d_captions.json",
		OpenEQAPath:       "../data/open-eqa-v0.json",
		MaxNumObjects:     30,
		WorkerCount:       1,
		Prompts:           append([]string(nil), DefaultPrompts...),
	}
	c.Vocabulary = Vocabulary{
		Ignore: append([]string(nil), DefaultIgnoredNouns...),
		TopK:   10,
	}
	c.Video = Video{
		FfmpegCommand: "ffmpeg",
		Codec:         "libx264",
		FPS:           30,
		Validate:      true,
	}
	c.Storage.ScratchDir = "../output/scene_cache/"
	c.BigQueryDataSource = BigQueryDataSource{DatasetName: "embodied_datagen", ClipTable: "clips"}
	c.AgentModels["qa-flash"] = VertexAiLLMModel{
		Model:        "gemini-1.5-flash",
		Temperature:  0.4,
		TopP:         0.95,
		TopK:         32,
		MaxTokens:    2048,
		OutputFormat: "text/plain",
		RateLimit:    5,
	}
	c.PromptTemplates.QAInstruction = DefaultQAInstruction
	c.Annotation = Annotation{
		Model:         "qa-flash",
		ResponsesPath: "../output/ft_json/gemini_responses.json",
		OutputPath:    "../output/ft_json/hm3d_qa.json",
		FlushEvery:    5,
		WorkerCount:   1,
		Seed:          42,
	}
	c.Retry = Retry{
		MaxAttempts:    3,
		InitialBackoff: Duration{10 * time.Second},
		MaxBackoff:     Duration{time.Minute},
		Multiplier:     2,
	}
	c.Telemetry = Telemetry{Exporter: "none", LogFile: "app.log", LogLevel: "info"}
	c.API = API{Addr: ":8080", AllowedOrigins: []string{"*"}, SignedURLTTL: Duration{15 * time.Minute}}
	return c
}
