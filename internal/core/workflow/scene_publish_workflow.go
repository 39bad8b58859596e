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
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/commands"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
)

// ScenePublisher holds the optional sinks of the scene publishing chain.
// A nil sink drops its step.
type ScenePublisher struct {
	Upload    commands.Uploader
	Bucket    string
	Prefix    string
	Inserter  commands.RowInserter
	Publisher cloud.Publisher
}

// ScenePublishWorkflow uploads the clips of a finished scene, records them
// in BigQuery and announces them on Pub/Sub. The context carries
// ParamScene and ParamClips.
type ScenePublishWorkflow struct {
	cor.BaseCommand
	runID  string
	sinks  ScenePublisher
	policy cloud.RetryPolicy
	chain  cor.Chain
}

func (w *ScenePublishWorkflow) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(commands.ParamClips) != nil
}

func (w *ScenePublishWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *ScenePublishWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	if w.sinks.Upload != nil && w.sinks.Bucket != "" {
		out.AddCommand(commands.NewGCSFileUpload("upload-clips", w.sinks.Upload, w.sinks.Bucket, w.sinks.Prefix, w.policy))
	}

	out.AddCommand(commands.NewClipBatchBuilder("build-clip-batch", w.runID))

	if w.sinks.Inserter != nil {
		out.AddCommand(commands.NewClipPersistToBigQuery("write-to-bigquery", w.sinks.Inserter, w.policy))
	}

	if w.sinks.Publisher != nil {
		out.AddCommand(commands.NewClipBatchPublish("publish-clip-batch", w.sinks.Publisher, w.policy))
	}

	w.chain = out
}

// NewScenePublishWorkflow returns the publishing chain of run runID.
func NewScenePublishWorkflow(runID string, sinks ScenePublisher, policy cloud.RetryPolicy) *ScenePublishWorkflow {
	w := &ScenePublishWorkflow{
		BaseCommand: *cor.NewBaseCommand("scene-publish-workflow"),
		runID:       runID,
		sinks:       sinks,
		policy:      policy,
	}
	w.initializeChain()
	return w
}

// NewScenePublishPipeline wires the publishing chain to the configured
// services. It returns nil when nothing is configured. The returned
// publisher, when not nil, must be stopped by the caller.
func NewScenePublishPipeline(config *cloud.Config, serviceClients *cloud.ServiceClients, runID string) (*ScenePublishWorkflow, *cloud.TopicPublisher) {
	var sinks ScenePublisher
	var topic *cloud.TopicPublisher
	if serviceClients.StorageClient != nil && config.Storage.OutputBucket != "" {
		sinks.Upload = commands.StorageUploader(serviceClients.StorageClient)
		sinks.Bucket = config.Storage.OutputBucket
		sinks.Prefix = config.Storage.OutputPrefix
	}
	if serviceClients.BiqQueryClient != nil && config.BigQueryDataSource.ClipTable != "" {
		sinks.Inserter = commands.TableInserter(serviceClients.BiqQueryClient, config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.ClipTable)
	}
	if serviceClients.PubsubClient != nil && config.Publisher.Topic != "" {
		topic = cloud.NewTopicPublisher(serviceClients.PubsubClient, config.Publisher.Topic)
		sinks.Publisher = topic
	}
	if sinks.Upload == nil && sinks.Inserter == nil && sinks.Publisher == nil {
		return nil, nil
	}
	return NewScenePublishWorkflow(runID, sinks, cloud.NewRetryPolicy(config.Retry)), topic
}
