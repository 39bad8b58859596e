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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// ClipBatchPublish announces a finished scene on a Pub/Sub topic.
// Input: ParamBatch.
type ClipBatchPublish struct {
	cor.BaseCommand
	publisher cloud.Publisher
	policy    cloud.RetryPolicy
}

func NewClipBatchPublish(name string, publisher cloud.Publisher, policy cloud.RetryPolicy) *ClipBatchPublish {
	out := &ClipBatchPublish{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher, policy: policy}
	out.InputParamName = ParamBatch
	return out
}

func (c *ClipBatchPublish) Execute(context cor.Context) {
	batch := context.Get(c.GetInputParam()).(*model.ClipBatchNotification)
	data, err := json.Marshal(batch)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to marshal clip batch: %w", err))
		return
	}
	var id string
	err = c.policy.Do(context.GetContext(), func(ctx goctx.Context) error {
		var publishErr error
		id, publishErr = c.publisher.Publish(ctx, data)
		return publishErr
	})
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to publish clip batch for %s: %w", batch.Scene, err))
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("published clip batch", "scene", batch.Scene, "clips", len(batch.Clips), "message_id", id)
}
