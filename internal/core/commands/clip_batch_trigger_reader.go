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
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/annotation"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// ClipBatchTriggerReader decodes a clip batch notification and turns each
// uploaded clip into an annotation task. Input: the message text.
// Output: ParamTasks.
type ClipBatchTriggerReader struct {
	cor.BaseCommand
}

func NewClipBatchTriggerReader(name string) *ClipBatchTriggerReader {
	out := &ClipBatchTriggerReader{BaseCommand: *cor.NewBaseCommand(name)}
	out.OutputParamName = ParamTasks
	return out
}

func (c *ClipBatchTriggerReader) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	var batch model.ClipBatchNotification
	if err := json.Unmarshal([]byte(in), &batch); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal clip batch: %w", err))
		return
	}
	tasks := make([]model.ClipAnnotationTask, 0, len(batch.Clips))
	for i, row := range batch.Clips {
		if row == nil || row.VideoUrl == "" {
			continue
		}
		tasks = append(tasks, model.ClipAnnotationTask{
			RecordID: i,
			Video:    row.RelativePath,
			FileURI:  row.VideoUrl,
			MIMEType: annotation.VideoMIMEType,
		})
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(ParamBatch, &batch)
	context.Add(c.GetOutputParam(), tasks)
}
