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

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// RowInserter streams rows into a table. *bigquery.Inserter implements it.
type RowInserter interface {
	Put(ctx goctx.Context, src interface{}) error
}

// TableInserter returns the streaming inserter of dataset.table.
func TableInserter(client *bigquery.Client, dataset string, table string) RowInserter {
	return client.Dataset(dataset).Table(table).Inserter()
}

// ClipPersistToBigQuery inserts the rows of a clip batch. Input: ParamBatch.
type ClipPersistToBigQuery struct {
	cor.BaseCommand
	inserter RowInserter
	policy   cloud.RetryPolicy
}

func NewClipPersistToBigQuery(name string, inserter RowInserter, policy cloud.RetryPolicy) *ClipPersistToBigQuery {
	out := &ClipPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), inserter: inserter, policy: policy}
	out.InputParamName = ParamBatch
	return out
}

func (s *ClipPersistToBigQuery) Execute(context cor.Context) {
	batch := context.Get(s.GetInputParam()).(*model.ClipBatchNotification)
	if len(batch.Clips) == 0 {
		s.GetSuccessCounter().Add(context.GetContext(), 1)
		return
	}
	err := s.policy.Do(context.GetContext(), func(ctx goctx.Context) error {
		return s.inserter.Put(ctx, batch.Clips)
	})
	if err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("bigquery insert failed for scene '%s': %w", batch.Scene, err))
		return
	}
	s.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("persisted clips", "scene", batch.Scene, "rows", len(batch.Clips))
}
