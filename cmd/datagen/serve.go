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

package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/api"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/services"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/telemetry"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated clips and signed streaming URLs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override [api] addr")
	return cmd
}

// NewRouter wires the status API to the clip table when BigQuery is
// available.
func NewRouter(config *cloud.Config, progress *api.Progress) *gin.Engine {
	opts := api.Options{
		ServiceName:    config.Application.Name,
		AllowedOrigins: config.API.AllowedOrigins,
		SignedURLTTL:   config.API.SignedURLTTL.Duration,
		Metrics:        config.Telemetry.Exporter == telemetry.ExporterPrometheus,
		Progress:       progress,
	}
	if state.cloud != nil && state.cloud.BiqQueryClient != nil {
		opts.Clips = &services.ClipService{
			BigqueryClient: state.cloud.BiqQueryClient,
			StorageClient:  state.cloud.StorageClient,
			IAMClient:      state.cloud.IAMClient,
			SignerEmail:    config.Application.SignerServiceAccountEmail,
			DatasetName:    config.BigQueryDataSource.DatasetName,
			ClipTable:      config.BigQueryDataSource.ClipTable,
		}
	}
	return api.NewRouter(opts)
}

func runServe(ctx context.Context, addr string) error {
	config := state.config
	if addr == "" {
		addr = config.API.Addr
	}
	if err := InitClients(ctx, cloud.ClientSet{Storage: true, BigQuery: true, IAM: true}); err != nil {
		return err
	}
	return api.NewServer(addr, NewRouter(config, api.NewProgress())).Run(ctx)
}
