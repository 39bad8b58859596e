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

// Command datagen generates embodied navigation videos with captions from
// HM3D scenes, annotates them with question answer pairs and serves the
// progress of a run.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var flags struct {
	configDir string
	runtime   string
	logLevel  string
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "datagen",
		Short:         "Embodied video and caption dataset generator",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return InitState(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&flags.configDir, "config", "", "directory holding .env.toml and its runtime overlays (default \"configs\")")
	root.PersistentFlags().StringVar(&flags.runtime, "runtime", "", "runtime overlay to apply (default \"local\")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newHM3DCommand(), newVocabCommand(), newAnnotateCommand(), newServeCommand())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err := newRootCommand().ExecuteContext(ctx)
	CloseState()
	if err != nil {
		os.Exit(1)
	}
}
