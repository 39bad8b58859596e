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
	"fmt"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/vocab"
	"github.com/spf13/cobra"
)

func newVocabCommand() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Build the object category frequency table from the OpenEQA answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := state.config
			if input != "" {
				config.HM3D.OpenEQAPath = input
			}
			if output == "" {
				output = config.HM3D.FrequencyTablePath
			}
			if output == "" {
				return fmt.Errorf("no output path: set --out or [hm3d] frequency_table_path")
			}
			table, err := BuildFrequencyTable(config)
			if err != nil {
				return err
			}
			return vocab.SaveTable(output, table)
		},
	}
	cmd.Flags().StringVar(&input, "open-eqa", "", "override [hm3d] open_eqa_path")
	cmd.Flags().StringVar(&output, "out", "", "table file (default [hm3d] frequency_table_path)")
	return cmd
}
