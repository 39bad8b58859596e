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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/vocab"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/telemetry"
)

// StateManager holds what every subcommand shares.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	shutdown func(context.Context) error
	closeLog func() error
}

var state = &StateManager{}

// SetupOS points the configuration loader at the configuration directory
// and runtime overlay unless the environment already does.
func SetupOS(configDir string, runtime string) error {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok || configDir != "" {
		if configDir == "" {
			configDir = "configs"
		}
		if err := os.Setenv(cloud.EnvConfigFilePrefix, configDir); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok || runtime != "" {
		if runtime == "" {
			runtime = "local"
		}
		if err := os.Setenv(cloud.EnvConfigRuntime, runtime); err != nil {
			return err
		}
	}
	return nil
}

// GetConfig loads the configuration once.
func GetConfig() (*cloud.Config, error) {
	if state.config == nil {
		if err := SetupOS(flags.configDir, flags.runtime); err != nil {
			return nil, fmt.Errorf("failed to setup os: %w", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			return nil, err
		}
		state.config = config
	}
	return state.config, nil
}

// InitState loads the configuration and installs logging and telemetry.
func InitState(ctx context.Context) error {
	config, err := GetConfig()
	if err != nil {
		return err
	}
	if flags.logLevel != "" {
		config.Telemetry.LogLevel = flags.logLevel
	}
	state.closeLog, err = telemetry.SetupLogging(config.Telemetry.LogLevel, config.Telemetry.LogFile)
	if err != nil {
		return err
	}
	slog.Info("logging initialized", "level", config.Telemetry.LogLevel)

	state.shutdown, err = telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to setup OpenTelemetry: %w", err)
	}
	slog.Info("telemetry initialized", "exporter", config.Telemetry.Exporter)
	return nil
}

// InitClients creates the requested cloud clients. Requests are dropped
// when no project is configured so local runs need no credentials.
func InitClients(ctx context.Context, set cloud.ClientSet) error {
	if state.config.Application.GoogleProjectId == "" && !set.Storage {
		slog.Info("no google project configured, running without cloud services")
		state.cloud = &cloud.ServiceClients{
			PubSubListeners: make(map[string]*cloud.PubSubListener),
			AgentModels:     make(map[string]*cloud.QuotaAwareGenerativeAIModel),
		}
		return nil
	}
	if state.config.Application.GoogleProjectId == "" {
		set = cloud.ClientSet{Storage: set.Storage}
	}
	clients, err := cloud.NewCloudServiceClients(ctx, state.config, set)
	if err != nil {
		return err
	}
	state.cloud = clients
	return nil
}

// CloseState flushes telemetry and closes clients and the log file.
func CloseState() {
	if state.cloud != nil {
		state.cloud.Close()
	}
	if state.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := state.shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}
	if state.closeLog != nil {
		_ = state.closeLog()
	}
}

// LoadFrequencyTable reads the saved table, or builds it from the OpenEQA
// corpus and saves it when a table path is configured but missing.
func LoadFrequencyTable(config *cloud.Config) (model.FrequencyTable, error) {
	if p := config.HM3D.FrequencyTablePath; p != "" {
		table, err := vocab.LoadTable(p)
		if err == nil {
			slog.Info("loaded frequency table", "path", p, "categories", len(table))
			return table, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load frequency table: %w", err)
		}
	}
	table, err := BuildFrequencyTable(config)
	if err != nil {
		return nil, err
	}
	if p := config.HM3D.FrequencyTablePath; p != "" {
		if err := vocab.SaveTable(p, table); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// BuildFrequencyTable counts the answer nouns of the OpenEQA corpus.
func BuildFrequencyTable(config *cloud.Config) (model.FrequencyTable, error) {
	questions, err := vocab.LoadOpenEQA(config.HM3D.OpenEQAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenEQA corpus: %w", err)
	}
	table, err := vocab.Build(questions, vocab.ProseTagger{}, config.Vocabulary.Ignore)
	if err != nil {
		return nil, err
	}
	vocab.LogSummary(table, config.Vocabulary.TopK)
	return table, nil
}
