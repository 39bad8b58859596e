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

// Package cloud wraps the Google Cloud services used by the generator. This
// file builds the shared ServiceClients value every command receives.
//
// Logic Flow:
//  1. A command decides which clients it needs through a ClientSet; the
//     hm3d command only asks for the sinks it is configured to use.
//  2. NewCloudServiceClients creates Storage, Pub/Sub, BigQuery, IAM
//     credentials and GenAI clients in that order.
//  3. Pub/Sub listeners and quota aware models are derived from the
//     topic_subscriptions and agent_models sections and stored by name.
//  4. If any client fails, the ones already created are closed before the
//     error is returned.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients holds the Google Cloud clients of one process. Clients
// that were not requested are nil.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BiqQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient
	PubSubListeners map[string]*PubSubListener              // Keyed by the topic_subscriptions name.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Keyed by the agent_models name.
}

// ClientSet selects which clients NewCloudServiceClients creates.
type ClientSet struct {
	Storage  bool
	PubSub   bool
	GenAI    bool
	BigQuery bool
	IAM      bool
}

// AllClients requests every client.
func AllClients() ClientSet {
	return ClientSet{Storage: true, PubSub: true, GenAI: true, BigQuery: true, IAM: true}
}

// Close releases every open client.
func (c *ServiceClients) Close() {
	var err error
	if c.StorageClient != nil {
		err = errors.Join(err, c.StorageClient.Close())
	}
	if c.PubsubClient != nil {
		err = errors.Join(err, c.PubsubClient.Close())
	}
	if c.BiqQueryClient != nil {
		err = errors.Join(err, c.BiqQueryClient.Close())
	}
	if c.IAMClient != nil {
		err = errors.Join(err, c.IAMClient.Close())
	}
	if err != nil {
		slog.Warn("error closing service clients", "error", err)
	}
}

// NewGenerateContentConfig converts a model section. An empty OutputFormat
// leaves the response MIME type to the service default.
func NewGenerateContentConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		TopP:             genai.Ptr[float32](values.TopP),
		TopK:             genai.Ptr[float32](values.TopK),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
	}
	if values.SystemInstructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	return cfg
}

// NewCloudServiceClients creates the requested clients for the configured
// project. On error every client created so far is closed.
//
// Inputs:
//   - ctx: Context used to dial the services.
//   - config: Application configuration; project, location, subscriptions
//     and agent models are read from it.
//   - set: Clients to create. Use AllClients for the serve command.
//
// Outputs:
//   - *ServiceClients: Requested clients, the others left nil.
//   - error: The first client that could not be created.
func NewCloudServiceClients(ctx context.Context, config *Config, set ClientSet) (_ *ServiceClients, err error) {
	clients := &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			clients.Close()
		}
	}()
	projectID := config.Application.GoogleProjectId

	if set.Storage {
		if clients.StorageClient, err = storage.NewClient(ctx); err != nil {
			return nil, fmt.Errorf("error creating storage client: %w", err)
		}
	}
	if set.PubSub {
		if clients.PubsubClient, err = pubsub.NewClient(ctx, projectID); err != nil {
			return nil, fmt.Errorf("error creating pubsub client: %w", err)
		}
		for subKey, values := range config.TopicSubscriptions {
			listener, err := NewPubSubListener(clients.PubsubClient, values.Name, nil)
			if err != nil {
				return nil, err
			}
			clients.PubSubListeners[subKey] = listener
		}
	}
	if set.BigQuery {
		if clients.BiqQueryClient, err = bigquery.NewClient(ctx, projectID); err != nil {
			return nil, fmt.Errorf("error creating bigquery client: %w", err)
		}
	}
	if set.IAM {
		if clients.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
			return nil, fmt.Errorf("error creating iam credentials client: %w", err)
		}
	}
	if set.GenAI {
		clients.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			Project:  projectID,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating genai client: %w", err)
		}
		for amKey, values := range config.AgentModels {
			clients.AgentModels[amKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, clients.GenAIClient.Models, values.RateLimit)
			slog.Debug("agent model configured", "name", amKey, "model", values.Model, "rate_limit", values.RateLimit)
		}
	}
	return clients, nil
}
