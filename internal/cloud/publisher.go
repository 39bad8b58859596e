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

package cloud

import (
	"context"

	"cloud.google.com/go/pubsub"
)

// Publisher sends one message and returns its server id.
type Publisher interface {
	Publish(ctx context.Context, data []byte) (string, error)
}

// TopicPublisher publishes to a Pub/Sub topic.
type TopicPublisher struct {
	topic *pubsub.Topic
}

// NewTopicPublisher returns a publisher for topicID.
func NewTopicPublisher(client *pubsub.Client, topicID string) *TopicPublisher {
	return &TopicPublisher{topic: client.Topic(topicID)}
}

// Publish blocks until the server acknowledged the message.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte) (string, error) {
	return p.topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
}

// Stop flushes pending messages.
func (p *TopicPublisher) Stop() {
	p.topic.Stop()
}
