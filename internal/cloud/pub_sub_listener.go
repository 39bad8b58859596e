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
// file turns a Pub/Sub subscription into a source of chain executions: every
// message received becomes the input of one cor.Command run.
//
// Logic Flow:
//  1. NewCloudServiceClients creates one PubSubListener per configured
//     topic_subscriptions entry, without a command.
//  2. The caller attaches its chain with SetCommand, for example the QA
//     workflow of the annotate command.
//  3. Listen starts a goroutine around Subscription.Receive.
//  4. Each message body is placed under cor.CtxIn of a fresh BaseContext
//     carrying a "receive-message" span.
//  5. The message is acked when the chain recorded no errors and is left
//     for redelivery otherwise, which gives at-least-once processing.
//  6. Receive returns when ctx is cancelled; the channel returned by Listen
//     is then closed.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener feeds each message of a subscription into a command. A
// message is acknowledged only when the command finished without errors;
// otherwise it is left for redelivery.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription // Subscription messages are pulled from.
	command      cor.Command          // Executed once per message.
}

// NewPubSubListener binds subscriptionID to command.
//
// Inputs:
//   - pubsubClient: Client of the project owning the subscription.
//   - subscriptionID: Name of the subscription, e.g. "embodied-clip-batches-sub".
//   - command: Chain run once per message. May be nil and attached later
//     with SetCommand.
//
// Outputs:
//   - *PubSubListener: The listener, not yet receiving.
//   - error: Always nil; kept so construction can validate later.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen receives messages in the background until ctx is cancelled. The
// returned channel is closed when receiving stops.
func (m *PubSubListener) Listen(ctx context.Context) <-chan struct{} {
	slog.Info("listening", "subscription", m.subscription.String())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tracer := otel.Tracer("message-listener")
		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(ctx, "receive-message")
			defer span.End()
			span.SetAttributes(attribute.String("msg.id", msg.ID))

			chainCtx := cor.NewBaseContext()
			defer chainCtx.Close()
			chainCtx.SetContext(spanCtx)
			chainCtx.Add(cor.CtxIn, string(msg.Data))

			m.command.Execute(chainCtx)

			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}
			span.SetStatus(codes.Error, "failed")
			for name, e := range chainCtx.GetErrors() {
				slog.Error("error executing chain", "command", name, "error", e, "message", msg.ID)
			}
		})
		if err != nil {
			slog.Error("error receiving data", "subscription", m.subscription.String(), "error", err)
		}
	}()
	return done
}
