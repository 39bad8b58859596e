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

// Package cor is a small chain-of-responsibility framework. Commands read
// their input from a shared Context, write their output back to it and
// record failures under their own name. A Chain is itself a Command, so
// chains nest.
//
// The generator builds its workflows from it. Per object: place the agent,
// plan the path, record the video and caption the clip. Per scene: upload
// the clips, build the batch, write it to BigQuery and publish it. Each
// step is a Command with its own counters and span; a scene job skips an
// object when Context.Err reports a failure.
//
// Interfaces:
//   - Context: Key/value state, recorded errors and temporary files of one
//     execution.
//   - Command: A named, traced and metered unit of work.
//   - Chain: An ordered list of commands that is itself a Command.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Well-known keys carrying data between consecutive commands of a chain.
// After each command the chain moves CtxOut into CtxIn.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the mutable state shared by the commands of one execution.
type Context interface {
	SetContext(context context.Context)
	GetContext() context.Context
	Add(key string, value interface{}) Context
	AddError(key string, err error)
	GetErrors() map[string]error
	// Err joins every recorded error, or returns nil.
	Err() error
	Get(key string) interface{}
	Remove(key string)
	HasErrors() bool
	// AddTempFile registers a file removed by Close.
	AddTempFile(file string)
	GetTempFiles() []string
	Close()
}

type Executable interface {
	Execute(context Context)
}

// Command is a named, instrumented unit of work.
type Command interface {
	Executable
	GetName() string
	GetInputParam() string
	GetOutputParam() string
	IsExecutable(context Context) bool
	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain runs commands in order and stops at the first error unless told
// to continue.
type Chain interface {
	Command
	ContinueOnFailure(bool) Chain
	AddCommand(command Command) Chain
}
