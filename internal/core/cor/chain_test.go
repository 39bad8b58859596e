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

package cor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type suffixCommand struct {
	cor.BaseCommand
	suffix string
	runs   int
}

func newSuffix(name string, suffix string) *suffixCommand {
	return &suffixCommand{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix}
}

func (c *suffixCommand) Execute(context cor.Context) {
	c.runs++
	in := context.Get(c.GetInputParam()).(string)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), in+c.suffix)
}

type failCommand struct {
	cor.BaseCommand
	err error
}

func (c *failCommand) Execute(context cor.Context) {
	c.GetErrorCounter().Add(context.GetContext(), 1)
	context.AddError(c.GetName(), c.err)
	context.Add(c.GetOutputParam(), context.Get(c.GetInputParam()))
}

func newContext(in any) cor.Context {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	if in != nil {
		chCtx.Add(cor.CtxIn, in)
	}
	return chCtx
}

func TestChainPassesOutputForward(t *testing.T) {
	chain := cor.NewBaseChain("chain").AddCommand(newSuffix("a", "-a")).AddCommand(newSuffix("b", "-b"))
	chCtx := newContext("x")
	chain.Execute(chCtx)
	require.NoError(t, chCtx.Err())
	assert.Equal(t, "x-a-b", chCtx.Get(cor.CtxIn))
	assert.Nil(t, chCtx.Get(cor.CtxOut))
}

func TestChainStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	last := newSuffix("last", "-z")
	chain := cor.NewBaseChain("chain").
		AddCommand(&failCommand{BaseCommand: *cor.NewBaseCommand("fail"), err: boom}).
		AddCommand(last)
	chCtx := newContext("x")
	chain.Execute(chCtx)
	assert.ErrorIs(t, chCtx.Err(), boom)
	assert.Equal(t, 0, last.runs)
	assert.Contains(t, chCtx.GetErrors(), "fail")
}

func TestChainContinueOnFailure(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	chain := cor.NewBaseChain("chain").ContinueOnFailure(true).
		AddCommand(&failCommand{BaseCommand: *cor.NewBaseCommand("one"), err: first}).
		AddCommand(&failCommand{BaseCommand: *cor.NewBaseCommand("two"), err: second})
	chCtx := newContext("x")
	chain.Execute(chCtx)
	err := chCtx.Err()
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Equal(t, "first\nsecond", err.Error())
}

func TestChainSkipsCommandsWithoutInput(t *testing.T) {
	skipped := newSuffix("skipped", "-s")
	chain := cor.NewBaseChain("chain").AddCommand(skipped)
	chCtx := newContext(nil)
	assert.True(t, chain.IsExecutable(chCtx))
	chain.Execute(chCtx)
	assert.Equal(t, 0, skipped.runs)
	assert.False(t, chCtx.HasErrors())
	assert.NotNil(t, chCtx.GetContext())
}

func TestCustomParams(t *testing.T) {
	c := newSuffix("named", "!")
	c.InputParamName = "greeting"
	c.OutputParamName = "shout"
	chCtx := newContext(nil)
	assert.False(t, c.IsExecutable(chCtx))
	chCtx.Add("greeting", "hi")
	require.True(t, c.IsExecutable(chCtx))
	c.Execute(chCtx)
	assert.Equal(t, "hi!", chCtx.Get("shout"))
}

func TestCloseRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept")
	temp := filepath.Join(dir, "temp")
	require.NoError(t, os.WriteFile(kept, nil, 0o644))
	require.NoError(t, os.WriteFile(temp, nil, 0o644))

	chCtx := newContext(nil)
	chCtx.AddTempFile(temp)
	chCtx.AddTempFile(filepath.Join(dir, "never-created"))
	chCtx.Close()
	assert.NoFileExists(t, temp)
	assert.FileExists(t, kept)
	assert.Empty(t, chCtx.GetTempFiles())
}
