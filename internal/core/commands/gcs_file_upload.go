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
	"path"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/cor"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"golang.org/x/sync/errgroup"
)

// DefaultUploadParallelism bounds concurrent uploads per scene.
const DefaultUploadParallelism = 4

const fallbackVideoMIME = "video/mp4"

// Uploader copies a local file to a Cloud Storage object.
type Uploader func(ctx goctx.Context, src string, obj cloud.GCSObject) error

// StorageUploader uploads with the storage client.
func StorageUploader(client *storage.Client) Uploader {
	return func(ctx goctx.Context, src string, obj cloud.GCSObject) error {
		return cloud.UploadFile(ctx, client, src, obj)
	}
}

// GCSFileUpload uploads the clips of a scene to bucket under
// prefix/<relative path> and records the resulting gs:// URI on each clip.
// Input: ParamClips. Output: the same clips.
type GCSFileUpload struct {
	cor.BaseCommand
	upload      Uploader
	bucket      string
	prefix      string
	policy      cloud.RetryPolicy
	parallelism int
}

func NewGCSFileUpload(name string, upload Uploader, bucket string, prefix string, policy cloud.RetryPolicy) *GCSFileUpload {
	out := &GCSFileUpload{
		BaseCommand: *cor.NewBaseCommand(name),
		upload:      upload,
		bucket:      bucket,
		prefix:      prefix,
		policy:      policy,
		parallelism: DefaultUploadParallelism,
	}
	out.InputParamName = ParamClips
	return out
}

// ObjectFor returns the destination of a clip.
func (c *GCSFileUpload) ObjectFor(clip *model.CaptionedClip) cloud.GCSObject {
	return cloud.GCSObject{Bucket: c.bucket, Name: path.Join(c.prefix, clip.RelativePath), MIMEType: contentType(clip.VideoPath)}
}

func contentType(file string) string {
	kind, err := filetype.MatchFile(file)
	if err != nil || kind == filetype.Unknown {
		return fallbackVideoMIME
	}
	return kind.MIME.Value
}

func (c *GCSFileUpload) Execute(context cor.Context) {
	clips := context.Get(c.GetInputParam()).([]*model.CaptionedClip)

	g, gctx := errgroup.WithContext(context.GetContext())
	g.SetLimit(c.parallelism)
	for _, clip := range clips {
		g.Go(func() error {
			obj := c.ObjectFor(clip)
			err := c.policy.Do(gctx, func(ctx goctx.Context) error {
				return c.upload(ctx, clip.VideoPath, obj)
			})
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", clip.VideoPath, err)
			}
			clip.StorageURI = obj.URI()
			slog.Debug("uploaded clip", "path", clip.VideoPath, "uri", clip.StorageURI)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), clips)
}
