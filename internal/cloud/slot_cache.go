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
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
)

// FetchFunc copies a remote asset to a local path.
type FetchFunc func(ctx context.Context, remote string, local string) error

// StorageFetch fetches assets with the storage client under policy.
func StorageFetch(client *storage.Client, policy RetryPolicy) FetchFunc {
	return func(ctx context.Context, remote string, local string) error {
		return policy.Do(ctx, func(ctx context.Context) error {
			return DownloadObject(ctx, client, remote, local)
		})
	}
}

// SlotCache keeps the assets of exactly one remote scene on local disk.
// Opening the next scene downloads it into a fresh slot before the previous
// slot is removed. The dataset configuration is shared by every scene and is
// fetched once. A SlotCache is owned by a single worker.
type SlotCache struct {
	dir     string
	fetch   FetchFunc
	current string
	seq     int
	configs map[string]string
}

// NewSlotCache returns a cache rooted at dir.
func NewSlotCache(dir string, fetch FetchFunc) *SlotCache {
	return &SlotCache{dir: dir, fetch: fetch, configs: make(map[string]string)}
}

// Open returns scene with local asset paths. Local scenes are returned as
// they are and leave the current slot untouched.
func (c *SlotCache) Open(ctx context.Context, scene model.Scene) (model.Scene, error) {
	if !scene.IsRemote() {
		return scene, nil
	}
	if c.fetch == nil {
		return model.Scene{}, fmt.Errorf("no fetcher for remote scene %s", scene.Name)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return model.Scene{}, err
	}
	c.seq++
	slot, err := os.MkdirTemp(c.dir, fmt.Sprintf("slot-%d-*", c.seq))
	if err != nil {
		return model.Scene{}, err
	}

	local := scene
	local.GeometryPath = filepath.Join(slot, path.Base(scene.GeometryPath))
	local.SemanticPath = filepath.Join(slot, path.Base(scene.SemanticPath))
	for remote, dst := range map[string]string{scene.GeometryPath: local.GeometryPath, scene.SemanticPath: local.SemanticPath} {
		if err := c.fetch(ctx, remote, dst); err != nil {
			_ = os.RemoveAll(slot)
			return model.Scene{}, fmt.Errorf("%w: %s: %v", model.ErrAssetMissing, remote, err)
		}
	}
	if scene.DatasetConfig != "" && model.IsRemotePath(scene.DatasetConfig) {
		cfg, err := c.datasetConfig(ctx, scene.DatasetConfig)
		if err != nil {
			_ = os.RemoveAll(slot)
			return model.Scene{}, err
		}
		local.DatasetConfig = cfg
	}

	c.Release()
	c.current = slot
	slog.Debug("scene assets cached", "scene", scene.Name, "slot", slot)
	return local, nil
}

func (c *SlotCache) datasetConfig(ctx context.Context, remote string) (string, error) {
	if p, ok := c.configs[remote]; ok {
		return p, nil
	}
	dst := filepath.Join(c.dir, fmt.Sprintf("config-%d-%s", len(c.configs), path.Base(remote)))
	if err := c.fetch(ctx, remote, dst); err != nil {
		return "", fmt.Errorf("failed to fetch dataset config %s: %w", remote, err)
	}
	c.configs[remote] = dst
	return dst, nil
}

// Release removes the current slot, if any.
func (c *SlotCache) Release() {
	if c.current == "" {
		return
	}
	if err := os.RemoveAll(c.current); err != nil {
		slog.Warn("failed to remove scene slot", "slot", c.current, "error", err)
	}
	c.current = ""
}

// Close releases the slot and the shared dataset configuration files.
func (c *SlotCache) Close() {
	c.Release()
	for _, p := range c.configs {
		_ = os.Remove(p)
	}
	c.configs = make(map[string]string)
}
