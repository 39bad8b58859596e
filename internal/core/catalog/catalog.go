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

// Package catalog discovers the scenes of a dataset split. A scene is a
// geometry asset paired with a semantic asset named after it:
//
//	train/00800-TEEsavR23oF/TEEsavR23oF.basis.glb
//	train/00800-TEEsavR23oF/TEEsavR23oF.basis.semantic.glb
//
// The root may be a local directory or a gs://bucket/prefix URI.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"google.golang.org/api/iterator"
)

// Defaults for HM3D.
const (
	DefaultSplit          = "train"
	DefaultExtension      = ".glb"
	DefaultSemanticSuffix = ".semantic"
	DefaultDatasetConfig  = "hm3d_annotated_basis.scene_dataset_config.json"
	semanticMarker        = "semantic"
	gcsScheme             = "gs://"
)

// Options controls how assets are recognised.
type Options struct {
	Split          string // Sub-directory of the root to scan; empty scans the root itself.
	Extension      string // Geometry file extension, including the dot.
	SemanticSuffix string // Inserted before the extension to name the semantic asset.
	DatasetConfig  string // Scene dataset configuration file name, relative to the root.
}

// DefaultOptions returns the HM3D layout.
func DefaultOptions() Options {
	return Options{
		Split:          DefaultSplit,
		Extension:      DefaultExtension,
		SemanticSuffix: DefaultSemanticSuffix,
		DatasetConfig:  DefaultDatasetConfig,
	}
}

// Catalog lists scenes from local or Cloud Storage roots.
type Catalog struct {
	opts   Options
	client *storage.Client
}

// New returns a catalog. client may be nil when only local roots are used.
func New(opts Options, client *storage.Client) *Catalog {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.SemanticSuffix == "" {
		opts.SemanticSuffix = DefaultSemanticSuffix
	}
	return &Catalog{opts: opts, client: client}
}

// Discover returns every complete scene under root, sorted by geometry path.
// Geometry files without a semantic counterpart are skipped; an empty result
// is not an error.
func (c *Catalog) Discover(ctx context.Context, root string) ([]model.Scene, error) {
	if strings.HasPrefix(root, gcsScheme) {
		return c.discoverGCS(ctx, root)
	}
	return c.discoverLocal(root)
}

// SemanticPath derives the semantic asset name from a geometry asset name.
func (c *Catalog) SemanticPath(geometry string) string {
	return strings.TrimSuffix(geometry, c.opts.Extension) + c.opts.SemanticSuffix + c.opts.Extension
}

func (c *Catalog) isGeometry(name string) bool {
	base := path.Base(filepath.ToSlash(name))
	return strings.HasSuffix(base, c.opts.Extension) && !strings.Contains(base, semanticMarker)
}

func (c *Catalog) scene(root string, geometry string, join func(...string) string) model.Scene {
	base := path.Base(filepath.ToSlash(geometry))
	s := model.Scene{
		Name:         strings.TrimSuffix(base, c.opts.Extension),
		GeometryPath: geometry,
		SemanticPath: c.SemanticPath(geometry),
	}
	if c.opts.DatasetConfig != "" {
		s.DatasetConfig = join(root, c.opts.DatasetConfig)
	}
	return s
}

// pair keeps the geometry assets whose semantic counterpart exists.
func (c *Catalog) pair(candidates []string, exists func(string) bool, build func(string) model.Scene) []model.Scene {
	sort.Strings(candidates)
	out := make([]model.Scene, 0, len(candidates))
	for _, g := range candidates {
		if !c.isGeometry(g) {
			continue
		}
		if !exists(c.SemanticPath(g)) {
			slog.Debug("skipping scene", "geometry", g, "reason", model.ErrAssetMissing)
			continue
		}
		out = append(out, build(g))
	}
	return out
}

func (c *Catalog) discoverLocal(root string) ([]model.Scene, error) {
	scanRoot := filepath.Join(root, c.opts.Split)
	var candidates []string
	err := filepath.WalkDir(scanRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && c.isGeometry(p) {
			candidates = append(candidates, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("scene root does not exist", "path", scanRoot)
		return []model.Scene{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", scanRoot, err)
	}
	exists := func(p string) bool {
		info, err := os.Stat(p)
		return err == nil && !info.IsDir()
	}
	return c.pair(candidates, exists, func(g string) model.Scene {
		return c.scene(root, g, filepath.Join)
	}), nil
}

// ParseGCSURI splits gs://bucket/prefix into its parts.
func ParseGCSURI(uri string) (bucket string, object string, err error) {
	if !strings.HasPrefix(uri, gcsScheme) {
		return "", "", fmt.Errorf("invalid GCS URI format: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI: no bucket in %s", uri)
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

func (c *Catalog) discoverGCS(ctx context.Context, root string) ([]model.Scene, error) {
	if c.client == nil {
		return nil, fmt.Errorf("catalog: no storage client for %s", root)
	}
	bucket, prefix, err := ParseGCSURI(strings.TrimSuffix(root, "/"))
	if err != nil {
		return nil, err
	}
	query := &storage.Query{Prefix: path.Join(prefix, c.opts.Split) + "/"}
	if query.Prefix == "/" {
		query.Prefix = ""
	}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, err
	}

	names := make(map[string]bool)
	var candidates []string
	it := c.client.Bucket(bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, query.Prefix, err)
		}
		uri := gcsScheme + bucket + "/" + attrs.Name
		names[uri] = true
		candidates = append(candidates, uri)
	}
	exists := func(p string) bool { return names[p] }
	return c.pair(candidates, exists, func(g string) model.Scene {
		return c.scene(strings.TrimSuffix(root, "/"), g, func(parts ...string) string {
			return strings.Join(parts, "/")
		})
	}), nil
}
