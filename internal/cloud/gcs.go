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
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// GCSObject identifies an object in a bucket.
type GCSObject struct {
	Bucket   string
	Name     string
	MIMEType string
}

// URI renders gs://bucket/name.
func (o GCSObject) URI() string {
	return gcsScheme + o.Bucket + "/" + o.Name
}

// ParseGCSObject splits a gs:// URI into bucket and object name.
func ParseGCSObject(uri string) (GCSObject, error) {
	if !strings.HasPrefix(uri, gcsScheme) {
		return GCSObject{}, fmt.Errorf("invalid GCS URI format: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return GCSObject{}, fmt.Errorf("invalid GCS URI: %s", uri)
	}
	return GCSObject{Bucket: parts[0], Name: parts[1]}, nil
}

// DownloadObject copies a gs:// object to dst, creating parent directories.
func DownloadObject(ctx context.Context, client *storage.Client, uri string, dst string) (err error) {
	obj, err := ParseGCSObject(uri)
	if err != nil {
		return err
	}
	reader, err := client.Bucket(obj.Bucket).Object(obj.Name).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", uri, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()
	if _, err = io.Copy(out, reader); err != nil {
		return fmt.Errorf("failed to download %s: %w", uri, err)
	}
	return nil
}

// UploadFile copies a local file to obj.
func UploadFile(ctx context.Context, client *storage.Client, src string, obj GCSObject) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	writer := client.Bucket(obj.Bucket).Object(obj.Name).NewWriter(ctx)
	if obj.MIMEType != "" {
		writer.ContentType = obj.MIMEType
	}
	if _, err := io.Copy(writer, in); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to upload %s to %s: %w", src, obj.URI(), err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", obj.URI(), err)
	}
	return nil
}
