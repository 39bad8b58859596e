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

// Package services reads generated clips back from BigQuery and signs
// their storage URLs for the status API.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/cloud"
	"github.com/jaycherian/gcp-go-embodied-datagen/internal/core/model"
	"google.golang.org/api/iterator"
)

// ErrClipNotFound is returned by Get for an unknown id.
var ErrClipNotFound = errors.New("clip not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// ClipService is the data access layer over the clip table.
type ClipService struct {
	BigqueryClient *bigquery.Client
	StorageClient  *storage.Client
	IAMClient      *credentials.IamCredentialsClient
	SignerEmail    string // Service account signing URLs; blank uses the client credentials.
	DatasetName    string
	ClipTable      string
}

// GetFQN returns the table name in standard SQL form.
func (s *ClipService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.ClipTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// List returns the newest clips, optionally of one run.
func (s *ClipService) List(ctx context.Context, runID string, limit int) ([]*model.ClipRow, error) {
	text, params := ListQuery(s.GetFQN(), runID, limit)
	q := s.BigqueryClient.Query(text)
	q.Parameters = params
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.ClipRow, 0)
	for {
		row := &model.ClipRow{}
		err := itr.Next(row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Get returns the clip with id.
func (s *ClipService) Get(ctx context.Context, id string) (*model.ClipRow, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindClipById, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	clip := &model.ClipRow{}
	err = itr.Next(clip)
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	return clip, err
}

// ListQuery returns the list statement and its parameters.
func ListQuery(fqn string, runID string, limit int) (string, []bigquery.QueryParameter) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	params := []bigquery.QueryParameter{{Name: "limit", Value: limit}}
	if runID == "" {
		return fmt.Sprintf(QryListClips, fqn), params
	}
	params = append(params, bigquery.QueryParameter{Name: "run_id", Value: runID})
	return fmt.Sprintf(QryListRunClips, fqn), params
}

// GenerateSignedURL returns a V4 GET URL for a gs:// object valid for
// expires. With a SignerEmail the IAM credentials API signs the request.
func (s *ClipService) GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error) {
	obj, err := cloud.ParseGCSObject(gcsURI)
	if err != nil {
		return "", err
	}
	u, err := s.StorageClient.Bucket(obj.Bucket).SignedURL(obj.Name, SignedURLOptions(ctx, s.IAMClient, s.SignerEmail, time.Now().Add(expires)))
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", obj.Bucket, obj.Name, err)
	}
	return u, nil
}

// SignedURLOptions builds the signing options. Without an IAM client or
// signer the storage client signs with its own credentials.
func SignedURLOptions(ctx context.Context, iam *credentials.IamCredentialsClient, signer string, expires time.Time) *storage.SignedURLOptions {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	}
	if iam == nil || signer == "" {
		return opts
	}
	opts.GoogleAccessID = signer
	opts.SignBytes = func(b []byte) ([]byte, error) {
		resp, err := iam.SignBlob(ctx, &credentialspb.SignBlobRequest{
			Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", signer),
			Payload: b,
		})
		if err != nil {
			return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
		}
		return resp.SignedBlob, nil
	}
	return opts
}
