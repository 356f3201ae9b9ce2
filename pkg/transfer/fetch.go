// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transfer

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"gitlab.com/tozd/go/errors"
	"google.golang.org/api/option"
)

// ErrUnsupportedSource is returned for a storage identifier no fetcher reads
var ErrUnsupportedSource = errors.New("unsupported file source")

// 📥 Fetcher opens the bytes behind a storage identifier
type Fetcher interface {
	Open(ctx context.Context, source string) (io.ReadCloser, error)
}

// 🔀 SchemeFetcher picks a transport by the identifier's scheme.
//
//   - file:// and disk:// and bare paths are read from local disk, relative
//     paths resolved against Root
//   - http:// and https:// are fetched with GET
//   - gs://bucket/key is read with the Cloud Storage client, authenticated
//     with Application Default Credentials unless GCSOptions say otherwise
type SchemeFetcher struct {
	Root   string
	Client *http.Client
	// BearerToken is sent on http(s) requests when set
	BearerToken string
	// GCSOptions configure the storage client built for the first gs:// source
	GCSOptions []option.ClientOption

	gcsOnce sync.Once
	gcs     *storage.Client
	gcsErr  error
}

// Open implements Fetcher
func (f *SchemeFetcher) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, backoff.Permanent(errors.Errorf("empty source: %w", ErrUnsupportedSource))
	}

	scheme, rest, found := strings.Cut(source, "://")
	if !found {
		return f.openLocal(source)
	}

	switch strings.ToLower(scheme) {
	case "file", "disk":
		return f.openLocal(rest)
	case "http", "https":
		return f.openRemote(ctx, source)
	case "gs":
		return f.openGCS(ctx, rest)
	default:
		return nil, backoff.Permanent(errors.Errorf("%s: %w", scheme, ErrUnsupportedSource))
	}
}

// Close releases the storage client, if one was opened
func (f *SchemeFetcher) Close() error {
	if f.gcs == nil {
		return nil
	}
	return f.gcs.Close()
}

func (f *SchemeFetcher) gcsClient(ctx context.Context) (*storage.Client, error) {
	f.gcsOnce.Do(func() {
		f.gcs, f.gcsErr = storage.NewClient(context.WithoutCancel(ctx), f.GCSOptions...)
	})
	return f.gcs, f.gcsErr
}

func (f *SchemeFetcher) openGCS(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, _ := strings.Cut(path, "/")
	if bucket == "" || key == "" {
		return nil, backoff.Permanent(errors.Errorf("gs://%s needs a bucket and an object: %w", path, ErrUnsupportedSource))
	}

	client, err := f.gcsClient(ctx)
	if err != nil {
		// credentials do not appear on retry
		return nil, backoff.Permanent(errors.Errorf("creating storage client: %w", err))
	}

	r, err := client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		err = errors.Errorf("reading gs://%s/%s: %w", bucket, key, err)
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return r, nil
}

func (f *SchemeFetcher) openLocal(path string) (io.ReadCloser, error) {
	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, path)
	}
	file, err := os.Open(path)
	if err != nil {
		// missing files do not come back on retry
		if os.IsNotExist(err) {
			return nil, backoff.Permanent(errors.Errorf("opening %s: %w", path, err))
		}
		return nil, errors.Errorf("opening %s: %w", path, err)
	}
	return file, nil
}

func (f *SchemeFetcher) openRemote(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Errorf("building request: %w", err))
	}
	if f.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.BearerToken)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Errorf("fetching %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := errors.Errorf("fetching %s: unexpected status %d", u, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return resp.Body, nil
}
