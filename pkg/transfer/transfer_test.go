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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
	"google.golang.org/api/option"

	"github.com/walteh/repoexport/pkg/checksum"
	"github.com/walteh/repoexport/pkg/database"
	"github.com/walteh/repoexport/pkg/record"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/store"
	"github.com/walteh/repoexport/pkg/store/sqlstore"
	"github.com/walteh/repoexport/pkg/testutils"
)

const (
	helloSHA1 = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"
	helloMD5  = "5eb63bbbe01eeed093cb22bb8f5acdc3"
)

func testCtx(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func newTransferer(t *testing.T, f Fetcher) (*Transferer, string) {
	t.Helper()
	dest := t.TempDir()
	tr, err := New(Options{Fetcher: f, DestDir: dest, Concurrency: 2, MaxAttempts: 3, RetryInterval: time.Millisecond})
	require.NoError(t, err)
	return tr, dest
}

// gcsOptions point the storage client at a local server, which then sees
// object reads as GET /<bucket>/<object>
func gcsOptions(srv *httptest.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(srv.URL + "/storage/v1/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	}
}

func TestDownloadAll(t *testing.T) {
	ctx := testCtx(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "hello.bin"), []byte("hello world"), 0o644))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/flaky":
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("hello world"))
		case "/bucket/key/scan.tif":
			w.Write([]byte("tiff bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := &SchemeFetcher{Root: src, Client: srv.Client(), GCSOptions: gcsOptions(srv)}
	defer fetcher.Close()
	tr, dest := newTransferer(t, fetcher)
	rc := run.New("library.example.org", false, nil)

	items := []Item{
		{FileSetID: "fs1", Title: "My Report (final)", MimeType: "application/pdf", Source: "disk://hello.bin", Checksum: checksum.Info{Algorithm: "sha1", Value: helloSHA1}},
		{FileSetID: "fs2", Title: "flaky", MimeType: "text/plain", Source: srv.URL + "/flaky", Checksum: checksum.Info{Algorithm: "md5", Value: helloMD5}},
		{FileSetID: "fs3", Title: "scan.tif", MimeType: "image/tiff", Source: "gs://bucket/key/scan.tif"},
		{FileSetID: "fs4", Title: "gone", Source: srv.URL + "/missing"},
		{FileSetID: "fs5", Title: "tampered", Source: filepath.Join(src, "hello.bin"), Checksum: checksum.Info{Algorithm: "sha1", Value: "deadbeef"}},
		{FileSetID: "fs6", Title: "fedora", Source: "fedora://x/y"},
	}

	summary, err := tr.DownloadAll(ctx, rc, "library.example.org", items)
	require.NoError(t, err)

	folder := filepath.Join(dest, "library_example_org")
	assert.Equal(t, folder, summary.Location)
	assert.Equal(t, 3, summary.Downloaded)
	assert.Equal(t, 3, summary.Failed)

	got, err := os.ReadFile(filepath.Join(folder, "fs1_My_Report__final_.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	_, err = os.Stat(filepath.Join(folder, "fs2_flaky.txt"))
	assert.NoError(t, err, "transient failures are retried")
	assert.Equal(t, int32(2), hits.Load())

	_, err = os.Stat(filepath.Join(folder, "fs3_scan.tif.tiff"))
	assert.NoError(t, err)

	ids := []string{}
	for _, f := range summary.Failures {
		ids = append(ids, f.FileSetID)
		assert.NotEmpty(t, f.Error)
	}
	assert.Equal(t, []string{"fs4", "fs5", "fs6"}, ids, "failures are sorted and never abort the batch")
	assert.Equal(t, "fs5_tampered", summary.Failures[1].FileName)

	_, err = os.Stat(filepath.Join(folder, "fs5_tampered"))
	assert.True(t, os.IsNotExist(err), "mismatched bytes are not kept")
	_, err = os.Stat(filepath.Join(folder, "fs5_tampered.tmp"))
	assert.True(t, os.IsNotExist(err))

	stats := rc.Section(Section)
	assert.Equal(t, 6, stats.Scanned)
	assert.Equal(t, 3, stats.Exported)
	assert.Len(t, rc.Failures(run.KindTransfer), 3)
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	ctx := testCtx(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tr, _ := newTransferer(t, &SchemeFetcher{Client: srv.Client()})
	rc := run.New("t", false, nil)

	summary, err := tr.DownloadAll(ctx, rc, "t", []Item{{FileSetID: "fs1", Source: srv.URL + "/x"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSchemeFetcherRejectsUnknownSchemes(t *testing.T) {
	f := &SchemeFetcher{}
	_, err := f.Open(context.Background(), "ftp://host/file")
	assert.True(t, errors.Is(err, ErrUnsupportedSource))

	_, err = f.Open(context.Background(), "  ")
	assert.True(t, errors.Is(err, ErrUnsupportedSource))
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{DestDir: "x"})
	assert.Error(t, err)
	_, err = New(Options{Fetcher: &SchemeFetcher{}})
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	ctx := testCtx(t)
	fx := testutils.NewFixture(t)
	fx.PutResource("fs1", "FileSet", `{"title":["scan"],"original_file_id":"fm1"}`)
	fx.PutResource("fs2", "Hyrax::FileSet", `{"title":["no original"]}`)
	fx.PutResource("fs3", "FileSet", `{"title":["broken"],"file_ids":[{"id":"fm-missing"}]}`)
	fx.PutResource("fm1", store.ModelFileMetadata, `{
		"file_identifier":[{"id":"disk:///srv/uploads/fm1"}],
		"mime_type":["image/tiff"],
		"checksum":[{"id":"urn:sha256:cafe"}]
	}`)

	st, err := sqlstore.New(sqlstore.Options{Querier: fx.DB, Dialect: database.SQLite})
	require.NoError(t, err)
	b, err := record.New(record.Options{Store: st})
	require.NoError(t, err)

	rc := run.New("t", false, nil)
	items, err := Collect(ctx, rc, st, b)
	require.NoError(t, err)

	assert.Equal(t, []Item{{
		FileSetID: "fs1",
		Title:     "scan",
		MimeType:  "image/tiff",
		Source:    "disk:///srv/uploads/fm1",
		Checksum:  checksum.Info{Original: "urn:sha256:cafe", Algorithm: "sha256", Value: "cafe"},
	}}, items)

	failures := rc.Failures(run.KindTransfer)
	require.Len(t, failures, 1)
	assert.Equal(t, "fs3", failures[0].ID)
}

func TestGCSMissingObjectIsPermanent(t *testing.T) {
	ctx := testCtx(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fetcher := &SchemeFetcher{GCSOptions: gcsOptions(srv)}
	defer fetcher.Close()

	_, err := fetcher.Open(ctx, "gs://bucket/derivatives/gone.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrObjectNotExist))

	var permanent *backoff.PermanentError
	assert.True(t, errors.As(err, &permanent), "missing objects are not retried")
	assert.Equal(t, int32(1), hits.Load())

	_, err = fetcher.Open(ctx, "gs://bucket-only")
	assert.True(t, errors.Is(err, ErrUnsupportedSource))
}
