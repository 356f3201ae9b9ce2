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

// Package transfer copies the original files of a tenant's file sets to
// local disk, with per file retries and bounded parallelism.
package transfer

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/repoexport/pkg/checksum"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/text"
)

// Section is the run section transfers are counted under
const Section = "files"

const (
	DefaultConcurrency = 4
	DefaultMaxAttempts = 3
)

// ErrChecksumMismatch is returned when downloaded bytes do not match the
// stored digest
var ErrChecksumMismatch = errors.New("checksum mismatch")

// 📄 Item is one file set's original file
type Item struct {
	FileSetID string
	Title     string
	MimeType  string
	Source    string
	Checksum  checksum.Info
}

// ❌ Failure is one file that could not be copied
type Failure struct {
	FileSetID string `json:"file_set_id"`
	FileName  string `json:"file_name"`
	Source    string `json:"source"`
	Error     string `json:"error"`
}

// 📊 Summary reports a transfer run
type Summary struct {
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
	Location   string    `json:"location"`
	Failures   []Failure `json:"failures"`
}

// Options configures a Transferer
type Options struct {
	Fetcher     Fetcher
	DestDir     string
	Concurrency int
	MaxAttempts int
	// RetryInterval is the first backoff interval
	RetryInterval time.Duration
}

// 🚚 Transferer downloads items into <dest>/<tenant folder>/
type Transferer struct {
	opts Options
}

// 🏭 New creates a transferer
func New(opts Options) (*Transferer, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("transfer needs a fetcher")
	}
	if opts.DestDir == "" {
		return nil, errors.New("transfer needs a destination directory")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	return &Transferer{opts: opts}, nil
}

// Location is the folder a tenant's files land in
func (t *Transferer) Location(cname string) string {
	return filepath.Join(t.opts.DestDir, text.TenantFolder(cname))
}

// 🔄 DownloadAll copies every item. A failing file never stops the others;
// it is recorded on rc and in the summary. The error is only set when the
// destination folder cannot be created.
func (t *Transferer) DownloadAll(ctx context.Context, rc *run.Context, cname string, items []Item) (*Summary, error) {
	dir := t.Location(cname)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("creating %s: %w", dir, err)
	}

	logger := zerolog.Ctx(ctx)
	summary := &Summary{Location: dir, Failures: []Failure{}}
	rc.Touch(Section)
	rc.AddScanned(Section, len(items))

	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(t.opts.Concurrency)

	for _, it := range items {
		g.Go(func() error {
			name := text.DownloadName(it.FileSetID, it.Title, it.MimeType)
			err := t.download(ctx, it, filepath.Join(dir, name))

			mu.Lock()
			defer mu.Unlock()
			done++

			if err != nil {
				logger.Warn().Err(err).Str("id", it.FileSetID).Str("stage", "transfer").Int("done", done).Int("total", len(items)).Msg("file not copied")
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{
					FileSetID: it.FileSetID,
					FileName:  name,
					Source:    it.Source,
					Error:     err.Error(),
				})
				rc.Fail(run.KindTransfer, Section, it.FileSetID, "transfer", err)
				return nil
			}

			logger.Debug().Str("id", it.FileSetID).Str("file", name).Int("done", done).Int("total", len(items)).Msg("file copied")
			summary.Downloaded++
			rc.AddExported(Section)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].FileSetID < summary.Failures[j].FileSetID
	})
	return summary, nil
}

func (t *Transferer) download(ctx context.Context, it Item, dest string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.opts.RetryInterval

	attempt := 0
	op := func() error {
		attempt++
		return t.copyOnce(ctx, it, dest)
	}
	notify := func(err error, wait time.Duration) {
		zerolog.Ctx(ctx).Debug().Err(err).Str("id", it.FileSetID).Int("attempt", attempt).Dur("wait", wait).Msg("retrying file")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.opts.MaxAttempts-1)), ctx)
	return backoff.RetryNotify(op, b, notify)
}

// copyOnce streams the source into dest.tmp, verifies it and renames it
// into place
func (t *Transferer) copyOnce(ctx context.Context, it Item, dest string) error {
	src, err := t.opts.Fetcher.Open(ctx, it.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return backoff.Permanent(errors.Errorf("creating %s: %w", tmp, err))
	}

	h := hasher(it.Checksum.Algorithm)
	var w io.Writer = out
	if h != nil {
		w = io.MultiWriter(out, h)
	}

	_, err = io.Copy(w, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Errorf("copying %s: %w", it.Source, err)
	}

	if h != nil {
		got := hex.EncodeToString(h.Sum(nil))
		if !equalHex(got, it.Checksum.Value) {
			os.Remove(tmp)
			return backoff.Permanent(errors.Errorf("%s digest %s, stored %s: %w", it.Checksum.Algorithm, got, it.Checksum.Value, ErrChecksumMismatch))
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errors.Errorf("moving %s into place: %w", dest, err)
	}
	return nil
}

func hasher(algorithm string) hash.Hash {
	switch algorithm {
	case "sha1":
		return sha1.New()
	case "sha256":
		return sha256.New()
	case "md5":
		return md5.New()
	default:
		return nil
	}
}

func equalHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		x, y := a[i], b[i]
		if 'A' <= y && y <= 'F' {
			y += 'a' - 'A'
		}
		if x != y {
			return false
		}
	}
	return true
}
