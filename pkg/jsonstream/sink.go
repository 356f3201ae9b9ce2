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

package jsonstream

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gitlab.com/tozd/go/errors"
)

// 🗜️ Compression selects the output codec
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts "", none, gzip and zstd
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd:
		return Compression(s), nil
	default:
		return "", errors.Errorf("unknown compression %q", s)
	}
}

// Extension is appended to output paths
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// 💾 Sink is an output file that only appears at its final path once
// committed. Until then it lives next to it as <path>.tmp.
type Sink struct {
	path string
	tmp  string

	file  *os.File
	buf   *bufio.Writer
	codec io.WriteCloser

	committed bool
	closed    bool
}

// 🏭 CreateSink opens <path><ext>.tmp for writing
func CreateSink(path string, compression Compression) (*Sink, error) {
	path += compression.Extension()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Errorf("creating output directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, errors.Errorf("creating %s: %w", tmp, err)
	}

	s := &Sink{path: path, tmp: tmp, file: f, buf: bufio.NewWriterSize(f, 64*1024)}

	switch compression {
	case CompressionGzip:
		s.codec = gzip.NewWriter(s.buf)
	case CompressionZstd:
		zw, err := zstd.NewWriter(s.buf)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return nil, errors.Errorf("creating zstd writer: %w", err)
		}
		s.codec = zw
	}

	return s, nil
}

// Path is where the file lands on commit
func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.Errorf("write to %s: %w", s.path, os.ErrClosed)
	}
	if s.codec != nil {
		return s.codec.Write(p)
	}
	return s.buf.Write(p)
}

// Commit flushes everything and moves the file into place
func (s *Sink) Commit() error {
	if s.closed {
		return errors.Errorf("commit %s: %w", s.path, os.ErrClosed)
	}
	if s.codec != nil {
		codec := s.codec
		s.codec = nil
		if err := codec.Close(); err != nil {
			return errors.Errorf("finishing compression: %w", err)
		}
	}
	if err := s.buf.Flush(); err != nil {
		return errors.Errorf("flushing %s: %w", s.tmp, err)
	}
	if err := s.file.Sync(); err != nil {
		return errors.Errorf("syncing %s: %w", s.tmp, err)
	}
	if err := s.file.Close(); err != nil {
		return errors.Errorf("closing %s: %w", s.tmp, err)
	}
	s.closed = true

	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return errors.Errorf("moving %s into place: %w", s.path, err)
	}
	s.committed = true
	return nil
}

// Close releases the file. Without a prior Commit the partial output is
// removed. Safe to call more than once and after Commit.
func (s *Sink) Close() error {
	if s.committed {
		return nil
	}
	if !s.closed {
		s.closed = true
		if s.codec != nil {
			_ = s.codec.Close()
			s.codec = nil
		}
		s.file.Close()
	}
	if err := os.Remove(s.tmp); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing %s: %w", s.tmp, err)
	}
	return nil
}
