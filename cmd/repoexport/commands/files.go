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

package commands

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walteh/repoexport/cmd/repoexport/opts"
	"github.com/walteh/repoexport/pkg/export"
	"github.com/walteh/repoexport/pkg/log"
	"github.com/walteh/repoexport/pkg/transfer"
)

// DefaultFilesDir is used under the output dir when no destination is set
const DefaultFilesDir = "files"

// NewFilesCmd creates the files command
func NewFilesCmd(o *opts.RootOpts) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "files <tenant>",
		Short: "Copy the original file of every file set of a tenant",
		Long: `Files downloads each file set's original file into
<dest>/<tenant with dots as underscores>/<file set id>_<title><ext>.
Checksums are verified when the stored digest is sha1, sha256 or md5. A
failed file never stops the others.`,
		Args: TenantArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd.Context(), o, args[0], dest)
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (overrides transfer.dest_dir)")
	return cmd
}

func runFiles(ctx context.Context, o *opts.RootOpts, cname, dest string) error {
	env, err := Open(ctx, o, 0)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := env.Config
	if dest == "" {
		dest = cfg.Transfer.DestDir
	}
	if dest == "" {
		dest = filepath.Join(cfg.Output.Dir, DefaultFilesDir)
	}

	fetcher := &transfer.SchemeFetcher{
		Root:        cfg.Transfer.SourceRoot,
		Client:      &http.Client{Timeout: cfg.Timeout()},
		BearerToken: cfg.Transfer.BearerToken,
	}
	defer fetcher.Close()

	tr, err := transfer.New(transfer.Options{
		Fetcher:     fetcher,
		DestDir:     dest,
		Concurrency: cfg.Transfer.Concurrency,
		MaxAttempts: cfg.Transfer.MaxAttempts,
	})
	if err != nil {
		return err
	}

	log.FromContext(ctx).Header("copying files")

	rc := env.Runner.NewContext(cname, false)
	var tsum *transfer.Summary
	account, err := env.Runner.Within(ctx, rc, cname, func(ctx context.Context, s *export.Session) error {
		items, err := transfer.Collect(ctx, rc, s.Store, s.Builder)
		if err != nil {
			return err
		}
		tsum, err = tr.DownloadAll(ctx, rc, s.Account.CName, items)
		return err
	})
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("transfer ended early")
	}

	report(ctx, o, env, "files", cname, &export.Result{Run: rc, Account: account}, tsum)
	return nil
}
