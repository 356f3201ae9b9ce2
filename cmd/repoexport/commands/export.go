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
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walteh/repoexport/cmd/repoexport/opts"
	"github.com/walteh/repoexport/pkg/export"
	"github.com/walteh/repoexport/pkg/log"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/status"
	"github.com/walteh/repoexport/pkg/transfer"
	"github.com/walteh/repoexport/pkg/worktype"
)

type exportFlags struct {
	publicOnly bool
	batchSize  int
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.publicOnly, "public-only", false, "export only works with open visibility")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "index page size (overrides batch_size)")
}

// NewWorksCmd creates the works command
func NewWorksCmd(o *opts.RootOpts) *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "works <tenant>",
		Short: "Export every work of a tenant, grouped by work type",
		Long: `Works writes <tenant>_works_data.json, an object keyed by work type.
Each work carries its visibility, embargo and lease, admin set, workflow
status, collections, access control and file sets.`,
		Args: TenantArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), o, "works", args[0], flags, true, nil)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewCategoryCmd creates the command for one simple category
func NewCategoryCmd(o *opts.RootOpts, c export.Category) *cobra.Command {
	return &cobra.Command{
		Use:   c.Command() + " <tenant>",
		Short: fmt.Sprintf("Export the %s of a tenant as a JSON array", c),
		Args:  TenantArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), o, c.Command(), args[0], exportFlags{}, false, []export.Category{c})
		},
	}
}

// NewAllCmd creates the all command
func NewAllCmd(o *opts.RootOpts) *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "all <tenant>",
		Short: "Export works and every category of a tenant",
		Args:  TenantArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), o, "all", args[0], flags, true, export.Categories)
		},
	}
	flags.register(cmd)
	return cmd
}

// runExport returns an error only when nothing could be attempted. What
// goes wrong inside the tenant is reported and the command still succeeds.
func runExport(ctx context.Context, o *opts.RootOpts, name, cname string, flags exportFlags, works bool, categories []export.Category) error {
	env, err := Open(ctx, o, flags.batchSize)
	if err != nil {
		return err
	}
	defer env.Close()

	job := export.Job{PublicOnly: flags.publicOnly, Works: works, Categories: categories}
	if works {
		job.Types, job.Unmatched, err = worktype.Default.Select(env.Config.WorkTypes.Include, env.Config.WorkTypes.Exclude)
		if err != nil {
			return err
		}
	}

	log.FromContext(ctx).Header("exporting " + name)
	res, err := env.Runner.Run(ctx, cname, job)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("run ended early")
	}
	report(ctx, o, env, name, cname, res, nil)
	return nil
}

// report prints what a run produced and writes the summary and metrics
func report(ctx context.Context, o *opts.RootOpts, env *Env, name, cname string, res *export.Result, tsum *transfer.Summary) {
	ul := log.FromContext(ctx)
	if res.Account.CName != "" {
		cname = res.Account.CName
	}

	ul.StartTenantOperation(ctx, log.TenantOperation{
		CName:      cname,
		RunID:      res.Run.RunID.String(),
		Command:    name,
		PublicOnly: res.Run.PublicOnly,
	})
	defer ul.EndTenantOperation(ctx)

	failures := res.Run.Failures()
	for i, path := range res.Outputs {
		n := failuresFor(failures, res.Kinds[i])
		state := "written"
		if n > 0 {
			state = fmt.Sprintf("%d failed", n)
		}
		ul.LogRecordOperation(ctx, log.RecordOperation{Path: path, Kind: res.Kinds[i], Status: state, Written: true, Failed: n})
	}
	if tsum != nil {
		ul.LogRecordOperation(ctx, log.RecordOperation{
			Path:    tsum.Location,
			Kind:    transfer.Section,
			Status:  fmt.Sprintf("%d copied", tsum.Downloaded),
			Written: tsum.Downloaded > 0 || tsum.Failed == 0,
			Failed:  tsum.Failed,
		})
	}

	summary := status.New(res.Run, res.Outputs, time.Now())
	summary.Transfer = tsum
	if err := summary.Render(o.Stdout); err != nil {
		ul.Warningf("printing summary: %v", err)
	}

	path := status.Path(env.Config.Output.Dir, cname)
	if err := summary.WriteJSON(path); err != nil {
		ul.Errorf("writing summary: %v", err)
	}

	env.Metrics.ObserveRun(summary.FinishedAt.Sub(summary.StartedAt))
	if env.Config.MetricsFile != "" {
		if err := env.Metrics.WriteFile(env.Config.MetricsFile); err != nil {
			ul.Errorf("writing metrics: %v", err)
		}
	}

	switch n := summary.FailureCount(); {
	case summary.Aborted:
		ul.Errorf("%s %s aborted, see %s", cname, name, path)
	case n > 0:
		ul.Warningf("%s %s finished with %d failures, see %s", cname, name, n, path)
	default:
		ul.Successf("%s %s finished, %d records", cname, name, summary.Exported())
	}
}

// failuresFor counts the failures that belong to one output
func failuresFor(failures []run.Failure, kind string) int {
	n := 0
	for _, f := range failures {
		if f.Kind == run.KindFatal || f.Kind == run.KindConfiguration || f.Kind == run.KindTransfer {
			continue
		}
		if _, err := export.ParseCategory(f.Section); err == nil {
			if f.Section == kind {
				n++
			}
			continue
		}
		if kind == "works" {
			n++
		}
	}
	return n
}
