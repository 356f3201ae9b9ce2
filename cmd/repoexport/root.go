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

package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/cmd/repoexport/commands"
	"github.com/walteh/repoexport/cmd/repoexport/opts"
	"github.com/walteh/repoexport/pkg/export"
	"github.com/walteh/repoexport/pkg/log"
)

// newRootCmd builds the command tree around shared options
func newRootCmd(o *opts.RootOpts) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "repoexport",
		Short: "Export a Hyku tenant's works, users and files as JSON",
		Long: `repoexport reads one tenant of a multi tenant Hyku repository and writes
its works, users, roles, collections, admin sets and access controls as JSON
files, plus a summary of everything that could not be exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return &commands.UsageError{Err: errors.New("a command is required")}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := setupLogging(cmd.Context(), o)
			if err != nil {
				return &commands.UsageError{Err: err}
			}
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.SetOut(o.Stdout)
	rootCmd.SetErr(o.Stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &commands.UsageError{Err: err}
	})

	addRootFlags(rootCmd, o)

	rootCmd.AddCommand(
		commands.NewWorksCmd(o),
		commands.NewAllCmd(o),
		commands.NewFilesCmd(o),
		newVersionCmd(o),
	)
	for _, c := range export.Categories {
		rootCmd.AddCommand(commands.NewCategoryCmd(o, c))
	}

	return rootCmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", ".repoexport.yaml", "config file path")
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", "console", "log format: console or json")
	cmd.PersistentFlags().StringVarP(&o.OutputDir, "output-dir", "o", "", "output directory (overrides output.dir)")
}

// setupLogging puts the structured and the console logger on the context
func setupLogging(ctx context.Context, o *opts.RootOpts) (context.Context, error) {
	level := zerolog.InfoLevel
	if o.Debug {
		level = zerolog.DebugLevel
	}

	var zlog zerolog.Logger
	switch strings.ToLower(o.LogFormat) {
	case "", "console":
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: o.Stderr})
	case "json":
		zlog = zerolog.New(o.Stderr)
	default:
		return ctx, errors.Errorf("unknown log format %q", o.LogFormat)
	}
	zlog = zlog.Level(level).With().Timestamp().Logger()

	ctx = zlog.WithContext(ctx)
	ctx = log.NewContext(ctx, log.New(o.Stdout, zlog))
	return ctx, nil
}
