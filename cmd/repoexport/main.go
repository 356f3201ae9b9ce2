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
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/cmd/repoexport/commands"
	"github.com/walteh/repoexport/cmd/repoexport/opts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs one invocation and returns the exit code. Only a bad
// invocation, or setup that never reached a tenant, exits non zero.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o := &opts.RootOpts{Stdout: stdout, Stderr: stderr}
	rootCmd := newRootCmd(o)
	rootCmd.SetArgs(args)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	var usage *commands.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		if cmd != nil {
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return 1
	}

	fmt.Fprintf(stderr, "❌ %v\n", err)
	return 1
}
