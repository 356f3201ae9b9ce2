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

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent output entries
	nameWidth   = 45 // Base width for the output path
	kindWidth   = 15 // Width for the export kind
	statusWidth = 10 // Width for status text
)

// 🎯 RecordOperation is one output file of a tenant run
type RecordOperation struct {
	Path    string // Output path
	Kind    string // works, users, collections...
	Status  string // Operation status
	Written bool   // Whether the file was committed
	Failed  int    // Failures recorded against this output
}

// 📦 TenantOperation is one tenant run
type TenantOperation struct {
	CName      string // Tenant cname
	RunID      string // Run identifier
	Command    string // Export command
	PublicOnly bool   // Whether only open works are exported
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentOp  *TenantOperation
	operations []RecordOperation
}

// 🏭 New creates a new logger printing to console and recording to zlog
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

var discard = New(io.Discard, zerolog.Nop())

// 🎯 FromContext gets the logger from context, or one that drops everything
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		return discard
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatRecordOperation formats an output file for display
func (l *Logger) formatRecordOperation(op RecordOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case !op.Written:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.Failed > 0:
		symbol = '⟳'
		symbolColor = color.FgYellow
	default:
		symbol = '✓'
		symbolColor = color.FgGreen
	}

	var kindColor color.Attribute
	switch op.Kind {
	case "works":
		kindColor = color.FgCyan
	case "files":
		kindColor = color.FgMagenta
	default:
		kindColor = color.FgBlue
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(kindColor).Sprint(fmt.Sprintf("%-*s", kindWidth, op.Kind)),
		fmt.Sprintf("%-*s", statusWidth, op.Status))
}

// 📝 LogRecordOperation logs an output file
func (l *Logger) LogRecordOperation(ctx context.Context, op RecordOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations = append(l.operations, op)

	fmt.Fprintln(l.console, l.formatRecordOperation(op))

	l.zlog.Info().
		Str("path", op.Path).
		Str("kind", op.Kind).
		Str("status", op.Status).
		Bool("written", op.Written).
		Int("failed", op.Failed).
		Msg("record operation")
}

// 📝 StartTenantOperation starts a new tenant run
func (l *Logger) StartTenantOperation(ctx context.Context, op TenantOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = nil

	fmt.Fprintf(l.console, "[exporting %s]\n",
		color.New(color.FgCyan).Sprint(op.CName))

	scope := "all works"
	if op.PublicOnly {
		scope = "public works"
	}
	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Command),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(scope))

	l.zlog.Info().
		Str("tenant", op.CName).
		Str("run_id", op.RunID).
		Str("command", op.Command).
		Bool("public_only", op.PublicOnly).
		Msg("starting tenant operation")
}

// 📝 EndTenantOperation ends the current tenant run
func (l *Logger) EndTenantOperation(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	written := 0
	for _, op := range l.operations {
		if op.Written {
			written++
		}
	}

	l.zlog.Info().
		Str("tenant", l.currentOp.CName).
		Str("run_id", l.currentOp.RunID).
		Int("outputs", written).
		Msg("tenant operation complete")

	l.currentOp = nil
	l.operations = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("repoexport")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...any) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...any) {
	l.Success(fmt.Sprintf(format, args...))
}
