package status

import (
	"fmt"

	"github.com/walteh/repoexport/pkg/run"
)

// Formatter defines how progress and failures are worded
type Formatter interface {
	// FormatProgress formats a progress message
	FormatProgress(current, total int) string

	// FormatFailure formats one recorded failure
	FormatFailure(f run.Failure) string

	// FormatError formats an error message
	FormatError(err error) string
}

// DefaultFormatter provides a default implementation of Formatter
type DefaultFormatter struct{}

// NewDefaultFormatter creates a new DefaultFormatter
func NewDefaultFormatter() *DefaultFormatter {
	return &DefaultFormatter{}
}

// FormatProgress formats a progress message with percentage
func (f *DefaultFormatter) FormatProgress(current, total int) string {
	var percentage float64
	if total == 0 {
		percentage = 0
		if current > 0 {
			percentage = 100
		}
	} else {
		percentage = float64(current) / float64(total) * 100
	}

	if current >= total {
		return fmt.Sprintf("✅ Progress: %d/%d (%.0f%%)", current, total, percentage)
	}
	return fmt.Sprintf("⏳ Progress: %d/%d (%.0f%%)", current, total, percentage)
}

// FormatFailure renders "<section> <id> [<stage>]: <error>", leaving out
// whatever is blank
func (f *DefaultFormatter) FormatFailure(fail run.Failure) string {
	where := fail.Section
	if fail.ID != "" {
		if where != "" {
			where += " "
		}
		where += fail.ID
	}
	if fail.Stage != "" {
		if where != "" {
			where += " "
		}
		where += "[" + fail.Stage + "]"
	}

	msg := "unknown error"
	if fail.Err != nil {
		msg = fail.Err.Error()
	}
	if where == "" {
		return msg
	}
	return where + ": " + msg
}

// FormatError formats an error message with emoji
func (f *DefaultFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
