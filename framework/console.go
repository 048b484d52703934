package framework

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	failedColor  = color.New(color.FgRed, color.Bold)
	skippedColor = color.New(color.FgYellow)
	passedColor  = color.New(color.FgGreen)
	debugColor   = color.New(color.Faint)
)

// ConsoleTestLogger writes test progress to standard output, or to Output if it is set.
type ConsoleTestLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
	Output               io.Writer
}

func (c *ConsoleTestLogger) out() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *ConsoleTestLogger) TestStarted(id TestID) {
	fmt.Fprintf(c.out(), "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.out(), "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id TestID, failed bool, debugOutput CapturedOutput) {
	if failed {
		failedColor.Fprintf(c.out(), "  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		var b strings.Builder
		debugOutput.Dump(&b, "    DEBUG ")
		debugColor.Fprint(c.out(), b.String())
	}
}

func (c *ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	if reason == "" {
		skippedColor.Fprintf(c.out(), "  SKIPPED: %s\n", id)
	} else {
		skippedColor.Fprintf(c.out(), "  SKIPPED: %s (%s)\n", id, reason)
	}
}

// PrintResults writes a summary of the run, listing each failed test and its errors.
func PrintResults(w io.Writer, results Results) {
	skipped := len(results.Skipped())
	if results.OK() {
		passedColor.Fprintf(w, "All tests passed (%d run, %d skipped)\n", len(results.Tests)-skipped, skipped)
		return
	}
	failedColor.Fprintf(w, "FAILED TESTS (%d of %d):\n", len(results.Failures), len(results.Tests)-skipped)
	for _, f := range results.Failures {
		for _, err := range f.Errors {
			fmt.Fprintf(w, "  %s\n", TestFailure{ID: f.TestID, Err: err})
		}
		if len(f.Errors) == 0 {
			fmt.Fprintf(w, "  [%s]\n", f.TestID)
		}
	}
}
