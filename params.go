package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/launchdarkly/browser-contract-tests/config"
	"github.com/launchdarkly/browser-contract-tests/framework"

	"github.com/alessio/shellescape"
)

type commandParams struct {
	filters      framework.RegexFilters
	install      bool
	updateGolden bool
	debug        bool
	debugAll     bool
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.install, "install", false, "download the managed browser for the configured product and exit")
	fs.BoolVar(&c.updateGolden, "update-golden", false, "overwrite golden files with the actual output")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return false
	}
	return true
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b *commandBuilder) addEnv(name, value string) {
	*b = append(*b, name+"="+shellescape.Quote(value))
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// rerunCommand builds a command line that runs only the failed tests again, with the same
// browser environment variables. It returns "" if none of the failures can be selected with
// -run, such as a failure of suite setup.
func rerunCommand(program string, lookupEnv config.LookupFunc, params commandParams, failures []framework.TestResult) string {
	var b commandBuilder
	for _, name := range config.EnvVars {
		if value, ok := lookupEnv(name); ok {
			b.addEnv(name, value)
		}
	}
	b.add(program)
	found := false
	for _, f := range failures {
		if len(f.TestID.Path) == 0 {
			continue
		}
		elements := make([]string, 0, len(f.TestID.Path))
		for _, name := range f.TestID.Path {
			elements = append(elements, "^"+regexp.QuoteMeta(name)+"$")
		}
		b.add("-run", strings.Join(elements, "/"))
		found = true
	}
	if !found {
		return ""
	}
	for _, p := range params.filters.MustNotMatch.Patterns() {
		b.add("-skip", p)
	}
	if params.debug || params.debugAll {
		b.add("-debug")
	}
	return b.String()
}
