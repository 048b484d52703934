package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/launchdarkly/browser-contract-tests/browser"
	"github.com/launchdarkly/browser-contract-tests/browsertests"
	"github.com/launchdarkly/browser-contract-tests/config"
	"github.com/launchdarkly/browser-contract-tests/framework"
	"github.com/launchdarkly/browser-contract-tests/harness"

	"github.com/spf13/afero"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

func main() {
	os.Exit(run())
}

func run() int {
	var params commandParams
	if !params.Read(os.Args) {
		return 1
	}

	loggers := ldlog.NewDefaultLoggers()
	if params.debugAll {
		loggers.SetMinLevel(ldlog.Debug)
	}

	cfg, err := config.Resolve(loggers, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		return 1
	}
	launcher, err := browser.NewLauncher(cfg.Product, loggers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Browser error: %s\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if params.install {
		defer launcher.Close() //nolint:errcheck
		fmt.Printf("Installing %s\n", cfg.Product)
		if err := launcher.Install(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Install failed: %s\n", err)
			return 1
		}
		return 0
	}

	env, err := harness.NewEnvironment(cfg, launcher, afero.NewOsFs(), loggers)
	if err != nil {
		_ = launcher.Close()
		fmt.Fprintf(os.Stderr, "Startup error: %s\n", err)
		return 1
	}
	defer env.Close() //nolint:errcheck
	env.Golden().Update = params.updateGolden

	fmt.Println()
	framework.PrintFilterDescription(os.Stdout, params.filters)

	fmt.Printf("Running browser contract tests against %s\n", cfg.Product)

	testLogger := &framework.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results := browsertests.RunTestSuite(ctx, env, params.filters.AsFilter, testLogger)

	fmt.Println()
	framework.PrintResults(os.Stdout, results)
	if coverage := env.Coverage(); coverage != nil {
		fmt.Println()
		_ = coverage.Report(os.Stdout)
	}
	if !results.OK() {
		if cmd := rerunCommand(os.Args[0], os.LookupEnv, params, results.Failures); cmd != "" {
			fmt.Println()
			fmt.Println("To run the failed tests again:")
			fmt.Printf("  %s\n", cmd)
		}
		return 1
	}
	return 0
}
