package browsertests

import (
	"context"

	"github.com/launchdarkly/browser-contract-tests/framework"
	"github.com/launchdarkly/browser-contract-tests/harness"
)

func RunTestSuite(
	ctx context.Context,
	env *harness.Environment,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	return harness.RunSuite(ctx, env, filter, testLogger, func(t *harness.T) {
		r := harness.NewRegistrar(t.Config())

		t.Describe("fixture servers", harness.ServersOnly, DoFixtureServerTests)
		t.Describe("browser", harness.SharedBrowser, DoBrowserTests)
		t.Describe("pages", harness.FreshPage, func(t *harness.T) {
			DoPageTests(t, r)
		})
		r.DescribeChromeOnly("screenshots", harness.FreshPage, func(t *harness.T) {
			DoScreenshotTests(t, r)
		}).Register(t)
	})
}
