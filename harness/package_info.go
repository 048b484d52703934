// Package harness coordinates the lifecycle of a browser contract test suite.
//
// A Session is created for each suite run. It starts the fixture servers before any test runs
// and stops them after the last one; describe blocks can ask for a shared browser, or for a
// fresh incognito browsing context and page for every test. Tests reach all of this through
// *T, which also works with the assert and require packages.
//
// Registrar decides, from the resolved configuration, whether a test should run, be listed as
// skipped, or be left out entirely.
package harness
