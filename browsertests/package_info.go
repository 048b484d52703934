// Package browsertests contains the built-in browser contract tests.
//
// The tests exercise the harness itself as a browser test would use it: the fixture servers,
// the browser lifecycle, and pages in isolated browsing contexts. Harness infrastructure lives
// in the harness package; this package only describes the tests.
package browsertests
