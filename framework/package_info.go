// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of tests.
//
// The general model is:
//
// 1. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results. Unlike *testing.T, tests run strictly one at a time in the order
// they are registered.
//
// 2. Each test context captures its own debug output, which the TestLogger can choose to
// print depending on whether the test failed.
//
// 3. Tests can be selected with regex filters in the same way as "go test -run".
//
// The domain-specific code that knows what is being tested is responsible for setting up the
// environment that tests run in (servers, browsers, etc.) and for providing a test API on top
// of the test context.
package framework
