// Package testutil holds helpers shared by meshkit tests: component setup
// with automatic cleanup, a controllable clock and a fake service instance
// backed by httptest.
package testutil
