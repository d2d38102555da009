// Package testutil contains fakes used across tests to reduce boilerplate
// when building registries, instrumenting agent dispatch order and observing
// approval signals. They are not intended for production usage.
package testutil
