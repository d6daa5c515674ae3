// Package log defines the structured logging abstraction used across somapay.
//
// The core packages log through the [Logger] interface so that library users
// can plug in their own logging backend. A zerolog-backed implementation is
// provided for the CLI, and a no-op implementation for embedding and tests.
package log
