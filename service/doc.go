// Package service is the only write entry point into the matching engine.
//
// OrderService serializes every command behind one lock, records the
// resulting execution reports in the outbox in execution order, and keeps
// the engine metrics current. It has no transport of its own; the CLI and
// any embedding code call it directly.
package service
