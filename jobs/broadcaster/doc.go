// Package broadcaster drains the execution-report outbox into a message
// broker. It is the only reader of the outbox and runs in its own
// goroutine next to the order service.
package broadcaster
