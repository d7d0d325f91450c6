// Package dedupe remembers recently processed inbound event IDs so that a
// transport replaying its backlog after a reconnect does not make the intake
// engine answer the same customer message twice.
package dedupe
