// Package session defines the per-customer conversation context: where the
// customer is in the intake state machine, which fields have been collected
// so far, and an append-only audit trail.
//
// # State
//
// A State is a tagged variant. Step names the position in the menu tree and
// the remaining fields carry the sub-flow identity the step needs:
//
//   - COLLECTING_VEHICLE_MODEL / COLLECTING_VEHICLE_YEAR carry a Flow
//     (services or sales) so the shared two-step handler knows where to go next.
//   - SERVICES_SUBMENU carries the catalog Category being browsed.
//   - Part-detail steps carry a Track (standard, no_location, tie_rod).
//   - COLLECTING_DESCRIPTION carries a Topic (other, budget, financial).
//
// Use State.Valid to check that the qualifiers match the step. Session.SetState
// panics on an invalid state; persisted states that fail ParseState are left to
// the router to recover from.
//
// # Intake
//
// Intake is the collected data: one optional typed field per known key.
// Entries returns the present fields in the fixed summary order.
package session
