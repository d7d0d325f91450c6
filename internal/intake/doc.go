// Package intake drives each customer through the guided support menu.
//
// # Routing
//
// Engine.Route handles one inbound message:
//
//  1. The reset keyword (default "menu", any case, surrounding spaces ignored)
//     restarts the conversation from any state.
//  2. A session whose stored state is not a member of the state machine is
//     treated as a first contact.
//  3. Otherwise the handler registered for the session's step runs.
//
// Handlers validate the message, write collected fields, pick exactly one
// next state and queue replies. Invalid input queues an error notice plus the
// same prompt and leaves the session untouched.
//
// All session changes for a message happen inside one store.Update call.
// Replies and the operator hand-off are sent after the update commits, so a
// failed delivery never leaves half-written state behind.
//
// # Dispatching
//
// Dispatcher sits between a transport and the Engine. It drops messages sent
// by the gateway itself, status broadcasts, group chats, stale backlog and
// redelivered events, then processes each customer's messages one at a time
// on a per-customer worker. A failing or panicking message gets the generic
// apology and never affects other customers.
package intake
