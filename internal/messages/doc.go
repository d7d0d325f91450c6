// ABOUTME: Package messages renders the customer-facing chat texts
// ABOUTME: Menus, prompts, confirmations and the request summary, in Brazilian Portuguese

// Package messages holds every text the intake engine sends to a customer.
//
// Texts use the chat-app convention of *asterisks* for bold. Menus come from
// the configured service catalog so that changing the catalog changes the
// menus without code changes. Nothing here touches session state.
package messages
