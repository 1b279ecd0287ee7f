// Package progress maintains the client's publish/subscribe connection to the progress broker.
//
// [Manager] owns at most one transport session and a map of per-run subscriptions.
// It retries failed connects after a fixed delay, forever, and treats a dropped session the same way:
// a reconnect is scheduled and the original ready callback runs again once the new session is up,
// which is where callers re-subscribe.
//
// The transport is abstracted behind [Transport] so the manager can be driven by a fake in tests;
// [NewStompTransport] adapts the STOMP-over-WebSocket client.
package progress
