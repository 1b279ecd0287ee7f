// Package stomp carries the subset of STOMP 1.2 used for progress updates over WebSocket text messages.
//
// # Transport
//
// Frames are encoded and decoded by github.com/go-stomp/stomp/v3. A WebSocket connection is exposed to it as a
// byte stream: each outgoing frame or heart-beat becomes one text message, and incoming messages are read back
// to back.
//
// # Client
//
// [Client.Dial] performs the CONNECT/CONNECTED handshake and returns a [Session] backed by a go-stomp connection.
// [Session.Subscribe] registers a handler per destination; each subscription delivers on its own goroutine in
// arrival order. A read failure or a server hang-up ends the session and closes [Session.Done].
//
// # Broker
//
// [Broker] is an [http.Handler] that upgrades requests to WebSocket and fans out [Broker.Publish] calls
// to every connection subscribed to the destination. Frames carrying a receipt header are answered with
// RECEIPT. Acknowledgements and transactions are not supported.
package stomp
