// Package conn owns the notification socket lifecycle: dialing,
// connect timeout, message dispatch, close classification, scheduled
// reconnection, and manual teardown.
//
// The state machine is disconnected -> connecting -> {connected |
// error}. A connected socket that closes returns to disconnected;
// abnormal closes schedule capped, linearly backed-off reconnects.
// Exhausting the retry budget flags the manager as permanently failed
// until Reconnect is called explicitly.
//
// At most one socket is live per manager. Each dial bumps an internal
// generation counter; callbacks from a superseded socket are dropped,
// so a prior socket's close handler can never start a second reconnect
// cycle.
package conn
