package conn

import (
	"context"
	"errors"
	"fmt"
)

// Close codes mirrored from the websocket close handshake.
const (
	// CloseNormal is the manual-disconnect sentinel. A close with this
	// code is terminal for the cycle and never retried.
	CloseNormal = 1000

	// CloseAbnormal is reported when the peer vanished without a close
	// frame.
	CloseAbnormal = 1006
)

const (
	reasonReconnecting = "reconnecting"
	reasonClientClose  = "client disconnect"
	reasonStale        = "stale connection"
)

// Transport is one live socket connection. ReadMessage blocks until a
// payload arrives or the connection dies; the terminating error should
// be (or wrap) a *CloseError when a close code is known.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens a Transport for the given URI. The context carries the
// connect timeout.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Transport, error)
}

// CloseError reports the close code that ended a connection.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("conn: connection closed code=%d reason=%q", e.Code, e.Reason)
}

// CloseCode extracts the close code from a read-loop error. Errors
// without close information report CloseAbnormal.
func CloseCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormal
}
