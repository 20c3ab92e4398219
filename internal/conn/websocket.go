package conn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer opens real websocket transports.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, uri string) (Transport, error) {
	dialer := websocket.Dialer{}
	ws, resp, err := dialer.DialContext(ctx, uri, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsTransport{ws: ws}, nil
}

type wsTransport struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.ws.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.ws.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.writeMu.Lock()
	frame := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	_ = t.ws.WriteControl(websocket.CloseMessage, frame, deadline)
	t.writeMu.Unlock()
	return t.ws.Close()
}
