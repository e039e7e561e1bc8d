package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// textMessage mirrors websocket.TextMessage so the Conn interface stays free
// of the gorilla types.
const textMessage = websocket.TextMessage

// gorillaDial is the default DialFunc.
func gorillaDial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}
