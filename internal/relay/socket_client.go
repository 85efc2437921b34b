// internal/relay/socket_client.go
package relay

import (
	"context"

	"commande-track-api-server/internal/socket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Listener is the tab's long-lived socket connection. It subscribes to one
// room URL — the organisation channel, or the public per-order channel for
// the single-order mobile view — and feeds every received envelope into the
// tab's shared handler.
type Listener struct {
	url    string
	tab    *Tab
	logger *zap.Logger
}

// NewListener creates a listener for one room URL.
func NewListener(url string, tab *Tab, logger *zap.Logger) *Listener {
	return &Listener{url: url, tab: tab, logger: logger}
}

// Run dials and reads until the connection drops or ctx is cancelled. Missed
// events are not replayed on reconnect; the caller re-seeds from the read
// path instead.
func (l *Listener) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var env socket.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("socket read failed", zap.Error(err))
			return err
		}
		l.tab.HandleRemote(env)
	}
}
