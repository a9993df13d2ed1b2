package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	gorillawebsocket "github.com/gorilla/websocket"

	"github.com/liveintake/intake/internal/platform/broadcast"
)

// Remote is a subscriber connection to another process's hub over WebSocket,
// used by consoles that follow a channel they do not host.
type Remote struct {
	conn    *gorillawebsocket.Conn
	writeMu sync.Mutex
}

// Dial connects to the hub WebSocket endpoint at url and subscribes to topics.
func Dial(ctx context.Context, url string, topics ...string) (*Remote, error) {
	conn, _, err := gorillawebsocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	r := &Remote{conn: conn}
	if len(topics) > 0 {
		if err := r.write(ClientMessage{Action: ActionSubscribe, Topics: topics}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	return r, nil
}

// Listen reads envelopes until ctx is cancelled or the connection fails,
// calling fn for each one. Frames that are not envelopes are skipped.
func (r *Remote) Listen(ctx context.Context, fn func(broadcast.Envelope)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		var env broadcast.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type != broadcast.EnvelopeType {
			continue
		}
		fn(env)
	}
}

// Close closes the underlying connection.
func (r *Remote) Close() error {
	return r.conn.Close()
}

func (r *Remote) write(msg ClientMessage) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(msg)
}
