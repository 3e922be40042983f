package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"drunc.client/internal/config"
	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/ports"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write the close frame to the peer.
	writeWait = 5 * time.Second
)

// Receiver reads controller broadcasts from a WebSocket feed.
type Receiver struct {
	conn    *websocket.Conn
	address string
	handler ports.BroadcastHandler
	logger  *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopping chan struct{}
	stopErr  error
}

// NewReceiver dials conf.Address (ws:// or wss://) and starts the read loop.
func NewReceiver(ctx context.Context, conf config.BroadcasterConf, handler ports.BroadcastHandler) (*Receiver, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, conf.Address, nil)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		conn:     conn,
		address:  conf.Receiver(),
		handler:  handler,
		logger:   logger.With("websocket_receiver"),
		stopping: make(chan struct{}),
	}
	r.logger.Info("Connected to broadcast feed", "url", conf.Address)

	r.wg.Add(1)
	go r.readPump()
	return r, nil
}

func (r *Receiver) Address() string { return r.address }

func (r *Receiver) readPump() {
	defer r.wg.Done()
	for {
		_, payload, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.stopping:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					r.logger.Error("Broadcast feed closed", "error", err)
				}
			}
			return
		}
		r.handler(domain.ParseBroadcastMessage(payload))
	}
}

// Stop sends a close frame, closes the connection and waits for the read loop.
func (r *Receiver) Stop() error {
	r.stopOnce.Do(func() {
		close(r.stopping)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			r.logger.Debug("Could not send close frame", "error", werr)
		}
		r.stopErr = r.conn.Close()
		r.wg.Wait()
	})
	return r.stopErr
}
