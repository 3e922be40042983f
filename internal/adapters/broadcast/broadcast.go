package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"drunc.client/internal/adapters/handler/mqtt"
	"drunc.client/internal/adapters/handler/websocket"
	"drunc.client/internal/adapters/queue/redis"
	"drunc.client/internal/config"
	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var received = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "drunc_client_broadcasts_received_total",
		Help: "Notifications delivered by the broadcast receiver, by message type",
	},
	[]string{"type"},
)

// New starts the receiver described by conf. It returns nil, nil when no
// broadcaster is configured.
func New(ctx context.Context, conf config.BroadcasterConf, handler ports.BroadcastHandler) (ports.BroadcastReceiver, error) {
	if handler == nil {
		handler = LogHandler(logger.With("broadcast"))
	}
	handler = counted(handler)
	var (
		r   ports.BroadcastReceiver
		err error
	)
	switch conf.Type {
	case config.BroadcasterNone:
		return nil, nil
	case config.BroadcasterMQTT:
		r, err = mqtt.NewReceiver(conf, handler)
	case config.BroadcasterRedis:
		r, err = redis.NewReceiver(ctx, conf, handler)
	case config.BroadcasterWebSocket:
		r, err = websocket.NewReceiver(ctx, conf, handler)
	default:
		return nil, fmt.Errorf("unknown broadcaster type %q", conf.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("start %s receiver: %w", conf.Type, err)
	}
	return r, nil
}

// LogHandler prints every notification through l.
func LogHandler(l *slog.Logger) ports.BroadcastHandler {
	return func(msg domain.BroadcastMessage) {
		l.Info("Broadcast", "emitter", msg.Emitter, "type", msg.Type, "data", msg.Data)
	}
}

func counted(next ports.BroadcastHandler) ports.BroadcastHandler {
	return func(msg domain.BroadcastMessage) {
		received.WithLabelValues(msg.Type).Inc()
		next(msg)
	}
}
