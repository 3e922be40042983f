package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"drunc.client/internal/config"
	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

// Receiver listens on a Redis pub/sub channel for controller broadcasts.
type Receiver struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	address string
	handler ports.BroadcastHandler
	logger  *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// NewReceiver subscribes to conf.Topic and starts the delivery loop once
// the subscription is confirmed.
func NewReceiver(ctx context.Context, conf config.BroadcasterConf, handler ports.BroadcastHandler) (*Receiver, error) {
	opts, err := redis.ParseURL(conf.Address)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pubsub := client.Subscribe(ctx, conf.Topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", conf.Topic, err)
	}

	r := &Receiver{
		client:  client,
		pubsub:  pubsub,
		address: conf.Receiver(),
		handler: handler,
		logger:  logger.With("redis_receiver"),
	}
	r.logger.Info("Subscribed to Redis channel", "channel", conf.Topic)

	r.wg.Add(1)
	go r.consume(pubsub.Channel())
	return r, nil
}

func (r *Receiver) Address() string { return r.address }

func (r *Receiver) consume(ch <-chan *redis.Message) {
	defer r.wg.Done()
	for msg := range ch {
		r.handler(domain.ParseBroadcastMessage([]byte(msg.Payload)))
	}
}

// Stop closes the subscription, which ends the delivery loop, and waits for it.
func (r *Receiver) Stop() error {
	r.stopOnce.Do(func() {
		r.stopErr = r.pubsub.Close()
		r.wg.Wait()
		if err := r.client.Close(); err != nil && r.stopErr == nil {
			r.stopErr = err
		}
	})
	return r.stopErr
}

func (r *Receiver) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
