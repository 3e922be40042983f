package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"drunc.client/internal/config"
	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/ports"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Receiver subscribes to the controller's broadcast topic on an MQTT broker
// and hands every notification to a handler from a single goroutine.
type Receiver struct {
	client  mqtt.Client
	topic   string
	address string
	handler ports.BroadcastHandler
	logger  *slog.Logger

	msgs     chan mqtt.Message
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// NewReceiver connects to the broker and starts the delivery loop.
func NewReceiver(conf config.BroadcasterConf, handler ports.BroadcastHandler) (*Receiver, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(conf.Address)
	opts.SetClientID(fmt.Sprintf("drunc-shell-%s", uuid.NewString()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	r := newReceiver(client, conf, handler)
	token = client.Subscribe(r.topic, 1, r.onMessage)
	if token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", r.topic, token.Error())
	}

	r.logger.Info("Connected to MQTT broker", "broker", conf.Address, "topic", r.topic)
	r.start()
	return r, nil
}

func newReceiver(client mqtt.Client, conf config.BroadcasterConf, handler ports.BroadcastHandler) *Receiver {
	return &Receiver{
		client:  client,
		topic:   conf.Topic,
		address: conf.Receiver(),
		handler: handler,
		logger:  logger.With("mqtt_receiver"),
		msgs:    make(chan mqtt.Message, 64),
		done:    make(chan struct{}),
	}
}

func (r *Receiver) start() {
	r.wg.Add(1)
	go r.consume()
}

func (r *Receiver) Address() string { return r.address }

func (r *Receiver) onMessage(_ mqtt.Client, m mqtt.Message) {
	select {
	case r.msgs <- m:
	case <-r.done:
	}
}

func (r *Receiver) consume() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case m := <-r.msgs:
			r.handler(domain.ParseBroadcastMessage(m.Payload()))
		}
	}
}

// Stop unsubscribes, waits for the delivery loop and disconnects.
func (r *Receiver) Stop() error {
	r.stopOnce.Do(func() {
		if r.client != nil && r.client.IsConnected() {
			token := r.client.Unsubscribe(r.topic)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				r.stopErr = token.Error()
			}
		}
		close(r.done)
		r.wg.Wait()
		if r.client != nil {
			r.client.Disconnect(250)
		}
		r.logger.Debug("MQTT receiver stopped", "topic", r.topic)
	})
	return r.stopErr
}

// Ping reports whether the broker connection is up.
func (r *Receiver) Ping(ctx context.Context) error {
	if !r.client.IsConnectionOpen() {
		return errors.New("mqtt: not connected")
	}
	return nil
}
