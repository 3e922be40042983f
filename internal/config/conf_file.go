package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Broadcaster types.
const (
	BroadcasterNone      = ""
	BroadcasterMQTT      = "mqtt"
	BroadcasterRedis     = "redis"
	BroadcasterWebSocket = "websocket"
)

// BroadcasterConf describes how notifications reach this client.
type BroadcasterConf struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Topic   string `json:"topic"`
	// ReceiverAddress is what the controller is told to send to. It
	// defaults to Address.
	ReceiverAddress string `json:"receiver_address"`
}

func (b BroadcasterConf) Receiver() string {
	if b.ReceiverAddress != "" {
		return b.ReceiverAddress
	}
	return b.Address
}

type ControllerConf struct {
	Address     string          `json:"address"`
	Broadcaster BroadcasterConf `json:"broadcaster"`
}

type ProcessManagerConf struct {
	CommandAddress string          `json:"command_address"`
	Broadcaster    BroadcasterConf `json:"broadcaster"`
}

// LoadControllerConf reads a JSON-with-comments controller configuration.
func LoadControllerConf(path string) (*ControllerConf, error) {
	var conf ControllerConf
	if err := loadJSONC(path, &conf); err != nil {
		return nil, err
	}
	if conf.Address == "" {
		return nil, fmt.Errorf("%s: address is required", path)
	}
	if err := conf.Broadcaster.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if conf.Broadcaster.Topic == "" {
		conf.Broadcaster.Topic = "controller"
	}
	return &conf, nil
}

// LoadProcessManagerConf reads a JSON-with-comments process manager configuration.
func LoadProcessManagerConf(path string) (*ProcessManagerConf, error) {
	var conf ProcessManagerConf
	if err := loadJSONC(path, &conf); err != nil {
		return nil, err
	}
	if conf.CommandAddress == "" {
		return nil, fmt.Errorf("%s: command_address is required", path)
	}
	if err := conf.Broadcaster.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if conf.Broadcaster.Topic == "" {
		conf.Broadcaster.Topic = "ProcessManager"
	}
	return &conf, nil
}

func (b BroadcasterConf) validate() error {
	switch b.Type {
	case BroadcasterNone:
		return nil
	case BroadcasterMQTT, BroadcasterRedis, BroadcasterWebSocket:
		if b.Address == "" {
			return fmt.Errorf("broadcaster %s needs an address", b.Type)
		}
		return nil
	}
	return fmt.Errorf("unknown broadcaster type %q", b.Type)
}

func loadJSONC(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New(path + ": empty configuration")
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
