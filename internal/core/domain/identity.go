package domain

import (
	"encoding/json"
	"fmt"
)

// Identity is the static credential attached to every remote call.
type Identity struct {
	Token    string `cbor:"token" json:"token"`
	UserName string `cbor:"user_name" json:"user_name"`
}

// NewIdentity builds the session identity for user.
func NewIdentity(user string) Identity {
	return Identity{
		Token:    fmt.Sprintf("%s-token", user),
		UserName: user,
	}
}

// NoOne is reported by the controller when nobody holds control.
const NoOne = "no_one"

type ClaimState string

const (
	ClaimUnclaimed   ClaimState = "unclaimed"
	ClaimHeldBySelf  ClaimState = "held_by_self"
	ClaimHeldByOther ClaimState = "held_by_other"
)

// ControlClaim is the local belief about who holds control.
// Holder is only set for ClaimHeldByOther.
type ControlClaim struct {
	State  ClaimState
	Holder string
}

func (c ControlClaim) String() string {
	if c.State == ClaimHeldByOther {
		return fmt.Sprintf("%s(%s)", c.State, c.Holder)
	}
	return string(c.State)
}

type BroadcastRegistration struct {
	ReceiverAddress string
}

// PlainText is the textual reply of most controller commands.
type PlainText struct {
	Text string `cbor:"text" json:"text"`
}

func (PlainText) PayloadKind() string { return "PlainText" }

type BroadcastRequest struct {
	BroadcastReceiverAddress string `cbor:"broadcast_receiver_address" json:"broadcast_receiver_address"`
}

func (BroadcastRequest) PayloadKind() string { return "BroadcastRequest" }

// LocationList is the reply of the controller's children listing.
type LocationList struct {
	Locations []string `cbor:"locations" json:"locations"`
}

func (LocationList) PayloadKind() string { return "LocationList" }

// BroadcastMessage is what the controller pushes to registered receivers.
type BroadcastMessage struct {
	Emitter string `json:"emitter"`
	Type    string `json:"type"`
	Data    string `json:"data"`
}

// ParseBroadcastMessage decodes a JSON notification. A payload that is not a
// JSON object is kept verbatim as Data.
func ParseBroadcastMessage(payload []byte) BroadcastMessage {
	var msg BroadcastMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return BroadcastMessage{Data: string(payload)}
	}
	return msg
}
