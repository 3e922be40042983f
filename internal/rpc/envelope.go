package rpc

import (
	"errors"
	"fmt"

	"drunc.client/internal/core/domain"
	"github.com/fxamacker/cbor/v2"
)

// ErrPayloadMismatch is returned when a response payload is missing or of
// an unexpected kind. It is a protocol error and is never retried.
var ErrPayloadMismatch = errors.New("payload mismatch")

// Message is any value that can travel inside a Payload.
type Message interface {
	PayloadKind() string
}

// Payload is a tagged union: Kind names the concrete message encoded in Body.
type Payload struct {
	Kind string          `cbor:"kind"`
	Body cbor.RawMessage `cbor:"body"`
}

type Request struct {
	Token domain.Identity `cbor:"token"`
	Data  *Payload        `cbor:"data,omitempty"`
}

type Response struct {
	Token domain.Identity `cbor:"token"`
	Data  *Payload        `cbor:"data,omitempty"`
}

// Pack encodes msg into a Payload tagged with its kind.
func Pack(msg Message) (*Payload, error) {
	body, err := Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", msg.PayloadKind(), err)
	}
	return &Payload{Kind: msg.PayloadKind(), Body: body}, nil
}

// Unpack decodes p into the message type T, checking the kind tag first.
func Unpack[T any, PT interface {
	*T
	Message
}](p *Payload) (*T, error) {
	out := new(T)
	want := PT(out).PayloadKind()
	if p == nil {
		return nil, fmt.Errorf("%w: expected %s, got empty payload", ErrPayloadMismatch, want)
	}
	if p.Kind != want {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPayloadMismatch, want, p.Kind)
	}
	if err := Unmarshal(p.Body, out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrPayloadMismatch, want, err)
	}
	return out, nil
}

// NewRequest copies id into a request envelope, packing msg when it is not nil.
func NewRequest(id domain.Identity, msg Message) (*Request, error) {
	req := &Request{Token: id}
	if msg == nil {
		return req, nil
	}
	p, err := Pack(msg)
	if err != nil {
		return nil, err
	}
	req.Data = p
	return req, nil
}

// NewResponse is the server-side counterpart of NewRequest.
func NewResponse(id domain.Identity, msg Message) (*Response, error) {
	resp := &Response{Token: id}
	if msg == nil {
		return resp, nil
	}
	p, err := Pack(msg)
	if err != nil {
		return nil, err
	}
	resp.Data = p
	return resp, nil
}
