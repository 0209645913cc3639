// Package transport abstracts the bidirectional message stream a node
// speaks with a client, supporting both CBOR and JSON framing chosen at
// connection time from the Accept header (NegotiateCodec), a
// protocol-version header checked separately by Upgrade, and close codes
// matching the §7 error taxonomy.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec selects how frame bodies are (de)serialized on one connection.
type Codec int

const (
	CodecCBOR Codec = iota
	CodecJSON
)

// NegotiateCodec chooses a codec from the client-advertised Accept value,
// defaulting to CBOR (the denser, teacher-preferred wire format) when the
// header is absent or unrecognized.
func NegotiateCodec(accept string) Codec {
	if accept == "application/json" {
		return CodecJSON
	}
	return CodecCBOR
}

// Marshal encodes v using the connection's negotiated codec.
func Marshal(c Codec, v any) ([]byte, error) {
	switch c {
	case CodecJSON:
		return json.Marshal(v)
	default:
		return cbor.Marshal(v)
	}
}

// Unmarshal decodes data into v using the connection's negotiated codec.
func Unmarshal(c Codec, data []byte, v any) error {
	switch c {
	case CodecJSON:
		return json.Unmarshal(data, v)
	default:
		return cbor.Unmarshal(data, v)
	}
}

// Conn is the minimal bidirectional message-stream contract the session
// handler depends on. The concrete implementation in websocket.go backs it
// with gorilla/websocket; tests can supply an in-process fake.
type Conn interface {
	// ReadMessage blocks for the next frame, or returns an error if the
	// connection closes or ctx is cancelled.
	ReadMessage(ctx context.Context) ([]byte, error)
	// WriteMessage sends one frame.
	WriteMessage(ctx context.Context, data []byte) error
	// Close closes the connection with the given close code and reason.
	Close(code uint16, reason string) error
	// Codec reports the negotiated codec for this connection.
	Codec() Codec
}

// ErrUnsupportedVersion is returned when a client's negotiated protocol
// version is not one this node speaks.
type ErrUnsupportedVersion struct {
	Requested string
	Supported string
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("transport: unsupported protocol version %q (this node speaks %q)", e.Requested, e.Supported)
}
