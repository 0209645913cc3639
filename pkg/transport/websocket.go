package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/mod/semver"
)

// ProtocolVersion is the version this node speaks, advertised and checked
// during the upgrade handshake via golang.org/x/mod/semver.
const ProtocolVersion = "v1.0.0"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// WSConn adapts a gorilla/websocket connection to the Conn interface.
type WSConn struct {
	conn  *websocket.Conn
	codec Codec
}

// Upgrade upgrades an incoming HTTP request to a WSConn, validating the
// client's advertised protocol version and negotiating a codec from its
// Accept header.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	clientVersion := r.Header.Get("X-Protocol-Version")
	if clientVersion != "" && semver.Major(clientVersion) != semver.Major(ProtocolVersion) {
		return nil, &ErrUnsupportedVersion{Requested: clientVersion, Supported: ProtocolVersion}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &WSConn{conn: conn, codec: NegotiateCodec(r.Header.Get("Accept"))}, nil
}

func (c *WSConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *WSConn) WriteMessage(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *WSConn) Close(code uint16, reason string) error {
	msg := websocket.FormatCloseMessage(int(code), reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *WSConn) Codec() Codec { return c.codec }
