// Package wire defines the messages exchanged over a node's bidirectional
// session stream, tagged for both CBOR and JSON encoding so a single struct
// definition serves whichever codec the connection negotiated.
package wire

import "github.com/google/uuid"

// FrameType discriminates the message types carried over one session
// connection.
type FrameType string

const (
	FrameOprfRequest        FrameType = "oprf_request"
	FrameCommitments        FrameType = "commitments"
	FrameChallenge          FrameType = "challenge"
	FrameResponseShare      FrameType = "response_share"
	FrameClose              FrameType = "close"
)

// PointBytes is the compressed wire encoding of a curve point.
type PointBytes []byte

// OprfRequest is the client's opening message for one evaluation session.
type OprfRequest struct {
	SessionID    uuid.UUID  `cbor:"session_id" json:"session_id"`
	KeyID        uint64     `cbor:"key_id" json:"key_id"`
	BlindedQuery PointBytes `cbor:"blinded_query" json:"blinded_query"`
}

// CommitmentsMessage carries a node's partial Chaum-Pedersen nonce
// commitments back to the client.
type CommitmentsMessage struct {
	SessionID uuid.UUID  `cbor:"session_id" json:"session_id"`
	PartyID   uint16     `cbor:"party_id" json:"party_id"`
	Epoch     uint32     `cbor:"epoch" json:"epoch"`
	Response  PointBytes `cbor:"response" json:"response"`
	C         PointBytes `cbor:"c" json:"c"`
	D1        PointBytes `cbor:"d1" json:"d1"`
	D2        PointBytes `cbor:"d2" json:"d2"`
	E1        PointBytes `cbor:"e1" json:"e1"`
	E2        PointBytes `cbor:"e2" json:"e2"`
}

// ChallengeMessage is the client's combined-commitment challenge, sent back
// to every contributing node to request its proof share.
type ChallengeMessage struct {
	SessionID           uuid.UUID  `cbor:"session_id" json:"session_id"`
	ContributingParties []uint16   `cbor:"contributing_parties" json:"contributing_parties"`
	C                   PointBytes `cbor:"c" json:"c"`
	D1                  PointBytes `cbor:"d1" json:"d1"`
	D2                  PointBytes `cbor:"d2" json:"d2"`
	E1                  PointBytes `cbor:"e1" json:"e1"`
	E2                  PointBytes `cbor:"e2" json:"e2"`
}

// ResponseShareMessage is a node's final proof share, closing the session.
type ResponseShareMessage struct {
	SessionID uuid.UUID `cbor:"session_id" json:"session_id"`
	Share     []byte    `cbor:"share" json:"share"`
}

// CloseMessage explains why the node is closing the connection.
type CloseMessage struct {
	Code   uint16 `cbor:"code" json:"code"`
	Reason string `cbor:"reason" json:"reason"`
}

// Close codes, named after the §7 error taxonomy.
const (
	CloseNormal      uint16 = 1000
	CloseBadRequest  uint16 = 4001
	CloseUnsupported uint16 = 4002
	CloseProtocol    uint16 = 1003
	ClosePolicy      uint16 = 1008
)
