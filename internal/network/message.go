// Package network implements peer-to-peer gossip over WebSocket
// connections (§4.9): block/transaction broadcast, chain sync
// request/response, and peer discovery/liveness tracking.
//
// Grounded on the teacher's internal/network.SimulatedNetwork for
// shape (NodeID-addressed peer map, per-peer read-loop goroutine,
// broadcast-to-all-peers fan-out, "SIMNET"-style ALL-CAPS log prefix
// here become "NETWORK") but replacing the teacher's in-process Go
// channels with real connections, since §4.9 requires actual peer
// transport. github.com/gorilla/websocket is an indirect dependency
// already present across the wider example pack (exccd, erigon,
// certen-validator, prysm all carry it); this is the component that
// exercises it directly.
package network

import (
	"encoding/json"
	"fmt"

	"gillean.network/gillean/internal/nodeerrors"
)

// MessageType enumerates the wire message kinds of §4.9.
type MessageType string

const (
	MessageNewBlock       MessageType = "NewBlock"
	MessageNewTransaction MessageType = "NewTransaction"
	MessageSyncRequest    MessageType = "SyncRequest"
	MessageSyncResponse   MessageType = "SyncResponse"
	MessagePing           MessageType = "Ping"
	MessagePong           MessageType = "Pong"
	MessagePeerDiscovery  MessageType = "PeerDiscovery"
	MessagePeerList       MessageType = "PeerList"
)

// Message is the envelope every peer connection exchanges: a type tag
// plus a type-specific JSON payload.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RawPayload wraps an opaque serialized blob (a block or transaction)
// so it can travel as a JSON string (base64, via encoding/json's []byte
// handling) inside a Message envelope instead of corrupting the
// envelope's own JSON structure.
type RawPayload struct {
	Data []byte `json:"data"`
}

// SyncRequestPayload asks a peer for every block from FromHeight on,
// within the given shard.
type SyncRequestPayload struct {
	ShardID    uint32 `json:"shard_id"`
	FromHeight uint64 `json:"from_height"`
}

// SyncResponsePayload answers a SyncRequest with raw block bytes; the
// caller deserializes with internal/types.
type SyncResponsePayload struct {
	Blocks [][]byte `json:"blocks"`
}

// PeerListPayload is exchanged during discovery: the addresses a peer
// knows about.
type PeerListPayload struct {
	Addresses []string `json:"addresses"`
}

// Encode wraps payload as msgType's envelope.
func Encode(msgType MessageType, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s payload: %v", nodeerrors.ErrNetworkError, msgType, err)
	}
	return &Message{Type: msgType, Payload: data}, nil
}

// Decode unmarshals m.Payload into out.
func (m *Message) Decode(out any) error {
	if err := json.Unmarshal(m.Payload, out); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", nodeerrors.ErrNetworkError, m.Type, err)
	}
	return nil
}
