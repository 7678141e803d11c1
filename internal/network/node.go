package network

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gillean.network/gillean/internal/nodeerrors"
)

// dialTimeout bounds how long Connect waits for the WebSocket
// handshake to complete (§4.9).
const dialTimeout = 5 * time.Second

// pingInterval is how often Manager pings every connected peer to
// refresh liveness tracking.
const pingInterval = 30 * time.Second

// staleAfter is how long without any message (including pongs) before
// a peer is considered dead and disconnected.
const staleAfter = 90 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Manager owns every connection for one node: inbound (accepted) and
// outbound (dialed) peers are treated identically once the handshake
// completes, mirroring the teacher's SimulatedNetwork peer map and
// broadcast fan-out.
type Manager struct {
	NodeID string

	mu    sync.RWMutex
	peers map[string]*Peer

	BlockBroadcast       chan []byte
	TransactionBroadcast chan []byte
	SyncRequests         chan SyncRequestEnvelope

	stopPing chan struct{}
	pingWG   sync.WaitGroup
}

// SyncRequestEnvelope pairs an inbound SyncRequest with the peer that
// sent it, so the caller can route a SyncResponse back.
type SyncRequestEnvelope struct {
	Peer    *Peer
	Request SyncRequestPayload
}

// NewManager constructs a Manager for nodeID and starts its liveness
// ping loop.
func NewManager(nodeID string) *Manager {
	m := &Manager{
		NodeID:               nodeID,
		peers:                make(map[string]*Peer),
		BlockBroadcast:       make(chan []byte, 100),
		TransactionBroadcast: make(chan []byte, 100),
		SyncRequests:         make(chan SyncRequestEnvelope, 100),
		stopPing:             make(chan struct{}),
	}
	m.pingWG.Add(1)
	go m.pingLoop()
	return m
}

// Connect dials peerAddr over WebSocket with a 5-second handshake
// timeout (§4.9) and registers the resulting peer under peerID.
func (m *Manager) Connect(peerID, peerAddr string) (*Peer, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(peerAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial peer %s at %s: %v", nodeerrors.ErrNetworkError, peerID, peerAddr, err)
	}
	return m.register(peerID, conn), nil
}

// Accept upgrades an incoming HTTP request to a WebSocket connection
// and registers the resulting peer. Use as an http.HandlerFunc-style
// callback from the caller's HTTP server.
func (m *Manager) Accept(peerID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("%w: upgrade connection from %s: %v", nodeerrors.ErrNetworkError, peerID, err)
	}
	m.register(peerID, conn)
	return nil
}

func (m *Manager) register(peerID string, conn *websocket.Conn) *Peer {
	peer := newPeer(peerID, conn)
	m.mu.Lock()
	if existing, ok := m.peers[peerID]; ok {
		m.mu.Unlock()
		existing.Close()
		m.mu.Lock()
	}
	m.peers[peerID] = peer
	m.mu.Unlock()

	peer.start(m.handleMessage)
	log.Printf("NETWORK [%s]: connected to peer %s", m.NodeID, peerID)
	return peer
}

// Disconnect closes and forgets peerID.
func (m *Manager) Disconnect(peerID string) {
	m.mu.Lock()
	peer, ok := m.peers[peerID]
	if ok {
		delete(m.peers, peerID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	peer.Close()
	log.Printf("NETWORK [%s]: disconnected from peer %s", m.NodeID, peerID)
}

// Peers returns the IDs of every currently connected peer.
func (m *Manager) Peers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) handleMessage(peer *Peer, msg *Message) {
	switch msg.Type {
	case MessageNewBlock:
		var raw RawPayload
		if err := msg.Decode(&raw); err != nil {
			log.Printf("NETWORK [%s]: bad block payload from %s: %v", m.NodeID, peer.ID, err)
			return
		}
		select {
		case m.BlockBroadcast <- raw.Data:
		default:
			log.Printf("NETWORK [%s]: block broadcast channel full, dropping block from %s", m.NodeID, peer.ID)
		}
	case MessageNewTransaction:
		var raw RawPayload
		if err := msg.Decode(&raw); err != nil {
			log.Printf("NETWORK [%s]: bad transaction payload from %s: %v", m.NodeID, peer.ID, err)
			return
		}
		select {
		case m.TransactionBroadcast <- raw.Data:
		default:
			log.Printf("NETWORK [%s]: transaction broadcast channel full, dropping tx from %s", m.NodeID, peer.ID)
		}
	case MessageSyncRequest:
		var req SyncRequestPayload
		if err := msg.Decode(&req); err != nil {
			log.Printf("NETWORK [%s]: bad sync request from %s: %v", m.NodeID, peer.ID, err)
			return
		}
		select {
		case m.SyncRequests <- SyncRequestEnvelope{Peer: peer, Request: req}:
		default:
			log.Printf("NETWORK [%s]: sync request queue full, dropping request from %s", m.NodeID, peer.ID)
		}
	case MessagePing:
		pong, _ := Encode(MessagePong, nil)
		peer.Send(pong)
	case MessagePong:
		// touch() already ran in readLoop; nothing else to do.
	default:
		log.Printf("NETWORK [%s]: unhandled message type %s from %s", m.NodeID, msg.Type, peer.ID)
	}
}

// BroadcastBlock sends raw serialized block bytes to every peer.
func (m *Manager) BroadcastBlock(blockBytes []byte) {
	msg, err := Encode(MessageNewBlock, RawPayload{Data: blockBytes})
	if err != nil {
		log.Printf("NETWORK [%s]: encode block broadcast: %v", m.NodeID, err)
		return
	}
	m.broadcast(msg)
}

// BroadcastTransaction sends raw serialized transaction bytes to every peer.
func (m *Manager) BroadcastTransaction(txBytes []byte) {
	msg, err := Encode(MessageNewTransaction, RawPayload{Data: txBytes})
	if err != nil {
		log.Printf("NETWORK [%s]: encode transaction broadcast: %v", m.NodeID, err)
		return
	}
	m.broadcast(msg)
}

// SendSyncResponse answers a SyncRequestEnvelope with the given blocks.
func (m *Manager) SendSyncResponse(peer *Peer, blocks [][]byte) {
	msg, err := Encode(MessageSyncResponse, SyncResponsePayload{Blocks: blocks})
	if err != nil {
		log.Printf("NETWORK [%s]: encode sync response for %s: %v", m.NodeID, peer.ID, err)
		return
	}
	peer.Send(msg)
}

func (m *Manager) broadcast(msg *Message) {
	m.mu.RLock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.RUnlock()
	for _, p := range peers {
		p.Send(msg)
	}
}

// pingLoop periodically pings every peer and disconnects anyone that
// hasn't produced a message (including a pong) within staleAfter.
func (m *Manager) pingLoop() {
	defer m.pingWG.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.pingAndReap()
		case <-m.stopPing:
			return
		}
	}
}

func (m *Manager) pingAndReap() {
	now := time.Now().Unix()
	m.mu.RLock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.RUnlock()

	ping, _ := Encode(MessagePing, nil)
	for _, p := range peers {
		if now-p.LastSeen() > int64(staleAfter.Seconds()) {
			log.Printf("NETWORK [%s]: peer %s stale, disconnecting", m.NodeID, p.ID)
			m.Disconnect(p.ID)
			continue
		}
		p.Send(ping)
	}
}

// Shutdown stops the ping loop and disconnects every peer.
func (m *Manager) Shutdown() {
	close(m.stopPing)
	m.pingWG.Wait()
	for _, id := range m.Peers() {
		m.Disconnect(id)
	}
}
