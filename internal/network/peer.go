package network

import (
	"encoding/binary"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// sendQueueSize bounds how many outbound messages queue per peer
// before the slowest peer starts dropping broadcasts, matching the
// teacher's bounded IncomingMessages channel.
const sendQueueSize = 100

// Peer is one connected remote node, with its own read/write pump
// goroutines, mirroring the teacher's Peer/conceptualPeerMessageProcessor
// split (one goroutine owns the connection's reads, sends go through a
// channel so writers never block on a slow network peer).
type Peer struct {
	ID       string
	conn     *websocket.Conn
	outbox   chan *Message
	lastSeen int64 // unix seconds, atomic
	wg       sync.WaitGroup
	once     sync.Once
	closed   chan struct{}
}

func newPeer(id string, conn *websocket.Conn) *Peer {
	p := &Peer{
		ID:     id,
		conn:   conn,
		outbox: make(chan *Message, sendQueueSize),
		closed: make(chan struct{}),
	}
	p.touch()
	return p
}

func (p *Peer) touch() { atomic.StoreInt64(&p.lastSeen, time.Now().Unix()) }

// LastSeen returns the unix-second timestamp of the last message
// received from this peer.
func (p *Peer) LastSeen() int64 { return atomic.LoadInt64(&p.lastSeen) }

// Send queues msg for delivery, dropping it if the peer's outbox is
// full rather than blocking the caller.
func (p *Peer) Send(msg *Message) {
	select {
	case p.outbox <- msg:
	default:
		log.Printf("NETWORK: peer %s outbox full, dropping %s message", p.ID, msg.Type)
	}
}

// signalClose closes the closed channel and the connection exactly
// once, without waiting for the pumps to exit — safe to call from
// inside a pump goroutine itself.
func (p *Peer) signalClose() {
	p.once.Do(func() {
		close(p.closed)
		_ = p.conn.Close()
	})
}

// Close signals both pumps to stop and waits for them to exit.
func (p *Peer) Close() {
	p.signalClose()
	p.wg.Wait()
}

// readLoop reads messages off the connection until it errors or
// closes, dispatching each to handle. A frame that does not start with
// '{' and whose first four bytes are a big-endian length equal to the
// rest of the frame is length-prefixed: the prefix is dropped before
// JSON decoding. Any other frame is decoded as plain JSON.
func (p *Peer) readLoop(handle func(*Peer, *Message)) {
	defer p.wg.Done()
	defer p.signalClose()
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			log.Printf("NETWORK: peer %s read error, disconnecting: %v", p.ID, err)
			return
		}
		if len(data) >= 4 && data[0] != '{' && int(binary.BigEndian.Uint32(data[:4])) == len(data)-4 {
			data = data[4:]
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("NETWORK: peer %s read error, disconnecting: %v", p.ID, err)
			return
		}
		p.touch()
		handle(p, &msg)
	}
}

// writeLoop drains outbox to the connection until closed.
func (p *Peer) writeLoop() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.outbox:
			if err := p.conn.WriteJSON(msg); err != nil {
				log.Printf("NETWORK: peer %s write error, disconnecting: %v", p.ID, err)
				return
			}
		case <-p.closed:
			return
		}
	}
}

// start launches the read and write pump goroutines.
func (p *Peer) start(handle func(*Peer, *Message)) {
	p.wg.Add(2)
	go p.readLoop(handle)
	go p.writeLoop()
}
