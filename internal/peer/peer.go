// Package peer implements the Chord node: ring membership, ownership
// routing, the key/value store, and the HTTP-forwarding data plane.
package peer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/retorded/chordkv/internal/ring"
	"github.com/retorded/chordkv/internal/rpc"
)

var errCrashed = errors.New("peer: simulated crash, connection refused")

// Peer is one node in the ring. self_id/rpc_addr/http_addr are fixed at
// construction; predecessor, successor and second_successor each carry
// their own lock since stabilization reads and writes them independently
// of request handling. The lock is always released before an RPC is
// issued — a held lock across a network call would let one slow peer
// stall every local operation.
type Peer struct {
	self rpc.Neighbor

	predMu      sync.RWMutex
	predecessor *rpc.Neighbor

	succMu    sync.RWMutex
	successor rpc.Neighbor

	secondMu        sync.RWMutex
	secondSuccessor *rpc.Neighbor

	storeMu sync.RWMutex
	store   map[string][]byte

	crashed atomic.Bool

	rpcClient *rpc.Client

	// fastClient serves reads: a forwarded GET should fail fast rather
	// than stall the caller behind a slow or half-dead owner.
	fastClient *http.Client
	// slowClient serves writes: a forwarded PUT is worth waiting
	// longer for, since retrying it from scratch is more expensive
	// than retrying a read.
	slowClient *http.Client

	log *zap.Logger
}

// New builds a Peer that is its own successor: a freshly started,
// not-yet-joined singleton ring.
func New(rpcAddr, httpAddr string, log *zap.Logger) (*Peer, error) {
	self, err := rpc.NewNeighbor(rpcAddr, httpAddr)
	if err != nil {
		return nil, fmt.Errorf("peer: deriving self id: %w", err)
	}
	return &Peer{
		self:       self,
		successor:  self,
		store:      make(map[string][]byte),
		rpcClient:  rpc.DefaultClient(),
		fastClient: &http.Client{Timeout: 500 * time.Millisecond},
		slowClient: &http.Client{Timeout: 2 * time.Second},
		log:        log,
	}, nil
}

func (p *Peer) Self() rpc.Neighbor { return p.self }
func (p *Peer) ID() ring.ID        { return p.self.ID }

func (p *Peer) Predecessor() *rpc.Neighbor {
	p.predMu.RLock()
	defer p.predMu.RUnlock()
	if p.predecessor == nil {
		return nil
	}
	cp := *p.predecessor
	return &cp
}

func (p *Peer) SetPredecessor(n *rpc.Neighbor) {
	p.predMu.Lock()
	defer p.predMu.Unlock()
	p.predecessor = n
}

func (p *Peer) Successor() rpc.Neighbor {
	p.succMu.RLock()
	defer p.succMu.RUnlock()
	return p.successor
}

func (p *Peer) SetSuccessor(n rpc.Neighbor) {
	p.succMu.Lock()
	defer p.succMu.Unlock()
	p.successor = n
}

func (p *Peer) SecondSuccessor() *rpc.Neighbor {
	p.secondMu.RLock()
	defer p.secondMu.RUnlock()
	if p.secondSuccessor == nil {
		return nil
	}
	cp := *p.secondSuccessor
	return &cp
}

func (p *Peer) SetSecondSuccessor(n *rpc.Neighbor) {
	p.secondMu.Lock()
	defer p.secondMu.Unlock()
	p.secondSuccessor = n
}

func (p *Peer) neighborProxy(n rpc.Neighbor) neighborProxy {
	return neighborProxy{client: p.rpcClient, target: n}
}

// ContainsID reports whether id falls in this peer's ownership arc,
// (predecessor.id, self.id]. A peer with no known predecessor owns the
// whole ring — true before the first Notify arrives.
func (p *Peer) ContainsID(id ring.ID) bool {
	pred := p.Predecessor()
	if pred == nil {
		return true
	}
	return ring.Between(id, pred.ID, p.self.ID)
}

// FindSuccessor resolves which peer owns id, forwarding to the
// successor when id falls outside this peer's arc. A dead successor is
// retried once against the second successor before giving up.
func (p *Peer) FindSuccessor(id ring.ID) (rpc.Neighbor, error) {
	if p.ContainsID(id) {
		return p.self, nil
	}

	succ := p.Successor()
	if succ.ID == p.self.ID {
		return p.self, nil
	}

	n, err := p.neighborProxy(succ).FindSuccessor(id)
	if err == nil {
		return n, nil
	}

	if !p.failoverSuccessor() {
		return rpc.Neighbor{}, &rpc.AllSuccessorsDeadError{SelfAddr: p.self.RPCAddr}
	}

	succ = p.Successor()
	if succ.ID == p.self.ID {
		return p.self, nil
	}
	n, err = p.neighborProxy(succ).FindSuccessor(id)
	if err != nil {
		return rpc.Neighbor{}, &rpc.AllSuccessorsDeadError{SelfAddr: p.self.RPCAddr}
	}
	return n, nil
}

// failoverSuccessor promotes the second successor into the successor
// slot, discarding the one that's assumed dead. Reports false when
// there was no second successor to fall back to.
func (p *Peer) failoverSuccessor() bool {
	second := p.SecondSuccessor()
	if second == nil {
		return false
	}
	p.SetSuccessor(*second)
	p.SetSecondSuccessor(nil)
	return true
}

// Lookup reads key, serving locally if this peer owns it or forwarding
// the read over HTTP to the owner otherwise.
func (p *Peer) Lookup(key string) ([]byte, bool, error) {
	id := ring.HashKey(key)
	owner, err := p.FindSuccessor(id)
	if err != nil {
		return nil, false, err
	}
	if owner.ID == p.self.ID {
		p.storeMu.RLock()
		v, ok := p.store[key]
		p.storeMu.RUnlock()
		if !ok {
			return nil, false, nil
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, true, nil
	}
	return p.httpGet(owner.HTTPAddr, key)
}

// Put writes key/value, serving locally if this peer owns it or
// forwarding the write over HTTP to the owner otherwise.
func (p *Peer) Put(key string, value []byte) error {
	id := ring.HashKey(key)
	owner, err := p.FindSuccessor(id)
	if err != nil {
		return err
	}
	if owner.ID == p.self.ID {
		cp := make([]byte, len(value))
		copy(cp, value)
		p.storeMu.Lock()
		p.store[key] = cp
		p.storeMu.Unlock()
		return nil
	}
	return p.httpPut(owner.HTTPAddr, key, value)
}

func (p *Peer) httpGet(httpAddr, key string) ([]byte, bool, error) {
	url := fmt.Sprintf("http://%s/storage/%s", httpAddr, key)
	resp, err := p.fastClient.Get(url)
	if err != nil {
		return nil, false, &rpc.IOError{Addr: httpAddr, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, &rpc.IOError{Addr: httpAddr, Err: err}
		}
		return body, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, &rpc.HTTPStatusError{Code: resp.StatusCode}
	}
}

func (p *Peer) httpPut(httpAddr, key string, value []byte) error {
	url := fmt.Sprintf("http://%s/storage/%s", httpAddr, key)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(value))
	if err != nil {
		return err
	}
	resp, err := p.slowClient.Do(req)
	if err != nil {
		return &rpc.IOError{Addr: httpAddr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &rpc.HTTPStatusError{Code: resp.StatusCode}
	}
	return nil
}

// SimCrash puts the peer into crash simulation: every RPC and every
// data-plane HTTP request but /sim-recover is refused from here on.
func (p *Peer) SimCrash() { p.crashed.Store(true) }

// SimRecover clears crash simulation.
func (p *Peer) SimRecover() { p.crashed.Store(false) }

func (p *Peer) Crashed() bool { return p.crashed.Load() }

// HandleMessage dispatches one decoded control-plane Message to the
// right peer operation and builds the reply, if any. Called from the
// RPC transport's per-connection goroutine.
func (p *Peer) HandleMessage(msg rpc.Message) (*rpc.Message, error) {
	if p.crashed.Load() {
		return nil, &rpc.IOError{Addr: p.self.RPCAddr, Err: errCrashed}
	}

	switch msg.Kind {
	case rpc.KindLookup:
		n, err := p.FindSuccessor(msg.ID)
		if err != nil {
			return nil, err
		}
		reply := rpc.LookupResult(n)
		return &reply, nil

	case rpc.KindGetPredecessor:
		reply := rpc.PredecessorResponse(p.Predecessor())
		return &reply, nil

	case rpc.KindGetSuccessor:
		reply := rpc.SuccessorResponse(p.Successor())
		return &reply, nil

	case rpc.KindNotify:
		if msg.Neighbor == nil {
			return nil, &rpc.DecodeError{Err: errors.New("notify: missing neighbor")}
		}
		p.Notify(*msg.Neighbor)
		return nil, nil

	case rpc.KindLeaveSuccessor:
		if msg.Neighbor == nil {
			return nil, &rpc.DecodeError{Err: errors.New("leave_successor: missing neighbor")}
		}
		cur := p.Successor()
		if cur.ID == msg.Neighbor.ID {
			p.SetSuccessor(p.self)
		} else {
			p.SetSuccessor(*msg.Neighbor)
		}
		return nil, nil

	case rpc.KindLeavePredecessor:
		cur := p.Predecessor()
		if msg.Neighbor != nil && cur != nil && cur.ID == msg.Neighbor.ID {
			self := p.self
			p.SetPredecessor(&self)
		} else {
			p.SetPredecessor(msg.Neighbor)
		}
		return nil, nil

	case rpc.KindPing:
		reply := rpc.Pong()
		return &reply, nil

	default:
		return nil, &rpc.UnexpectedResponseError{Sent: msg.Kind, GotReply: false}
	}
}

// Notify is called (locally, by stabilize, or remotely via HandleMessage)
// to tell this peer that n believes it might be its predecessor.
func (p *Peer) Notify(n rpc.Neighbor) {
	pred := p.Predecessor()
	if pred == nil {
		p.SetPredecessor(&n)
		return
	}
	if n.ID != pred.ID && ring.Between(n.ID, pred.ID, p.self.ID) {
		p.SetPredecessor(&n)
	}
}

// NodeInfo is the introspection payload served at GET /node-info, per
// spec.md §6: node_hash is the ring id in hex, chord_address is the
// RPC control-plane address, and successor/others carry HTTP
// addresses — the data-plane address other peers forward storage
// requests to.
type NodeInfo struct {
	NodeHash     string   `json:"node_hash"`
	ChordAddress string   `json:"chord_address"`
	Successor    string   `json:"successor"`
	Others       []string `json:"others"`
}

func (p *Peer) Info() NodeInfo {
	info := NodeInfo{
		NodeHash:     fmt.Sprintf("%x", uint64(p.self.ID)),
		ChordAddress: p.self.RPCAddr,
		Successor:    p.Successor().HTTPAddr,
		Others:       []string{},
	}
	if pred := p.Predecessor(); pred != nil {
		info.Others = append(info.Others, pred.HTTPAddr)
	}
	if second := p.SecondSuccessor(); second != nil {
		info.Others = append(info.Others, second.HTTPAddr)
	}
	return info
}
