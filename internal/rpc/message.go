// Package rpc implements the self-describing binary control-plane
// protocol peers use to locate and notify each other: a tagged-union
// Message, CBOR-encoded, sent over a connection-per-request TCP socket.
package rpc

import (
	"github.com/retorded/chordkv/internal/ring"
)

// Kind tags which variant of the Message tagged union is populated.
type Kind uint8

const (
	KindLookup Kind = iota
	KindLookupResult
	KindGetPredecessor
	KindPredecessorResponse
	KindGetSuccessor
	KindSuccessorResponse
	KindNotify
	KindLeavePredecessor
	KindLeaveSuccessor
	KindPing
	KindPong
)

func (k Kind) String() string {
	switch k {
	case KindLookup:
		return "Lookup"
	case KindLookupResult:
		return "LookupResult"
	case KindGetPredecessor:
		return "GetPredecessor"
	case KindPredecessorResponse:
		return "PredecessorResponse"
	case KindGetSuccessor:
		return "GetSuccessor"
	case KindSuccessorResponse:
		return "SuccessorResponse"
	case KindNotify:
		return "Notify"
	case KindLeavePredecessor:
		return "LeavePredecessor"
	case KindLeaveSuccessor:
		return "LeaveSuccessor"
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// Neighbor identifies a peer: its ring id and the two addresses it
// listens on. It is an immutable value type once constructed.
type Neighbor struct {
	ID       ring.ID `cbor:"id"`
	RPCAddr  string  `cbor:"rpc_addr"`
	HTTPAddr string  `cbor:"http_addr"`
}

// NewNeighbor constructs a Neighbor, deriving its id from rpcAddr.
func NewNeighbor(rpcAddr, httpAddr string) (Neighbor, error) {
	id, err := ring.HashAddr(rpcAddr)
	if err != nil {
		return Neighbor{}, err
	}
	return Neighbor{ID: id, RPCAddr: rpcAddr, HTTPAddr: httpAddr}, nil
}

// Message is the wire envelope for every control-plane RPC. Only the
// fields relevant to Kind are populated; CBOR's self-describing map
// encoding makes the unused fields cheap to omit.
type Message struct {
	Kind     Kind      `cbor:"kind"`
	ID       ring.ID   `cbor:"id,omitempty"`
	Neighbor *Neighbor `cbor:"neighbor,omitempty"`
}

// Lookup builds a Lookup(id) request message.
func Lookup(id ring.ID) Message { return Message{Kind: KindLookup, ID: id} }

// LookupResult builds a LookupResult(Neighbor) reply message.
func LookupResult(n Neighbor) Message { return Message{Kind: KindLookupResult, Neighbor: &n} }

// GetPredecessor builds a GetPredecessor request message.
func GetPredecessor() Message { return Message{Kind: KindGetPredecessor} }

// PredecessorResponse builds a PredecessorResponse(Optional[Neighbor]) reply.
func PredecessorResponse(n *Neighbor) Message {
	return Message{Kind: KindPredecessorResponse, Neighbor: n}
}

// GetSuccessor builds a GetSuccessor request message.
func GetSuccessor() Message { return Message{Kind: KindGetSuccessor} }

// SuccessorResponse builds a SuccessorResponse(Neighbor) reply.
func SuccessorResponse(n Neighbor) Message { return Message{Kind: KindSuccessorResponse, Neighbor: &n} }

// Notify builds a Notify(Neighbor) one-way message.
func Notify(n Neighbor) Message { return Message{Kind: KindNotify, Neighbor: &n} }

// LeavePredecessor builds a LeavePredecessor(Optional[Neighbor]) one-way message.
func LeavePredecessor(n *Neighbor) Message {
	return Message{Kind: KindLeavePredecessor, Neighbor: n}
}

// LeaveSuccessor builds a LeaveSuccessor(Neighbor) one-way message.
func LeaveSuccessor(n Neighbor) Message { return Message{Kind: KindLeaveSuccessor, Neighbor: &n} }

// Ping builds a Ping request message.
func Ping() Message { return Message{Kind: KindPing} }

// Pong builds a Pong reply message.
func Pong() Message { return Message{Kind: KindPong} }
