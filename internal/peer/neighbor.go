package peer

import (
	"github.com/retorded/chordkv/internal/ring"
	"github.com/retorded/chordkv/internal/rpc"
)

// neighborProxy exposes typed RPCs against a remote Neighbor, building
// the right Message, sending it, and destructuring the expected reply
// variant. Any mismatch is an UnexpectedResponseError; any transport
// failure is an IOError — both bubble straight up to the caller's
// failover logic.
type neighborProxy struct {
	client *rpc.Client
	target rpc.Neighbor
}

func (np neighborProxy) FindSuccessor(id ring.ID) (rpc.Neighbor, error) {
	reply, err := np.client.Send(np.target.RPCAddr, rpc.Lookup(id))
	if err != nil {
		return rpc.Neighbor{}, err
	}
	n, err := expectNeighbor(rpc.KindLookup, rpc.KindLookupResult, reply)
	if err != nil {
		return rpc.Neighbor{}, err
	}
	return *n, nil
}

func (np neighborProxy) GetPredecessor() (*rpc.Neighbor, error) {
	reply, err := np.client.Send(np.target.RPCAddr, rpc.GetPredecessor())
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.Kind != rpc.KindPredecessorResponse {
		return nil, unexpected(rpc.KindGetPredecessor, reply)
	}
	return reply.Neighbor, nil
}

func (np neighborProxy) GetSuccessor() (rpc.Neighbor, error) {
	reply, err := np.client.Send(np.target.RPCAddr, rpc.GetSuccessor())
	if err != nil {
		return rpc.Neighbor{}, err
	}
	n, err := expectNeighbor(rpc.KindGetSuccessor, rpc.KindSuccessorResponse, reply)
	if err != nil {
		return rpc.Neighbor{}, err
	}
	return *n, nil
}

func (np neighborProxy) Notify(me rpc.Neighbor) error {
	_, err := np.client.Send(np.target.RPCAddr, rpc.Notify(me))
	return err
}

func (np neighborProxy) LeavePredecessor(newPred *rpc.Neighbor) error {
	_, err := np.client.Send(np.target.RPCAddr, rpc.LeavePredecessor(newPred))
	return err
}

func (np neighborProxy) LeaveSuccessor(newSucc rpc.Neighbor) error {
	_, err := np.client.Send(np.target.RPCAddr, rpc.LeaveSuccessor(newSucc))
	return err
}

func (np neighborProxy) Ping() error {
	reply, err := np.client.Send(np.target.RPCAddr, rpc.Ping())
	if err != nil {
		return err
	}
	if reply == nil || reply.Kind != rpc.KindPong {
		return unexpected(rpc.KindPing, reply)
	}
	return nil
}

func expectNeighbor(sent, want rpc.Kind, reply *rpc.Message) (*rpc.Neighbor, error) {
	if reply == nil || reply.Kind != want || reply.Neighbor == nil {
		return nil, unexpected(sent, reply)
	}
	return reply.Neighbor, nil
}

func unexpected(sent rpc.Kind, reply *rpc.Message) error {
	if reply == nil {
		return &rpc.UnexpectedResponseError{Sent: sent, GotReply: false}
	}
	return &rpc.UnexpectedResponseError{Sent: sent, Got: reply.Kind, GotReply: true}
}
