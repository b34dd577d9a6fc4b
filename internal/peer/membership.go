package peer

import (
	"github.com/retorded/chordkv/internal/ring"
	"github.com/retorded/chordkv/internal/rpc"
)

// Join contacts an existing ring member at entryRPCAddr and splices
// this peer in ahead of its new successor. A peer joining itself (the
// first node of a ring) is a no-op: it is already its own successor.
func (p *Peer) Join(entryRPCAddr string) error {
	if entryRPCAddr == p.self.RPCAddr {
		return nil
	}

	p.SetPredecessor(nil)

	entryID, err := ring.HashAddr(entryRPCAddr)
	if err != nil {
		return err
	}
	entry := rpc.Neighbor{ID: entryID, RPCAddr: entryRPCAddr}

	succ, err := p.neighborProxy(entry).FindSuccessor(p.self.ID)
	if err != nil {
		return err
	}
	p.SetSuccessor(succ)

	if succ.ID == p.self.ID {
		return nil
	}

	second, err := p.neighborProxy(succ).GetSuccessor()
	if err == nil && second.ID != p.self.ID && second.ID != succ.ID {
		p.SetSecondSuccessor(&second)
	} else {
		p.SetSecondSuccessor(nil)
	}
	return nil
}

// Leave tells this peer's predecessor and successor to splice around
// it, then resets local state to a fresh singleton. The two
// notifications are fired without waiting for a reply: a peer leaving
// while its neighbor is also leaving must not deadlock waiting on each
// other's RPC.
func (p *Peer) Leave() {
	pred := p.Predecessor()
	succ := p.Successor()

	if pred != nil && pred.ID != p.self.ID {
		go func(pred rpc.Neighbor, succ rpc.Neighbor) {
			_ = p.neighborProxy(pred).LeaveSuccessor(succ)
		}(*pred, succ)
	}
	if succ.ID != p.self.ID {
		go func(succ rpc.Neighbor, pred *rpc.Neighbor) {
			_ = p.neighborProxy(succ).LeavePredecessor(pred)
		}(succ, pred)
	}

	p.SetPredecessor(nil)
	p.SetSuccessor(p.self)
	p.SetSecondSuccessor(nil)
}
