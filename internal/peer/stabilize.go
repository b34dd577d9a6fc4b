package peer

import (
	"go.uber.org/zap"

	"github.com/retorded/chordkv/internal/ring"
	"github.com/retorded/chordkv/internal/rpc"
)

// Stabilize asks the successor for its predecessor, adopts it as the
// new successor if it falls strictly between this peer and the current
// successor, then notifies whoever the successor ends up being. A dead
// successor is replaced by the second successor before giving up.
func (p *Peer) Stabilize() error {
	if p.crashed.Load() {
		return nil
	}

	succ := p.Successor()
	var x *rpc.Neighbor

	if succ.ID == p.self.ID {
		x = p.Predecessor()
	} else {
		pred, err := p.neighborProxy(succ).GetPredecessor()
		if err != nil {
			if !p.failoverSuccessor() {
				return &rpc.AllSuccessorsDeadError{SelfAddr: p.self.RPCAddr}
			}
			succ = p.Successor()
			if succ.ID == p.self.ID {
				x = p.Predecessor()
			} else {
				pred, err = p.neighborProxy(succ).GetPredecessor()
				if err != nil {
					return &rpc.AllSuccessorsDeadError{SelfAddr: p.self.RPCAddr}
				}
				x = pred
			}
		} else {
			x = pred
		}
	}

	if x != nil && x.ID != succ.ID && ring.Between(x.ID, p.self.ID, succ.ID) {
		p.SetSuccessor(*x)
		succ = *x
		if second, err := p.neighborProxy(succ).GetSuccessor(); err == nil {
			p.SetSecondSuccessor(&second)
		}
	}

	succ = p.Successor()
	if succ.ID == p.self.ID {
		return nil
	}
	if err := p.neighborProxy(succ).Notify(p.self); err != nil {
		p.log.Debug("stabilize: notify failed", zap.String("successor", succ.RPCAddr), zap.Error(err))
	}
	return nil
}

// CheckSuccessors probes the successor's own successor, refreshing the
// second-successor cache on success and promoting it in place of a
// successor that no longer answers.
func (p *Peer) CheckSuccessors() {
	if p.crashed.Load() {
		return
	}

	succ := p.Successor()
	if succ.ID == p.self.ID {
		return
	}

	s2, err := p.neighborProxy(succ).GetSuccessor()
	if err != nil {
		p.log.Debug("check successors: successor unreachable", zap.String("successor", succ.RPCAddr), zap.Error(err))
		p.failoverSuccessor()
		return
	}

	if s2.ID == p.self.ID || s2.ID == succ.ID {
		p.SetSecondSuccessor(nil)
		return
	}
	cur := p.SecondSuccessor()
	if cur == nil || cur.ID != s2.ID {
		p.SetSecondSuccessor(&s2)
	}
}
