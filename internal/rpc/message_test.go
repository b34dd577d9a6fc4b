package rpc

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	n := Neighbor{ID: 42, RPCAddr: "127.0.0.1:9001", HTTPAddr: "127.0.0.1:8001"}

	cases := []Message{
		Lookup(7),
		LookupResult(n),
		GetPredecessor(),
		PredecessorResponse(&n),
		PredecessorResponse(nil),
		GetSuccessor(),
		SuccessorResponse(n),
		Notify(n),
		LeavePredecessor(&n),
		LeavePredecessor(nil),
		LeaveSuccessor(n),
		Ping(),
		Pong(),
	}

	for _, msg := range cases {
		buf, err := cbor.Marshal(msg)
		require.NoError(t, err)

		var got Message
		require.NoError(t, cbor.Unmarshal(buf, &got))

		require.Equal(t, msg.Kind, got.Kind)
		require.Equal(t, msg.ID, got.ID)
		if msg.Neighbor == nil {
			require.Nil(t, got.Neighbor)
		} else {
			require.NotNil(t, got.Neighbor)
			require.Equal(t, *msg.Neighbor, *got.Neighbor)
		}
	}
}
