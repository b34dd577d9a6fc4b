package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startEchoServer(t *testing.T, handler Handler) (addr string, cancel context.CancelFunc) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, time.Second, handler, zap.NewNop())
		}
	}()

	return ln.Addr().String(), cancel
}

func TestClientSendPingPong(t *testing.T) {
	addr, cancel := startEchoServer(t, func(msg Message) (*Message, error) {
		if msg.Kind != KindPing {
			return nil, &UnexpectedResponseError{Sent: msg.Kind}
		}
		pong := Pong()
		return &pong, nil
	})
	defer cancel()

	client := &Client{DialTimeout: time.Second, IOTimeout: time.Second}
	reply, err := client.Send(addr, Ping())
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, KindPong, reply.Kind)
}

func TestClientSendNoReply(t *testing.T) {
	addr, cancel := startEchoServer(t, func(msg Message) (*Message, error) {
		return nil, nil
	})
	defer cancel()

	client := &Client{DialTimeout: time.Second, IOTimeout: time.Second}
	reply, err := client.Send(addr, Ping())
	require.NoError(t, err)
	require.Nil(t, reply)
}

func TestClientSendDeadPeer(t *testing.T) {
	client := &Client{DialTimeout: 200 * time.Millisecond, IOTimeout: 200 * time.Millisecond}
	_, err := client.Send("127.0.0.1:1", Ping())
	require.Error(t, err)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
}
