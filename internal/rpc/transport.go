package rpc

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
)

// Handler processes one decoded Message and optionally produces a
// reply. A nil reply with a nil error means "no reply expected" (the
// Notify/LeavePredecessor/LeaveSuccessor one-way variants); a non-nil
// error drops the connection without writing anything, which the
// initiator observes as an IOError or as an UnexpectedResponse with no
// reply, matching the crash-mode "connection refused" contract.
type Handler func(Message) (*Message, error)

// Client sends one-shot control-plane requests: dial, write the
// CBOR-encoded request, half-close the write side, read the reply to
// EOF, close.
type Client struct {
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// DefaultClient uses the spec's "a few seconds" guidance for both
// connect and read deadlines.
func DefaultClient() *Client {
	return &Client{DialTimeout: 3 * time.Second, IOTimeout: 3 * time.Second}
}

// Send performs one request/response round trip against addr. A nil,
// nil return means the peer legally replied with no body (e.g. the
// one-way variants).
func (c *Client) Send(addr string, msg Message) (*Message, error) {
	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, &IOError{Addr: addr, Err: err}
	}
	defer conn.Close()

	deadline := time.Now().Add(c.IOTimeout)
	_ = conn.SetDeadline(deadline)

	buf, err := cbor.Marshal(msg)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if _, err := conn.Write(buf); err != nil {
		return nil, &IOError{Addr: addr, Err: err}
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return nil, &IOError{Addr: addr, Err: err}
		}
	}

	resp, err := io.ReadAll(conn)
	if err != nil {
		return nil, &IOError{Addr: addr, Err: err}
	}
	if len(resp) == 0 {
		return nil, nil
	}

	var reply Message
	if err := cbor.Unmarshal(resp, &reply); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &reply, nil
}

// ListenAndServe accepts connections on addr until ctx is cancelled,
// handling each on its own goroutine. It blocks until the listener
// stops (either from ctx cancellation, returning nil, or a genuine
// accept error).
func ListenAndServe(ctx context.Context, addr string, ioTimeout time.Duration, handler Handler, log *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go serveConn(conn, ioTimeout, handler, log)
	}
}

func serveConn(conn net.Conn, ioTimeout time.Duration, handler Handler, log *zap.Logger) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	data, err := io.ReadAll(conn)
	if err != nil {
		log.Debug("rpc: read failed", zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}

	var msg Message
	if err := cbor.Unmarshal(data, &msg); err != nil {
		log.Warn("rpc: decode error, dropping connection", zap.Error(err))
		return
	}

	reply, err := handler(msg)
	if err != nil {
		log.Debug("rpc: handler error, dropping connection", zap.String("kind", msg.Kind.String()), zap.Error(err))
		return
	}
	if reply == nil {
		return
	}

	buf, err := cbor.Marshal(*reply)
	if err != nil {
		log.Warn("rpc: encode error", zap.Error(err))
		return
	}
	if _, err := conn.Write(buf); err != nil {
		log.Debug("rpc: write failed", zap.Error(err))
	}
}
