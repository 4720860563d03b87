package transport

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixsession"
)

// TCPResponder implements fixsession.Responder over a raw net.Conn, the
// way a FIX socket acceptor/dialer does: one connection per session,
// writes serialized under a mutex so the engine's concurrent senders
// (application thread, heartbeat ticker, gap-fill replies) never
// interleave partial frames.
type TCPResponder struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
}

func newTCPResponder(conn net.Conn) *TCPResponder {
	return &TCPResponder{conn: conn}
}

func (r *TCPResponder) Send(raw []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	_, err := r.conn.Write(raw)
	return err == nil
}

func (r *TCPResponder) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	_ = r.conn.Close()
}

func (r *TCPResponder) RemoteAddress() string {
	return r.conn.RemoteAddr().String()
}

var _ fixsession.Responder = (*TCPResponder)(nil)

// DisconnectNotifier lets the transport tell the application layer about
// a connection drop that the engine itself never asked for (peer reset,
// network failure) so it can record the event instead of only logging.
type DisconnectNotifier interface {
	NotifyDisconnected(ctx context.Context, sessionID fixsession.SessionID, reason string)
}

// Acceptor is the server-side TCP transport: one listener serving every
// counterparty session already registered in manager. Session identity
// is not known until the first frame arrives (spec §3: a connection
// carries no identity of its own), so each accepted connection is bound
// to a Session lazily, on its first decoded message.
type Acceptor struct {
	manager  *fixsession.SessionManager
	codec    fixsession.Codec
	logger   *slog.Logger
	notifier DisconnectNotifier
}

func NewAcceptor(manager *fixsession.SessionManager, codec fixsession.Codec, logger *slog.Logger, notifier DisconnectNotifier) *Acceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acceptor{manager: manager, codec: codec, logger: logger, notifier: notifier}
}

// Serve accepts connections on ln until ctx is cancelled or Accept
// fails. Each connection is handled on its own goroutine.
func (a *Acceptor) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go a.handleConn(ctx, conn)
	}
}

func (a *Acceptor) handleConn(ctx context.Context, conn net.Conn) {
	responder := newTCPResponder(conn)
	reader := bufio.NewReader(conn)

	var bound *fixsession.Session
	defer func() {
		if bound != nil {
			bound.Disconnect("connection closed")
			if a.notifier != nil {
				a.notifier.NotifyDisconnected(ctx, bound.ID, "connection closed")
			}
		} else {
			_ = conn.Close()
		}
	}()

	for {
		raw, err := readFrame(reader)
		if err != nil {
			return
		}

		msg, err := a.codec.Decode(raw)
		if err != nil {
			a.logger.Warn("decode failed, dropping frame", "remote", responder.RemoteAddress(), "error", err)
			continue
		}

		if bound == nil {
			id := fixsession.SessionID{
				BeginString:      msg.Header.BeginString,
				SenderCompID:     msg.Header.TargetCompID,
				TargetCompID:     msg.Header.SenderCompID,
				SenderSubID:      msg.Header.TargetSubID,
				SenderLocationID: msg.Header.TargetLocationID,
				TargetSubID:      msg.Header.SenderSubID,
				TargetLocationID: msg.Header.SenderLocationID,
			}
			s, ok := a.manager.LookUp(id)
			if !ok {
				a.logger.Warn("rejecting connection for unknown session", "session", id.String())
				return
			}
			s.Connect(responder)
			bound = s
		}

		if err := bound.Receive(ctx, msg); err != nil {
			a.logger.Warn("receive error", "session", bound.ID.String(), "error", err)
		}
	}
}

// Dialer is the client-side (initiator) TCP transport: it opens the
// connection, attaches the responder, sends the initial Logon and then
// reads frames for the lifetime of the connection exactly like Acceptor
// does once a session is bound.
type Dialer struct {
	codec    fixsession.Codec
	logger   *slog.Logger
	notifier DisconnectNotifier
}

func NewDialer(codec fixsession.Codec, logger *slog.Logger, notifier DisconnectNotifier) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{codec: codec, logger: logger, notifier: notifier}
}

// Connect dials addr, attaches the connection to session and sends the
// negotiated Logon. It blocks reading frames until the connection
// drops; callers run it on its own goroutine per session.
func (d *Dialer) Connect(ctx context.Context, addr string, session *fixsession.Session) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	responder := newTCPResponder(conn)
	session.Connect(responder)

	logon := fixsession.NewMessage(fixsession.MsgTypeLogon)
	logon.Header.HeartBtInt = session.Settings.HeartBtInt
	logon.Header.ResetSeqNumFlag = session.Settings.ResetOnLogon
	session.Send(ctx, logon)

	reader := bufio.NewReader(conn)
	defer func() {
		session.Disconnect("connection closed")
		if d.notifier != nil {
			d.notifier.NotifyDisconnected(ctx, session.ID, "connection closed")
		}
	}()

	for {
		raw, err := readFrame(reader)
		if err != nil {
			return nil
		}
		msg, err := d.codec.Decode(raw)
		if err != nil {
			d.logger.Warn("decode failed, dropping frame", "session", session.ID.String(), "error", err)
			continue
		}
		if err := session.Receive(ctx, msg); err != nil {
			d.logger.Warn("receive error", "session", session.ID.String(), "error", err)
		}
	}
}

// readFrame accumulates SOH-delimited fields until it has consumed a
// CheckSum(10) field, the trailer every FIX message ends with — the
// same framing boundary a raw FIX socket reader looks for, since the
// wire grammar carries no outer length prefix of its own.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var msg bytes.Buffer
	checksumPrefix := []byte("10=")
	for {
		field, err := r.ReadBytes(soh)
		if err != nil {
			return nil, err
		}
		msg.Write(field)
		if bytes.HasPrefix(field, checksumPrefix) {
			return msg.Bytes(), nil
		}
	}
}
