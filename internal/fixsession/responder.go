package fixsession

// Responder is the transport collaborator: send raw bytes, disconnect,
// and report the remote address. Attach/detach is guarded by the
// session's responderMu so send/disconnect race cleanly across I/O,
// timer and application threads.
type Responder interface {
	Send(raw []byte) bool
	Disconnect()
	RemoteAddress() string
}
