package fixsession

import (
	"context"
	"time"
)

// MessageStore is the durable mapping seq->bytes, the sequence counters
// and the session's creation time. It is authoritative: nextSenderSeq and
// nextTargetSeq are read from and written through it, never cached
// independently by SessionState. A store is owned by exactly one
// Session; it is not a concurrency-coordination point across sessions.
type MessageStore interface {
	GetNextSenderMsgSeqNum(ctx context.Context) (int, error)
	SetNextSenderMsgSeqNum(ctx context.Context, seq int) error
	IncrNextSenderMsgSeqNum(ctx context.Context) error

	GetNextTargetMsgSeqNum(ctx context.Context) (int, error)
	SetNextTargetMsgSeqNum(ctx context.Context, seq int) error
	IncrNextTargetMsgSeqNum(ctx context.Context) error

	// Get returns the stored raw bytes for every seq in [begin, end] that
	// is present, in ascending seq order.
	Get(ctx context.Context, begin, end int) ([]StoredMessage, error)
	Set(ctx context.Context, seq int, raw []byte) error

	Refresh(ctx context.Context) error
	Reset(ctx context.Context) error

	CreationTime(ctx context.Context) (time.Time, error)

	Close() error
}

// StoredMessage is one persisted (seq, bytes) record.
type StoredMessage struct {
	Seq int
	Raw []byte
}
