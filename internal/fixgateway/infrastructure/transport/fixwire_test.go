package transport

import (
	"testing"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixsession"
)

func TestFixCodecEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewFixCodec()

	msg := fixsession.NewMessage(fixsession.MsgTypeLogon)
	msg.Header.BeginString = "FIX.4.2"
	msg.Header.SenderCompID = "BUYER"
	msg.Header.TargetCompID = "SELLER"
	msg.Header.MsgSeqNum = 1
	msg.Header.SendingTime = time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	msg.Header.EncryptMethod = 0
	msg.Header.HeartBtInt = 30
	msg.Body[11] = "hello"

	raw, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Header.MsgType != fixsession.MsgTypeLogon {
		t.Errorf("MsgType = %s, want %s", got.Header.MsgType, fixsession.MsgTypeLogon)
	}
	if got.Header.SenderCompID != "BUYER" || got.Header.TargetCompID != "SELLER" {
		t.Errorf("CompIDs = %s/%s, want BUYER/SELLER", got.Header.SenderCompID, got.Header.TargetCompID)
	}
	if got.Header.MsgSeqNum != 1 {
		t.Errorf("MsgSeqNum = %d, want 1", got.Header.MsgSeqNum)
	}
	if got.Header.HeartBtInt != 30 {
		t.Errorf("HeartBtInt = %d, want 30", got.Header.HeartBtInt)
	}
	if got.Body[11] != "hello" {
		t.Errorf("Body[11] = %q, want %q", got.Body[11], "hello")
	}
}

func TestFixCodecDecodeRejectsBadChecksum(t *testing.T) {
	codec := NewFixCodec()

	msg := fixsession.NewMessage(fixsession.MsgTypeHeartbeat)
	msg.Header.BeginString = "FIX.4.2"
	msg.Header.SenderCompID = "BUYER"
	msg.Header.TargetCompID = "SELLER"
	msg.Header.MsgSeqNum = 2
	msg.Header.SendingTime = time.Now()

	raw, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tampered := make([]byte, len(raw))
	copy(tampered, raw)
	idx := len(tampered) - 2 // last digit of the "10=NNN" trailer
	if tampered[idx] >= '0' && tampered[idx] < '9' {
		tampered[idx]++
	} else {
		tampered[idx] = '0'
	}

	if _, err := codec.Decode(tampered); err == nil {
		t.Fatal("Decode accepted a message with a tampered checksum")
	}
}

func TestFixCodecDecodeRejectsMissingChecksum(t *testing.T) {
	codec := NewFixCodec()
	raw := []byte("8=FIX.4.2\x019=5\x0135=0\x01")

	if _, err := codec.Decode(raw); err == nil {
		t.Fatal("Decode accepted a stream with no CheckSum field")
	}
}
