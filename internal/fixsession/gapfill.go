package fixsession

import (
	"context"
	"errors"
)

// openRangeSentinel returns the EndSeqNo sentinel meaning "everything
// up to my current nextSenderSeq", which differs by FIX version unless
// ClosedResendInterval forces the literal closed bound (spec §4.2).
func (s *Session) openRangeSentinel() int {
	if s.Settings.ClosedResendInterval {
		return -1 // no sentinel; caller must supply the literal end
	}
	if beginStringAtLeast(s.ID.BeginString, "FIX.4.2") {
		return 0
	}
	return 999999
}

// beginStringAtLeast does a lexical FIX.x.y comparison sufficient for
// the 4.0-4.4 / FIXT.1.1 family; any non-numbered/unknown string is
// treated as >= the target (FIXT and beyond).
func beginStringAtLeast(got, want string) bool {
	if len(got) < 8 || got[:4] != "FIX." {
		return true
	}
	return got >= want
}

// answerResendRequest implements spec §4.2 "on incoming ResendRequest".
func (s *Session) answerResendRequest(ctx context.Context, msg *Message) error {
	beginSeq := msg.Header.BeginSeqNo
	endSeq := msg.Header.EndSeqNo

	nextSender, err := s.Store.GetNextSenderMsgSeqNum(ctx)
	if err != nil {
		return err
	}

	sentinel := s.openRangeSentinel()
	if (sentinel == 0 && endSeq == 0) || (sentinel == 999999 && endSeq == 999999) || endSeq >= nextSender {
		endSeq = nextSender - 1
	}

	if !s.Settings.PersistMessages {
		if err := s.sendGapFill(ctx, beginSeq, min(endSeq+1, nextSender)); err != nil {
			return err
		}
		return s.advancePastResendRequest(ctx, msg)
	}

	stored, err := s.Store.Get(ctx, beginSeq, endSeq)
	if err != nil {
		if s.Settings.ForceResendWhenCorruptedStore {
			s.Log.Warn("store read failed, synthesizing heartbeats", "session", s.ID.String(), "error", err)
			for seq := beginSeq; seq <= endSeq; seq++ {
				hb := NewMessage(MsgTypeHeartbeat)
				s.sendWithSeq(ctx, hb, seq)
			}
			return s.advancePastResendRequest(ctx, msg)
		}
		return err
	}

	current := beginSeq
	gapStart := 0

	flushGap := func(upTo int) error {
		if gapStart == 0 {
			return nil
		}
		if err := s.sendGapFill(ctx, gapStart, upTo); err != nil {
			return err
		}
		gapStart = 0
		return nil
	}

	for _, sm := range stored {
		if sm.Seq > current && gapStart == 0 {
			gapStart = current
		}

		parsed, err := s.Codec.Decode(sm.Raw)
		if err != nil {
			if gapStart == 0 {
				gapStart = sm.Seq
			}
			current = sm.Seq + 1
			continue
		}

		if parsed.IsAdmin() {
			if gapStart == 0 {
				gapStart = sm.Seq
			}
			current = sm.Seq + 1
			continue
		}

		clone := parsed.Clone()
		if err := s.App.ToApp(ctx, clone, s.ID); err != nil {
			if errors.Is(err, ErrDoNotSend) {
				if gapStart == 0 {
					gapStart = sm.Seq
				}
				current = sm.Seq + 1
				continue
			}
			return err
		}

		if err := flushGap(sm.Seq); err != nil {
			return err
		}

		clone.Header.PossDupFlag = true
		clone.Header.OrigSendingTime = clone.Header.SendingTime
		s.sendWithSeq(ctx, clone, sm.Seq)
		current = sm.Seq + 1
	}

	if err := flushGap(current); err != nil {
		return err
	}

	if endSeq >= current {
		if err := s.sendGapFill(ctx, current, min(endSeq+1, nextSender)); err != nil {
			return err
		}
	}

	return s.advancePastResendRequest(ctx, msg)
}

// advancePastResendRequest implements "Advance nextTargetSeq past the
// ResendRequest itself unless the request's own seq is out of range"
// (spec §4.2).
func (s *Session) advancePastResendRequest(ctx context.Context, msg *Message) error {
	nextTarget, err := s.Store.GetNextTargetMsgSeqNum(ctx)
	if err != nil {
		return err
	}
	if msg.Header.MsgSeqNum == nextTarget {
		return s.Store.IncrNextTargetMsgSeqNum(ctx)
	}
	return nil
}

// sendGapFill emits an administrative SequenceReset-GapFill (spec §4.2):
// it reuses existing sender sequence numbers and never advances
// nextSenderSeq.
func (s *Session) sendGapFill(ctx context.Context, beginSeq, endSeq int) error {
	reset := NewMessage(MsgTypeSequenceReset)
	reset.Header.PossDupFlag = true
	reset.Header.GapFillFlag = true
	reset.Header.NewSeqNo = endSeq
	s.sendWithSeq(ctx, reset, beginSeq)
	return nil
}

// doTargetTooHigh implements spec §4.2 "on target-too-high".
func (s *Session) doTargetTooHigh(ctx context.Context, msg *Message) error {
	s.state.enqueue(msg)

	if s.Settings.DisconnectOnError && !msg.IsAdmin() && s.IsLoggedOn() {
		s.Disconnect("disconnectOnError: target too high")
		return nil
	}
	if s.Settings.ResetOnError && !msg.IsAdmin() && s.IsLoggedOn() {
		return s.Reset(ctx)
	}

	nextTarget, err := s.Store.GetNextTargetMsgSeqNum(ctx)
	if err != nil {
		return err
	}

	rr := s.state.getResendRange()
	if rr.Pending() && msg.Header.MsgSeqNum >= rr.Begin && !s.Settings.SendRedundantResendRequests {
		return nil
	}

	begin := nextTarget
	realEnd := msg.Header.MsgSeqNum - 1 // last seq we know is actually missing

	var end, chunkEnd int
	switch {
	case s.Settings.ResendRequestChunkSize > 0:
		end = begin + s.Settings.ResendRequestChunkSize - 1
		if end > realEnd {
			end = realEnd
		}
		chunkEnd = end
	case s.Settings.ClosedResendInterval:
		end = realEnd
	default:
		end = s.openRangeSentinel()
		if end == -1 {
			end = realEnd
		}
	}

	if err := s.sendResendRequest(ctx, begin, end); err != nil {
		return err
	}

	s.state.setResendRange(ResendRange{Begin: begin, End: realEnd, ChunkEnd: chunkEnd})
	return nil
}

// sendResendRequest emits an outbound ResendRequest(beginSeq, endSeq).
func (s *Session) sendResendRequest(ctx context.Context, beginSeq, endSeq int) error {
	req := NewMessage(MsgTypeResendRequest)
	req.Header.BeginSeqNo = beginSeq
	req.Header.EndSeqNo = endSeq
	s.sendRaw(ctx, req, 0)
	return nil
}
