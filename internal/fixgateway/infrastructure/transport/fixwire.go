// Package transport provides the wire codec and TCP responder that plug
// into internal/fixsession's Codec and Responder seams. The tag=value
// SOH grammar here is intentionally minimal: it covers exactly the
// fields fixsession.Header addresses (spec §6), nothing data-dictionary
// driven, per the package's explicit scope boundary.
package transport

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wyfcoding/fixsession/internal/fixsession"
)

const soh = byte(1)

// bodyLengthTag is a wire-grammar-only concern, not part of
// fixsession.Header (spec §6 lists only the addressable fields).
const bodyLengthTag = 9

const timestampLayout = "20060102-15:04:05.000"

// FixCodec implements fixsession.Codec with a dense SOH tag=value
// encoding. It never validates against a data dictionary: unknown body
// tags round-trip opaquely through Message.Body.
type FixCodec struct{}

func NewFixCodec() FixCodec { return FixCodec{} }

// Encode renders msg as a SOH-delimited tag=value stream, computing
// BodyLength (9) and the modulo-256 CheckSum (10) trailer per the FIX
// wire grammar.
func (FixCodec) Encode(msg *fixsession.Message) ([]byte, error) {
	h := msg.Header

	var body strings.Builder
	writeField(&body, fixsession.TagMsgType, h.MsgType)
	writeField(&body, fixsession.TagSenderCompID, h.SenderCompID)
	writeField(&body, fixsession.TagTargetCompID, h.TargetCompID)
	writeOptField(&body, fixsession.TagSenderSubID, h.SenderSubID)
	writeOptField(&body, fixsession.TagSenderLocationID, h.SenderLocationID)
	writeOptField(&body, fixsession.TagTargetSubID, h.TargetSubID)
	writeOptField(&body, fixsession.TagTargetLocationID, h.TargetLocationID)
	writeField(&body, fixsession.TagMsgSeqNum, strconv.Itoa(h.MsgSeqNum))
	if h.PossDupFlag {
		writeField(&body, fixsession.TagPossDupFlag, "Y")
	}
	writeField(&body, fixsession.TagSendingTime, h.SendingTime.UTC().Format(timestampLayout))
	if !h.OrigSendingTime.IsZero() {
		writeField(&body, fixsession.TagOrigSendingTime, h.OrigSendingTime.UTC().Format(timestampLayout))
	}
	writeOptField(&body, fixsession.TagApplVerID, h.ApplVerID)

	switch h.MsgType {
	case fixsession.MsgTypeLogon:
		writeField(&body, fixsession.TagEncryptMethod, strconv.Itoa(h.EncryptMethod))
		writeField(&body, fixsession.TagHeartBtInt, strconv.Itoa(h.HeartBtInt))
		if h.ResetSeqNumFlag {
			writeField(&body, fixsession.TagResetSeqNumFlag, "Y")
		}
		writeOptField(&body, fixsession.TagNextExpectedMsgSeqNum, nonZero(h.NextExpectedMsgSeqNum))
		writeOptField(&body, fixsession.TagDefaultApplVerID, h.DefaultApplVerID)
	case fixsession.MsgTypeLogout:
		writeOptField(&body, fixsession.TagText, h.Text)
	case fixsession.MsgTypeTestRequest:
		writeField(&body, fixsession.TagTestReqID, h.TestReqID)
	case fixsession.MsgTypeResendRequest:
		writeField(&body, fixsession.TagBeginSeqNo, strconv.Itoa(h.BeginSeqNo))
		writeField(&body, fixsession.TagEndSeqNo, strconv.Itoa(h.EndSeqNo))
	case fixsession.MsgTypeSequenceReset:
		if h.GapFillFlag {
			writeField(&body, fixsession.TagGapFillFlag, "Y")
		}
		writeField(&body, fixsession.TagNewSeqNo, strconv.Itoa(h.NewSeqNo))
	case fixsession.MsgTypeReject:
		writeOptField(&body, fixsession.TagRefTagID, nonZero(h.RefTagID))
		writeOptField(&body, fixsession.TagRefMsgType, h.RefMsgType)
		writeField(&body, fixsession.TagSessionRejectReason, strconv.Itoa(h.SessionRejectReason))
		writeOptField(&body, fixsession.TagText, h.Text)
	case fixsession.MsgTypeBusinessReject:
		writeOptField(&body, fixsession.TagRefMsgType, h.RefMsgType)
		writeField(&body, fixsession.TagBusinessRejectReason, strconv.Itoa(h.BusinessRejectReason))
		writeOptField(&body, fixsession.TagText, h.Text)
	}

	if h.HasLastMsgSeqNumProc {
		writeField(&body, fixsession.TagLastMsgSeqNumProcessed, strconv.Itoa(h.LastMsgSeqNumProcessed))
	}

	tags := make([]int, 0, len(msg.Body))
	for tag := range msg.Body {
		tags = append(tags, tag)
	}
	sort.Ints(tags)
	for _, tag := range tags {
		writeField(&body, tag, msg.Body[tag])
	}

	bodyStr := body.String()

	var head strings.Builder
	writeField(&head, fixsession.TagBeginString, h.BeginString)
	writeField(&head, bodyLengthTag, strconv.Itoa(len(bodyStr)))

	payload := head.String() + bodyStr
	checksum := computeChecksum([]byte(payload))

	var out strings.Builder
	out.WriteString(payload)
	writeField(&out, fixsession.TagCheckSum, fmt.Sprintf("%03d", checksum))

	return []byte(out.String()), nil
}

func computeChecksum(data []byte) int {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return sum % 256
}

func writeField(b *strings.Builder, tag int, value string) {
	b.WriteString(strconv.Itoa(tag))
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte(soh)
}

func writeOptField(b *strings.Builder, tag int, value string) {
	if value == "" {
		return
	}
	writeField(b, tag, value)
}

func nonZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Decode parses a SOH tag=value stream back into a Message, validating
// the checksum and distributing recognized tags onto Header while
// leaving everything else in Body.
func (FixCodec) Decode(raw []byte) (*fixsession.Message, error) {
	fields, checksumOffset, err := splitFields(raw)
	if err != nil {
		return nil, err
	}

	msg := fixsession.NewMessage("")

	for _, f := range fields {
		switch f.tag {
		case fixsession.TagBeginString:
			msg.Header.BeginString = f.value
		case bodyLengthTag:
			// wire-grammar framing only, not addressed by Header
		case fixsession.TagCheckSum:
			want := computeChecksum(raw[:checksumOffset])
			got, convErr := strconv.Atoi(f.value)
			if convErr != nil || got != want {
				return nil, &fixsession.InvalidMessageError{Text: fmt.Sprintf("checksum mismatch: got %s want %03d", f.value, want)}
			}
		case fixsession.TagMsgType:
			msg.Header.MsgType = f.value
		case fixsession.TagMsgSeqNum:
			msg.Header.MsgSeqNum, err = strconv.Atoi(f.value)
			if err != nil {
				return nil, &fixsession.IncorrectDataFormatError{Tag: f.tag, Text: err.Error()}
			}
		case fixsession.TagSenderCompID:
			msg.Header.SenderCompID = f.value
		case fixsession.TagTargetCompID:
			msg.Header.TargetCompID = f.value
		case fixsession.TagSenderSubID:
			msg.Header.SenderSubID = f.value
		case fixsession.TagSenderLocationID:
			msg.Header.SenderLocationID = f.value
		case fixsession.TagTargetSubID:
			msg.Header.TargetSubID = f.value
		case fixsession.TagTargetLocationID:
			msg.Header.TargetLocationID = f.value
		case fixsession.TagSendingTime:
			msg.Header.SendingTime, err = parseTimestamp(f.value)
			if err != nil {
				return nil, &fixsession.IncorrectDataFormatError{Tag: f.tag, Text: err.Error()}
			}
		case fixsession.TagOrigSendingTime:
			msg.Header.OrigSendingTime, err = parseTimestamp(f.value)
			if err != nil {
				return nil, &fixsession.IncorrectDataFormatError{Tag: f.tag, Text: err.Error()}
			}
		case fixsession.TagPossDupFlag:
			msg.Header.PossDupFlag = f.value == "Y"
		case fixsession.TagGapFillFlag:
			msg.Header.GapFillFlag = f.value == "Y"
		case fixsession.TagResetSeqNumFlag:
			msg.Header.ResetSeqNumFlag = f.value == "Y"
		case fixsession.TagNewSeqNo:
			msg.Header.NewSeqNo, err = strconv.Atoi(f.value)
			if err != nil {
				return nil, &fixsession.IncorrectTagValueError{Tag: f.tag, Text: err.Error()}
			}
		case fixsession.TagBeginSeqNo:
			msg.Header.BeginSeqNo, err = strconv.Atoi(f.value)
			if err != nil {
				return nil, &fixsession.IncorrectTagValueError{Tag: f.tag, Text: err.Error()}
			}
		case fixsession.TagEndSeqNo:
			msg.Header.EndSeqNo, err = strconv.Atoi(f.value)
			if err != nil {
				return nil, &fixsession.IncorrectTagValueError{Tag: f.tag, Text: err.Error()}
			}
		case fixsession.TagHeartBtInt:
			msg.Header.HeartBtInt, err = strconv.Atoi(f.value)
			if err != nil {
				return nil, &fixsession.IncorrectTagValueError{Tag: f.tag, Text: err.Error()}
			}
		case fixsession.TagTestReqID:
			msg.Header.TestReqID = f.value
		case fixsession.TagEncryptMethod:
			msg.Header.EncryptMethod, _ = strconv.Atoi(f.value)
		case fixsession.TagText:
			msg.Header.Text = f.value
		case fixsession.TagRefTagID:
			msg.Header.RefTagID, _ = strconv.Atoi(f.value)
		case fixsession.TagRefMsgType:
			msg.Header.RefMsgType = f.value
		case fixsession.TagSessionRejectReason:
			msg.Header.SessionRejectReason, _ = strconv.Atoi(f.value)
		case fixsession.TagBusinessRejectReason:
			msg.Header.BusinessRejectReason, _ = strconv.Atoi(f.value)
		case fixsession.TagNextExpectedMsgSeqNum:
			msg.Header.NextExpectedMsgSeqNum, _ = strconv.Atoi(f.value)
		case fixsession.TagLastMsgSeqNumProcessed:
			msg.Header.LastMsgSeqNumProcessed, _ = strconv.Atoi(f.value)
			msg.Header.HasLastMsgSeqNumProc = true
		case fixsession.TagApplVerID:
			msg.Header.ApplVerID = f.value
		case fixsession.TagDefaultApplVerID:
			msg.Header.DefaultApplVerID = f.value
		default:
			msg.Body[f.tag] = f.value
		}
	}

	return msg, nil
}

type wireField struct {
	tag   int
	value string
}

// splitFields walks raw one SOH-delimited field at a time, returning the
// parsed fields plus the byte offset at which the trailing CheckSum (10)
// field begins — the span Decode checksums against.
func splitFields(raw []byte) ([]wireField, int, error) {
	var fields []wireField
	checksumOffset := -1

	pos := 0
	for pos < len(raw) {
		i := bytes.IndexByte(raw[pos:], soh)
		var tok []byte
		if i < 0 {
			tok = raw[pos:]
			pos = len(raw)
		} else {
			tok = raw[pos : pos+i]
			pos += i + 1
		}
		if len(tok) == 0 {
			continue
		}
		eq := bytes.IndexByte(tok, '=')
		if eq < 0 {
			return nil, 0, &fixsession.InvalidMessageError{Text: fmt.Sprintf("malformed field %q", tok)}
		}
		tag, err := strconv.Atoi(string(tok[:eq]))
		if err != nil {
			return nil, 0, &fixsession.InvalidMessageError{Text: fmt.Sprintf("non-numeric tag %q", tok[:eq])}
		}
		if tag == fixsession.TagCheckSum && checksumOffset < 0 {
			checksumOffset = pos - len(tok) - 1
		}
		fields = append(fields, wireField{tag: tag, value: string(tok[eq+1:])})
	}
	if checksumOffset < 0 {
		return nil, 0, &fixsession.InvalidMessageError{Text: "missing checksum field"}
	}
	return fields, checksumOffset, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(timestampLayout, value)
}

var _ fixsession.Codec = FixCodec{}
