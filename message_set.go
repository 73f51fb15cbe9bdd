package kafka

// MessageSetItem is one offset-tagged entry of a MessageSet (§3). Outer
// items may carry a compressed inner set instead of a single message's
// key/value; decode() always yields the flattened, decompressed form.
type MessageSetItem struct {
	Offset  int64
	Message *Message
}

// MessageSet is an ordered sequence of messages sharing framing and
// optional outer compression (§3, §4.1). Inner (compressed) sets use
// relative offsets 0..n-1; the outer offset equals the last inner offset.
type MessageSet struct {
	Items []MessageSetItem
}

func (ms *MessageSet) encode(pe packetEncoder) error {
	for _, item := range ms.Items {
		pe.putInt64(item.Offset)
		pe.push(&messageSizeField{})
		if err := item.Message.encode(pe); err != nil {
			return err
		}
		if err := pe.pop(); err != nil {
			return err
		}
	}
	return nil
}

// decode reads messages until the frame is exhausted. A trailing partial
// message (insufficient bytes for the next offset+size+message) is treated
// as end-of-set rather than an error, matching the broker's allowance for
// a truncated tail record at the end of a fetch response (§4.1, §8
// "decoding MUST... truncated tail bytes are treated as end-of-set").
// A message whose CRC fails to verify is skipped, not fatal (§4.1); it is
// dropped from Items and decoding continues with the next message.
func (ms *MessageSet) decode(pd packetDecoder, version int16) error {
	return ms.decodeMessages(pd)
}

func (ms *MessageSet) decodeMessages(pd packetDecoder) error {
	rd, ok := pd.(*realDecoder)
	if !ok {
		return PacketDecodingError{"message set decode requires a realDecoder"}
	}
	for rd.remaining() > 0 {
		if rd.remaining() < 8+4 {
			// not enough left for offset+size; treat as end-of-set.
			break
		}
		offset, err := rd.getInt64()
		if err != nil {
			return err
		}
		size, err := rd.getInt32()
		if err != nil {
			return err
		}
		if int(size) < 0 || rd.remaining() < int(size) {
			// broker returned a truncated tail message; stop cleanly.
			break
		}
		msgBuf, err := rd.getRawBytes(int(size))
		if err != nil {
			return err
		}

		inner := &realDecoder{raw: msgBuf}
		msg := &Message{}
		if derr := msg.decode(inner, 0); derr != nil {
			if derr == errMessageCRCMismatch {
				if DebugLogger != nil {
					DebugLogger.Printf("kafka: dropping message at offset %d: CRC mismatch", offset)
				}
				continue
			}
			return derr
		}

		if msg.Codec != CompressionNone {
			inners, err := decodeInnerSet(msg.Value, offset)
			if err != nil {
				return err
			}
			ms.Items = append(ms.Items, inners...)
			continue
		}

		ms.Items = append(ms.Items, MessageSetItem{Offset: offset, Message: msg})
	}
	return nil
}

// decodeInnerSet decodes the message set embedded in a compressed message's
// value. Inner offsets are relative (0..n-1); outerOffset is the outer
// message's offset, which equals the last inner relative offset, so the
// absolute offset of inner item i is outerOffset - (lastRelative - i).
func decodeInnerSet(payload []byte, outerOffset int64) ([]MessageSetItem, error) {
	inner := &MessageSet{}
	rd := &realDecoder{raw: payload}
	if err := inner.decodeMessages(rd); err != nil {
		return nil, err
	}
	if len(inner.Items) == 0 {
		return nil, nil
	}
	lastRelative := inner.Items[len(inner.Items)-1].Offset
	out := make([]MessageSetItem, len(inner.Items))
	for i, item := range inner.Items {
		out[i] = MessageSetItem{
			Offset:  outerOffset - (lastRelative - item.Offset),
			Message: item.Message,
		}
	}
	return out, nil
}

type messageSizeField struct {
	startOffset int
}

func (f *messageSizeField) reserveLength() int { return 4 }

func (f *messageSizeField) run(curOffset int, buf []byte) error {
	size := curOffset - (f.startOffset + 4)
	chunk := buf[f.startOffset : f.startOffset+4]
	chunk[0] = byte(size >> 24)
	chunk[1] = byte(size >> 16)
	chunk[2] = byte(size >> 8)
	chunk[3] = byte(size)
	return nil
}

func (f *messageSizeField) saveOffset(in int)                  { f.startOffset = in }
func (f *messageSizeField) check(curOffset int, buf []byte) error { return nil }
