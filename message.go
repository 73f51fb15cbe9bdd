package kafka

import (
	"fmt"
	"hash/crc32"
	"time"
)

// CompressionCodec identifies the compression applied to a message's value,
// encoded in bits 0-2 of the message's attrs byte (§4.1).
type CompressionCodec int8

const (
	CompressionNone   CompressionCodec = 0
	CompressionGzip   CompressionCodec = 1
	CompressionSnappy CompressionCodec = 2
	CompressionLZ4    CompressionCodec = 3
)

func (c CompressionCodec) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", int8(c))
	}
}

const compressionCodecMask int8 = 0x07
const timestampTypeMask int8 = 0x08

// TimestampType distinguishes a message's timestamp source, encoded in bit 3
// of the attrs byte for v1 messages.
type TimestampType int8

const (
	CreateTime    TimestampType = 0
	LogAppendTime TimestampType = 1
)

// Message is one entry of a MessageSet (§3). Version 0 carries no
// timestamp on the wire; version 1 requires one.
type Message struct {
	Version       int8 // 0 or 1, selects the wire shape
	Codec         CompressionCodec
	TimestampType TimestampType
	Timestamp     time.Time
	Key           []byte
	Value         []byte

	compressedCache []byte // lazily populated on encode, cleared by Set()
}

func (m *Message) encode(pe packetEncoder) error {
	pe.push(&crc32Field{})

	pe.putInt8(m.Version)

	attrs := int8(m.Codec) & compressionCodecMask
	if m.Version >= 1 && m.TimestampType == LogAppendTime {
		attrs |= timestampTypeMask
	}
	pe.putInt8(attrs)

	if m.Version >= 1 {
		ts := int64(0)
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.UnixNano() / int64(time.Millisecond)
		}
		pe.putInt64(ts)
	}

	if err := pe.putBytes(m.Key); err != nil {
		return err
	}

	payload := m.Value
	if m.Codec != CompressionNone {
		compressed, err := compress(m.Codec, m.Value)
		if err != nil {
			return err
		}
		payload = compressed
	}
	if err := pe.putBytes(payload); err != nil {
		return err
	}

	return pe.pop()
}

func (m *Message) decode(pd packetDecoder, version int16) (err error) {
	if err = pd.push(&crc32Field{}); err != nil {
		return err
	}

	if m.Version, err = pd.getInt8(); err != nil {
		return err
	}

	attrs, err := pd.getInt8()
	if err != nil {
		return err
	}
	m.Codec = CompressionCodec(attrs & compressionCodecMask)
	if attrs&timestampTypeMask != 0 {
		m.TimestampType = LogAppendTime
	} else {
		m.TimestampType = CreateTime
	}

	if m.Version >= 1 {
		ts, err := pd.getInt64()
		if err != nil {
			return err
		}
		if ts != 0 {
			m.Timestamp = time.Unix(0, ts*int64(time.Millisecond))
		}
	}

	if m.Key, err = pd.getBytes(); err != nil {
		return err
	}

	raw, err := pd.getBytes()
	if err != nil {
		return err
	}
	if m.Codec == CompressionNone {
		m.Value = raw
	} else {
		m.Value, err = decompress(m.Codec, raw)
		if err != nil {
			return err
		}
	}

	return pd.pop()
}

// crc32Field is a pushEncoder/pushDecoder that reserves 4 bytes for a CRC-32
// (IEEE) over everything written or read after it, implementing §4.1's "crc
// is over all bytes following it".
type crc32Field struct {
	startOffset int
}

func (c *crc32Field) reserveLength() int {
	return 4
}

func (c *crc32Field) run(curOffset int, buf []byte) error {
	crc := crc32.ChecksumIEEE(buf[c.startOffset+4 : curOffset])
	chunk := buf[c.startOffset : c.startOffset+4]
	chunk[0] = byte(crc >> 24)
	chunk[1] = byte(crc >> 16)
	chunk[2] = byte(crc >> 8)
	chunk[3] = byte(crc)
	return nil
}

func (c *crc32Field) saveOffset(in int) {
	c.startOffset = in
}

func (c *crc32Field) check(curOffset int, buf []byte) error {
	crc := crc32.ChecksumIEEE(buf[c.startOffset+4 : curOffset])
	expected := uint32(buf[c.startOffset])<<24 | uint32(buf[c.startOffset+1])<<16 |
		uint32(buf[c.startOffset+2])<<8 | uint32(buf[c.startOffset+3])
	if crc != expected {
		return errMessageCRCMismatch
	}
	return nil
}

var errMessageCRCMismatch = fmt.Errorf("kafka: message CRC mismatch")
