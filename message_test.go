package kafka

import (
	"testing"
	"time"
)

var (
	emptyMessage = []byte{
		167, 236, 104, 3, // CRC
		0x00,                   // magic version byte
		0x00,                   // attribute flags
		0xFF, 0xFF, 0xFF, 0xFF, // key
		0xFF, 0xFF, 0xFF, 0xFF, // value
	}

	emptyV1Message = []byte{
		204, 47, 121, 217, // CRC
		0x01,                                           // magic version byte
		0x00,                                           // attribute flags
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // timestamp
		0xFF, 0xFF, 0xFF, 0xFF, // key
		0xFF, 0xFF, 0xFF, 0xFF, // value
	}

	emptyGzipMessage = []byte{
		15, 115, 103, 13, // CRC
		0x00,                   // magic version byte
		0x01,                   // attribute flags
		0xFF, 0xFF, 0xFF, 0xFF, // key
		// value
		0x00, 0x00, 0x00, 0x14,
		0x1f, 0x8b,
		0x08,
		0, 0, 0, 0, 0, 0, 255, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	emptyLZ4Message = []byte{
		132, 219, 238, 101, // CRC
		0x01,                          // version byte
		0x03,                          // attribute flags: lz4
		0, 0, 1, 88, 141, 205, 89, 56, // timestamp
		0xFF, 0xFF, 0xFF, 0xFF, // key
		0x00, 0x00, 0x00, 0x0f, // len
		0x04, 0x22, 0x4D, 0x18, // LZ4 magic number
		100,                  // LZ4 flags: version 01, block independent, content checksum
		112, 185, 0, 0, 0, 0, // LZ4 data
		5, 93, 204, 2, // LZ4 checksum
	}
)

func TestMessageEncoding(t *testing.T) {
	message := Message{}
	testEncodable(t, "empty", &message, emptyMessage)

	message.Value = []byte{}
	message.Codec = CompressionGzip
	testEncodable(t, "empty gzip", &message, emptyGzipMessage)

	message.Value = []byte{}
	message.Codec = CompressionLZ4
	message.Timestamp = time.Unix(1479847795, 0)
	message.Version = 1
	testEncodable(t, "empty lz4", &message, emptyLZ4Message)
}

func TestMessageDecoding(t *testing.T) {
	message := Message{}
	testDecodable(t, "empty", &message, emptyMessage)
	if message.Codec != CompressionNone {
		t.Error("decoding produced a compression codec where there was none")
	}
	if message.Key != nil {
		t.Error("decoding produced a key where there was none")
	}
	if message.Value != nil {
		t.Error("decoding produced a value where there was none")
	}

	message = Message{}
	testDecodable(t, "empty gzip", &message, emptyGzipMessage)
	if message.Codec != CompressionGzip {
		t.Error("decoding produced the wrong compression codec (wanted gzip)")
	}
	if message.Value == nil || len(message.Value) != 0 {
		t.Error("decoding produced a nil or content-ful value where an empty array was expected")
	}
}

func TestMessageDecodingVersion1(t *testing.T) {
	message := Message{Version: 1}
	testDecodable(t, "decoding empty v1 message", &message, emptyV1Message)
	if message.Timestamp.IsZero() == false {
		t.Error("zero v1 timestamp did not round-trip to the zero value")
	}
}

func TestMessageDecodingLZ4(t *testing.T) {
	message := Message{Version: 1}
	testDecodable(t, "empty lz4", &message, emptyLZ4Message)
	if message.Codec != CompressionLZ4 {
		t.Errorf("decoding produced codec %v, wanted lz4", message.Codec)
	}
	if !message.Timestamp.Equal(time.Unix(1479847795, 0)) {
		t.Errorf("decoding produced timestamp %v, wanted 1479847795", message.Timestamp)
	}
}

// TestMessageCRCSingleBitFlip exercises the §8 CRC property for a single
// message: flipping one bit of an encoded message's value makes its decode
// fail with errMessageCRCMismatch. Skipping such a message inside a set is
// covered in message_set_test.go.
func TestMessageCRCSingleBitFlip(t *testing.T) {
	good := &Message{Value: []byte("hello")}
	buf, err := encodeForTest(good)
	if err != nil {
		t.Fatal(err)
	}
	buf[len(buf)-1] ^= 0x01 // flip the last bit of the value

	decoded := &Message{}
	err = decoded.decode(&realDecoder{raw: buf}, 0)
	if err != errMessageCRCMismatch {
		t.Fatalf("expected a CRC mismatch, got %v", err)
	}
}

func encodeForTest(m *Message) ([]byte, error) {
	prep := &prepEncoder{}
	if err := m.encode(prep); err != nil {
		return nil, err
	}
	real := &realEncoder{raw: make([]byte, prep.length)}
	if err := m.encode(real); err != nil {
		return nil, err
	}
	return real.raw, nil
}
