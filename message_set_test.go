package kafka

import "testing"

func encodeMessageSet(t *testing.T, ms *MessageSet) []byte {
	t.Helper()
	prep := &prepEncoder{}
	if err := ms.encode(prep); err != nil {
		t.Fatal(err)
	}
	real := &realEncoder{raw: make([]byte, prep.length)}
	if err := ms.encode(real); err != nil {
		t.Fatal(err)
	}
	return real.raw
}

func TestMessageSetEncodeDecodeFlat(t *testing.T) {
	ms := &MessageSet{Items: []MessageSetItem{
		{Offset: 0, Message: &Message{Version: 1, Key: []byte("k1"), Value: []byte("v1")}},
		{Offset: 1, Message: &Message{Version: 1, Key: []byte("k2"), Value: []byte("v2")}},
	}}
	buf := encodeMessageSet(t, ms)

	out := &MessageSet{}
	if err := out.decodeMessages(&realDecoder{raw: buf}); err != nil {
		t.Fatal(err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(out.Items))
	}
	if string(out.Items[0].Message.Value) != "v1" || string(out.Items[1].Message.Value) != "v2" {
		t.Fatalf("values did not round-trip: %q %q", out.Items[0].Message.Value, out.Items[1].Message.Value)
	}
}

// TestMessageSetCompressedRoundTrip exercises the §8 scenario 6 case: a
// 3-record Snappy-compressed set ("attrs & 0x07 == 2") decodes back into 3
// flattened items with correct absolute offsets, via the same outer-message
// wrapping sender.go produces.
func TestMessageSetCompressedRoundTrip(t *testing.T) {
	inner := &MessageSet{Items: []MessageSetItem{
		{Offset: 0, Message: &Message{Version: 1, Key: []byte("k"), Value: []byte("one")}},
		{Offset: 1, Message: &Message{Version: 1, Key: []byte("k"), Value: []byte("two")}},
		{Offset: 2, Message: &Message{Version: 1, Key: []byte("k"), Value: []byte("three")}},
	}}
	innerBuf := encodeMessageSet(t, inner)

	outer := &MessageSet{Items: []MessageSetItem{
		{Offset: 2, Message: &Message{Version: 1, Codec: CompressionSnappy, Value: innerBuf}},
	}}
	buf := encodeMessageSet(t, outer)

	// attrs byte sits at offset(8) + size(4) + crc(4) + version(1) = 17;
	// bits 0-2 carry the compression codec (§4.1).
	if attrs := buf[17] & 0x07; attrs != byte(CompressionSnappy) {
		t.Fatalf("wire attrs & 0x07 = %d, want %d (Snappy)", attrs, CompressionSnappy)
	}

	out := &MessageSet{}
	if err := out.decodeMessages(&realDecoder{raw: buf}); err != nil {
		t.Fatal(err)
	}
	if len(out.Items) != 3 {
		t.Fatalf("got %d flattened items, want 3", len(out.Items))
	}
	wantOffsets := []int64{0, 1, 2}
	wantValues := []string{"one", "two", "three"}
	for i, item := range out.Items {
		if item.Offset != wantOffsets[i] {
			t.Fatalf("item %d offset = %d, want %d", i, item.Offset, wantOffsets[i])
		}
		if string(item.Message.Value) != wantValues[i] {
			t.Fatalf("item %d value = %q, want %q", i, item.Message.Value, wantValues[i])
		}
	}
}

func TestMessageSetTruncatedTailIsNotFatal(t *testing.T) {
	ms := &MessageSet{Items: []MessageSetItem{
		{Offset: 0, Message: &Message{Version: 1, Key: []byte("k1"), Value: []byte("v1")}},
		{Offset: 1, Message: &Message{Version: 1, Key: []byte("k2"), Value: []byte("v2")}},
	}}
	buf := encodeMessageSet(t, ms)
	truncated := buf[:len(buf)-3]

	out := &MessageSet{}
	if err := out.decodeMessages(&realDecoder{raw: truncated}); err != nil {
		t.Fatalf("a truncated tail record should not be a decode error, got %v", err)
	}
	if len(out.Items) != 1 {
		t.Fatalf("expected only the first complete message to decode, got %d items", len(out.Items))
	}
}

func TestMessageSetCRCMismatchIsSkippedNotFatal(t *testing.T) {
	good := &Message{Version: 1, Key: []byte("k1"), Value: []byte("v1")}
	ms := &MessageSet{Items: []MessageSetItem{
		{Offset: 0, Message: good},
		{Offset: 1, Message: &Message{Version: 1, Key: []byte("k2"), Value: []byte("v2")}},
	}}
	buf := encodeMessageSet(t, ms)

	// corrupt the first message's value byte (offset 8 header + 4 size
	// header + 4 crc + 1 version + 1 attrs + 8 timestamp + 4 key-length +
	// 2 key bytes + 4 value-length = byte 36), so the CRC check fails
	// without disturbing any other field's framing.
	buf[36] ^= 0xff

	out := &MessageSet{}
	if err := out.decodeMessages(&realDecoder{raw: buf}); err != nil {
		t.Fatalf("a CRC mismatch should be skipped, not returned as an error: %v", err)
	}
	if len(out.Items) != 1 {
		t.Fatalf("expected the corrupted message to be dropped, leaving 1 item, got %d", len(out.Items))
	}
	if string(out.Items[0].Message.Value) != "v2" {
		t.Fatalf("surviving item should be the second message, got %q", out.Items[0].Message.Value)
	}
}
