package kafka

import "testing"

// bumpable length-prefixed field used to exercise push/pop bookkeeping
// without pulling in a real protocolBody.
type testLengthField struct {
	offset int
}

func (f *testLengthField) saveOffset(in int) { f.offset = in }
func (f *testLengthField) reserveLength() int { return 4 }
func (f *testLengthField) run(curOffset int, buf []byte) error {
	length := curOffset - f.offset - 4
	binaryPutInt32(buf[f.offset:], int32(length))
	return nil
}
func (f *testLengthField) check(curOffset int, buf []byte) error {
	return nil
}

func binaryPutInt32(buf []byte, v int32) {
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}

func TestRealEncoderPrimitives(t *testing.T) {
	prep := &prepEncoder{}
	prep.putInt8(1)
	prep.putInt16(2)
	prep.putInt32(3)
	prep.putInt64(4)
	prep.putBool(true)
	if err := prep.putString("hi"); err != nil {
		t.Fatal(err)
	}
	if err := prep.putBytes([]byte("yo")); err != nil {
		t.Fatal(err)
	}
	want := 1 + 2 + 4 + 8 + 1 + (2 + 2) + (4 + 2)
	if prep.length != want {
		t.Fatalf("prepass length = %d, want %d", prep.length, want)
	}

	real := &realEncoder{raw: make([]byte, prep.length)}
	real.putInt8(1)
	real.putInt16(2)
	real.putInt32(3)
	real.putInt64(4)
	real.putBool(true)
	if err := real.putString("hi"); err != nil {
		t.Fatal(err)
	}
	if err := real.putBytes([]byte("yo")); err != nil {
		t.Fatal(err)
	}
	if real.off != len(real.raw) {
		t.Fatalf("real pass wrote %d bytes, expected to fill all %d", real.off, len(real.raw))
	}
}

func TestRealEncoderNilBytesEncodesAsNegativeOne(t *testing.T) {
	real := &realEncoder{raw: make([]byte, 4)}
	if err := real.putBytes(nil); err != nil {
		t.Fatal(err)
	}
	if int32(real.raw[0])<<24|int32(real.raw[1])<<16|int32(real.raw[2])<<8|int32(real.raw[3]) != -1 {
		t.Fatalf("nil []byte should encode as length -1, got % x", real.raw)
	}
}

func TestRealDecoderTruncatedInputIsInsufficientData(t *testing.T) {
	d := &realDecoder{raw: []byte{0, 1}}
	if _, err := d.getInt32(); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData reading int32 from a 2-byte buffer, got %v", err)
	}
}

func TestRealDecoderArrayLengthRejectsOversizedClaim(t *testing.T) {
	// claims 1000 array entries but the buffer holds far fewer bytes
	d := &realDecoder{raw: []byte{0, 0, 3, 232}}
	if _, err := d.getArrayLength(); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData for an array length exceeding remaining bytes, got %v", err)
	}
}

func TestRealDecoderNegativeArrayLengthIsEmpty(t *testing.T) {
	d := &realDecoder{raw: []byte{255, 255, 255, 255}}
	n, err := d.getArrayLength()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("a -1 array length should decode as 0 entries, got %d", n)
	}
}

func TestEncodeDecodeRoundTripsStringArray(t *testing.T) {
	prep := &prepEncoder{}
	in := []string{"a", "bb", "ccc"}
	if err := prep.putStringArray(in); err != nil {
		t.Fatal(err)
	}
	real := &realEncoder{raw: make([]byte, prep.length)}
	if err := real.putStringArray(in); err != nil {
		t.Fatal(err)
	}

	d := &realDecoder{raw: real.raw}
	out, err := d.getStringArray()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d strings, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("entry %d = %q, want %q", i, out[i], in[i])
		}
	}
}

func TestPushPopBackfillsLength(t *testing.T) {
	prep := &prepEncoder{}
	field := &testLengthField{}
	prep.push(field)
	prep.putInt32(99)
	if err := prep.pop(); err != nil {
		t.Fatal(err)
	}

	real := &realEncoder{raw: make([]byte, prep.length)}
	field2 := &testLengthField{}
	real.push(field2)
	real.putInt32(99)
	if err := real.pop(); err != nil {
		t.Fatal(err)
	}

	got := int32(real.raw[0])<<24 | int32(real.raw[1])<<16 | int32(real.raw[2])<<8 | int32(real.raw[3])
	if got != 4 {
		t.Fatalf("backfilled length = %d, want 4 (the size of the one int32 written inside)", got)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	// too short to hold even one message-set entry (offset+size is 12
	// bytes), so decodeMessages stops immediately and leaves these 5
	// bytes unconsumed.
	buf := []byte{0, 0, 0, 1, 0xff}
	dummy := &wrapMessageSet{s: &MessageSet{}}
	if err := decode(buf, dummy, 0); err == nil {
		t.Fatal("expected an error when bytes remain after decode")
	}
}
