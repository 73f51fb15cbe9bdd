package kafka

import (
	"bytes"
	"testing"
)

// testEncodable and testDecodable are shared by every codec _test.go file in
// this package, in the teacher's own style of byte-fixture round-trip tests.
func testEncodable(t *testing.T, name string, in interface {
	encode(pe packetEncoder) error
}, expected []byte) {
	t.Helper()
	prep := &prepEncoder{}
	if err := in.encode(prep); err != nil {
		t.Errorf("%s: prepass encoding error: %s", name, err)
		return
	}
	real := &realEncoder{raw: make([]byte, prep.length)}
	if err := in.encode(real); err != nil {
		t.Errorf("%s: encoding error: %s", name, err)
		return
	}
	if !bytes.Equal(real.raw, expected) {
		t.Errorf("%s: encoding produced %#v, expected %#v", name, real.raw, expected)
	}
}

func testDecodable(t *testing.T, name string, out interface {
	decode(pd packetDecoder, version int16) error
}, in []byte) {
	t.Helper()
	if err := out.decode(&realDecoder{raw: in}, 0); err != nil {
		t.Errorf("%s: decoding error: %s", name, err)
	}
}
