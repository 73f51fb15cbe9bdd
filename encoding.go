package kafka

import (
	"encoding/binary"
	"fmt"
	"math"
)

// packetEncoder is the interface every protocolBody.encode implementation
// writes through. realEncoder backs an in-memory buffer sized by a prior
// prepEncoder pass; both share this interface so encode methods never know
// which pass they are in.
type packetEncoder interface {
	putInt8(in int8)
	putInt16(in int16)
	putInt32(in int32)
	putInt64(in int64)
	putBool(in bool)
	putArrayLength(in int) error
	putBytes(in []byte) error
	putRawBytes(in []byte) error
	putString(in string) error
	putNullableString(in *string) error
	putStringArray(in []string) error
	putInt32Array(in []int32) error
	putInt64Array(in []int64) error

	// offset/length bookkeeping used by length-prefixed sub-structures
	// (message sets, variable-length request bodies).
	push(pe pushEncoder)
	pop() error
}

// pushEncoder is implemented by length fields that must be filled in after
// the bytes they measure have been written — length-prefixed arrays,
// message sizes, and CRCs all reserve space with push and backfill with pop.
type pushEncoder interface {
	// saveOffset records where the reservation begins, called by push
	// before any bytes are written.
	saveOffset(in int)
	// reserveLength returns the number of bytes to reserve.
	reserveLength() int
	// run is called once the enclosed bytes have been written and fills
	// the reserved slice in place.
	run(curOffset int, buf []byte) error
}

type packetDecoder interface {
	getInt8() (int8, error)
	getInt16() (int16, error)
	getInt32() (int32, error)
	getInt64() (int64, error)
	getBool() (bool, error)
	getArrayLength() (int, error)
	getBytes() ([]byte, error)
	getRawBytes(length int) ([]byte, error)
	getString() (string, error)
	getNullableString() (*string, error)
	getStringArray() ([]string, error)
	getInt32Array() ([]int32, error)
	getInt64Array() ([]int64, error)

	remaining() int
	push(pd pushDecoder) error
	pop() error
}

// pushDecoder mirrors pushEncoder for length-prefixed sub-structures on the
// decode side (verifying a CRC once the enclosed bytes are known).
type pushDecoder interface {
	saveOffset(in int)
	reserveLength() int
	check(curOffset int, buf []byte) error
}

// prepEncoder makes a dry pass over an encode call to compute the total
// encoded length, without writing any bytes. realEncoder then allocates a
// buffer of exactly that size and re-runs the same encode call.
type prepEncoder struct {
	length int
	stack  []pushEncoder
}

func (pe *prepEncoder) putInt8(in int8)   { pe.length++ }
func (pe *prepEncoder) putInt16(in int16) { pe.length += 2 }
func (pe *prepEncoder) putInt32(in int32) { pe.length += 4 }
func (pe *prepEncoder) putInt64(in int64) { pe.length += 8 }
func (pe *prepEncoder) putBool(in bool)   { pe.length++ }

func (pe *prepEncoder) putArrayLength(in int) error {
	if in > math.MaxInt32 {
		return PacketEncodingError{fmt.Sprintf("array too long (%d)", in)}
	}
	pe.length += 4
	return nil
}

func (pe *prepEncoder) putBytes(in []byte) error {
	pe.length += 4
	if in == nil {
		return nil
	}
	if len(in) > math.MaxInt32 {
		return PacketEncodingError{fmt.Sprintf("byte slice too long (%d)", len(in))}
	}
	pe.length += len(in)
	return nil
}

func (pe *prepEncoder) putRawBytes(in []byte) error {
	if len(in) > math.MaxInt32 {
		return PacketEncodingError{fmt.Sprintf("byte slice too long (%d)", len(in))}
	}
	pe.length += len(in)
	return nil
}

func (pe *prepEncoder) putNullableString(in *string) error {
	if in == nil {
		pe.length += 2
		return nil
	}
	return pe.putString(*in)
}

func (pe *prepEncoder) putString(in string) error {
	pe.length += 2
	if len(in) > math.MaxInt16 {
		return PacketEncodingError{fmt.Sprintf("string too long (%d)", len(in))}
	}
	pe.length += len(in)
	return nil
}

func (pe *prepEncoder) putStringArray(in []string) error {
	if err := pe.putArrayLength(len(in)); err != nil {
		return err
	}
	for _, s := range in {
		if err := pe.putString(s); err != nil {
			return err
		}
	}
	return nil
}

func (pe *prepEncoder) putInt32Array(in []int32) error {
	if err := pe.putArrayLength(len(in)); err != nil {
		return err
	}
	pe.length += 4 * len(in)
	return nil
}

func (pe *prepEncoder) putInt64Array(in []int64) error {
	if err := pe.putArrayLength(len(in)); err != nil {
		return err
	}
	pe.length += 8 * len(in)
	return nil
}

func (pe *prepEncoder) push(p pushEncoder) {
	p.saveOffset(pe.length)
	pe.stack = append(pe.stack, p)
	pe.length += p.reserveLength()
}

func (pe *prepEncoder) pop() error {
	pe.stack = pe.stack[:len(pe.stack)-1]
	return nil
}

// realEncoder writes into a preallocated byte slice, backfilling
// length-prefixed sections via the pushEncoder stack as it unwinds.
type realEncoder struct {
	raw   []byte
	off   int
	stack []pushEncoder
}

func (re *realEncoder) putInt8(in int8) {
	re.raw[re.off] = byte(in)
	re.off++
}

func (re *realEncoder) putInt16(in int16) {
	binary.BigEndian.PutUint16(re.raw[re.off:], uint16(in))
	re.off += 2
}

func (re *realEncoder) putInt32(in int32) {
	binary.BigEndian.PutUint32(re.raw[re.off:], uint32(in))
	re.off += 4
}

func (re *realEncoder) putInt64(in int64) {
	binary.BigEndian.PutUint64(re.raw[re.off:], uint64(in))
	re.off += 8
}

func (re *realEncoder) putBool(in bool) {
	if in {
		re.putInt8(1)
		return
	}
	re.putInt8(0)
}

func (re *realEncoder) putArrayLength(in int) error {
	re.putInt32(int32(in))
	return nil
}

func (re *realEncoder) putBytes(in []byte) error {
	if in == nil {
		re.putInt32(-1)
		return nil
	}
	re.putInt32(int32(len(in)))
	return re.putRawBytes(in)
}

func (re *realEncoder) putRawBytes(in []byte) error {
	copy(re.raw[re.off:], in)
	re.off += len(in)
	return nil
}

func (re *realEncoder) putNullableString(in *string) error {
	if in == nil {
		re.putInt16(-1)
		return nil
	}
	return re.putString(*in)
}

func (re *realEncoder) putString(in string) error {
	re.putInt16(int16(len(in)))
	copy(re.raw[re.off:], in)
	re.off += len(in)
	return nil
}

func (re *realEncoder) putStringArray(in []string) error {
	if err := re.putArrayLength(len(in)); err != nil {
		return err
	}
	for _, s := range in {
		if err := re.putString(s); err != nil {
			return err
		}
	}
	return nil
}

func (re *realEncoder) putInt32Array(in []int32) error {
	if err := re.putArrayLength(len(in)); err != nil {
		return err
	}
	for _, v := range in {
		re.putInt32(v)
	}
	return nil
}

func (re *realEncoder) putInt64Array(in []int64) error {
	if err := re.putArrayLength(len(in)); err != nil {
		return err
	}
	for _, v := range in {
		re.putInt64(v)
	}
	return nil
}

func (re *realEncoder) push(p pushEncoder) {
	p.saveOffset(re.off)
	re.stack = append(re.stack, p)
	re.off += p.reserveLength()
}

func (re *realEncoder) pop() error {
	p := re.stack[len(re.stack)-1]
	re.stack = re.stack[:len(re.stack)-1]
	return p.run(re.off, re.raw)
}

// realDecoder reads sequentially out of a received frame, enforcing that
// every get call has enough remaining bytes — truncation surfaces as
// ErrInsufficientData so callers (message-set decode, §4.1) can treat a
// short tail as end-of-set rather than a fatal codec error.
type realDecoder struct {
	raw   []byte
	off   int
	stack []pushDecoder
}

func (rd *realDecoder) remaining() int {
	return len(rd.raw) - rd.off
}

func (rd *realDecoder) getInt8() (int8, error) {
	if rd.remaining() < 1 {
		return 0, ErrInsufficientData
	}
	v := int8(rd.raw[rd.off])
	rd.off++
	return v, nil
}

func (rd *realDecoder) getInt16() (int16, error) {
	if rd.remaining() < 2 {
		return 0, ErrInsufficientData
	}
	v := int16(binary.BigEndian.Uint16(rd.raw[rd.off:]))
	rd.off += 2
	return v, nil
}

func (rd *realDecoder) getInt32() (int32, error) {
	if rd.remaining() < 4 {
		return 0, ErrInsufficientData
	}
	v := int32(binary.BigEndian.Uint32(rd.raw[rd.off:]))
	rd.off += 4
	return v, nil
}

func (rd *realDecoder) getInt64() (int64, error) {
	if rd.remaining() < 8 {
		return 0, ErrInsufficientData
	}
	v := int64(binary.BigEndian.Uint64(rd.raw[rd.off:]))
	rd.off += 8
	return v, nil
}

func (rd *realDecoder) getBool() (bool, error) {
	v, err := rd.getInt8()
	return v != 0, err
}

func (rd *realDecoder) getArrayLength() (int, error) {
	n, err := rd.getInt32()
	if err != nil {
		return 0, err
	}
	if n == -1 {
		return 0, nil
	}
	if int(n) < 0 || int(n) > rd.remaining() {
		return 0, ErrInsufficientData
	}
	return int(n), nil
}

func (rd *realDecoder) getBytes() ([]byte, error) {
	n, err := rd.getInt32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	return rd.getRawBytes(int(n))
}

func (rd *realDecoder) getRawBytes(length int) ([]byte, error) {
	if length < 0 {
		return nil, PacketDecodingError{fmt.Sprintf("invalid negative length (%d)", length)}
	}
	if length > rd.remaining() {
		return nil, ErrInsufficientData
	}
	out := rd.raw[rd.off : rd.off+length]
	rd.off += length
	return out, nil
}

func (rd *realDecoder) getString() (string, error) {
	n, err := rd.getInt16()
	if err != nil {
		return "", err
	}
	if n == -1 {
		return "", nil
	}
	b, err := rd.getRawBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (rd *realDecoder) getNullableString() (*string, error) {
	n, err := rd.getInt16()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	b, err := rd.getRawBytes(int(n))
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func (rd *realDecoder) getStringArray() ([]string, error) {
	n, err := rd.getArrayLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = rd.getString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (rd *realDecoder) getInt32Array() ([]int32, error) {
	n, err := rd.getArrayLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]int32, n)
	for i := range out {
		if out[i], err = rd.getInt32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (rd *realDecoder) getInt64Array() ([]int64, error) {
	n, err := rd.getArrayLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]int64, n)
	for i := range out {
		if out[i], err = rd.getInt64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (rd *realDecoder) push(p pushDecoder) error {
	reserve := p.reserveLength()
	if rd.remaining() < reserve {
		return ErrInsufficientData
	}
	p.saveOffset(rd.off)
	rd.off += reserve
	rd.stack = append(rd.stack, p)
	return nil
}

func (rd *realDecoder) pop() error {
	p := rd.stack[len(rd.stack)-1]
	rd.stack = rd.stack[:len(rd.stack)-1]
	return p.check(rd.off, rd.raw)
}

// encode runs a dry length-computing pass followed by a real write pass, the
// two-pass scheme the teacher's codec uses throughout.
func encode(e protocolBody, version int16) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	e.setVersion(version)
	prep := &prepEncoder{}
	if err := e.encode(prep); err != nil {
		return nil, err
	}
	if prep.length < 0 || prep.length > math.MaxInt32 {
		return nil, PacketEncodingError{fmt.Sprintf("invalid encoded length (%d)", prep.length)}
	}
	real := &realEncoder{raw: make([]byte, prep.length)}
	if err := e.encode(real); err != nil {
		return nil, err
	}
	return real.raw, nil
}

func decode(buf []byte, in protocolBody, version int16) error {
	if buf == nil {
		return nil
	}
	d := &realDecoder{raw: buf}
	if err := in.decode(d, version); err != nil {
		return err
	}
	if d.off != len(buf) {
		return PacketDecodingError{fmt.Sprintf("%d bytes left over after decoding", len(buf)-d.off)}
	}
	return nil
}
