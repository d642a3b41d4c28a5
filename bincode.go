package envy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedAsset is returned when asset bytes cannot be decoded.
var ErrMalformedAsset = errors.New("malformed asset")

// Varint tags of the bincode standard configuration. Values below
// varintU16 are stored in a single byte.
const (
	varintU16 = 251
	varintU32 = 252
	varintU64 = 253
)

// maxDecodeLength caps any length prefix so corrupt input cannot allocate
// unbounded memory.
const maxDecodeLength = 1 << 30

// bincodeWriter appends values in the bincode standard configuration:
// little-endian, variable length integers.
type bincodeWriter struct {
	buf []byte
}

func (w *bincodeWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *bincodeWriter) varint(v uint64) {
	switch {
	case v < varintU16:
		w.buf = append(w.buf, byte(v))
	case v <= math.MaxUint16:
		w.buf = append(w.buf, varintU16)
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(v))
	case v <= math.MaxUint32:
		w.buf = append(w.buf, varintU32)
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
	default:
		w.buf = append(w.buf, varintU64)
		w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	}
}

func (w *bincodeWriter) f32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *bincodeWriter) vec2(v Vec2) {
	w.f32(v.X)
	w.f32(v.Y)
}

func (w *bincodeWriter) str(s string) {
	w.varint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *bincodeWriter) bytes(b []byte) {
	w.varint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *bincodeWriter) option(present bool) {
	if present {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// bincodeReader decodes values written by bincodeWriter. The first error
// sticks: later reads return zero values and err keeps the original cause.
type bincodeReader struct {
	data []byte
	off  int
	err  error
}

func (r *bincodeReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("envy: %w: %s at offset %d", ErrMalformedAsset, fmt.Sprintf(format, args...), r.off)
	}
}

func (r *bincodeReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.fail("need %d bytes, have %d", n, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *bincodeReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *bincodeReader) varint() uint64 {
	tag := r.u8()
	switch {
	case r.err != nil:
		return 0
	case tag < varintU16:
		return uint64(tag)
	case tag == varintU16:
		if b := r.take(2); b != nil {
			return uint64(binary.LittleEndian.Uint16(b))
		}
	case tag == varintU32:
		if b := r.take(4); b != nil {
			return uint64(binary.LittleEndian.Uint32(b))
		}
	case tag == varintU64:
		if b := r.take(8); b != nil {
			return binary.LittleEndian.Uint64(b)
		}
	default:
		r.fail("unsupported varint tag %d", tag)
	}
	return 0
}

// length reads a collection length, rejecting values that cannot fit in the
// remaining input.
func (r *bincodeReader) length() int {
	n := r.varint()
	if r.err == nil && (n > maxDecodeLength || n > uint64(len(r.data)-r.off)) {
		r.fail("length %d exceeds input", n)
		return 0
	}
	return int(n)
}

func (r *bincodeReader) f32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (r *bincodeReader) vec2() Vec2 {
	x := r.f32()
	y := r.f32()
	return Vec2{x, y}
}

func (r *bincodeReader) str() string {
	return string(r.take(r.length()))
}

func (r *bincodeReader) bytes() []byte {
	b := r.take(r.length())
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *bincodeReader) option() bool {
	switch tag := r.u8(); tag {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("invalid option tag %d", tag)
		return false
	}
}

// variant reads an enum discriminant and checks it against the number of
// variants.
func (r *bincodeReader) variant(what string, count uint64) uint64 {
	v := r.varint()
	if r.err == nil && v >= count {
		r.fail("unknown %s variant %d", what, v)
	}
	return v
}
