// Package borsh reads and writes the little-endian Borsh layout used by
// Solana program accounts.
package borsh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

var (
	// ErrShortBuffer is returned when the input ends before a value is complete.
	ErrShortBuffer = errors.New("borsh: short buffer")

	// ErrInvalidValue is returned for bytes that are not a legal encoding.
	ErrInvalidValue = errors.New("borsh: invalid value")
)

// Reader decodes values sequentially from a byte slice.
// The first error sticks: later reads return zero values and Err reports it.
type Reader struct {
	buf []byte // buf is the remaining input
	err error  // err is the first decoding error
}

// NewReader creates a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf)
}

// Finish returns the sticky error, or an error if input is left over.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}

	if len(r.buf) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidValue, len(r.buf))
	}

	return nil
}

// next consumes n bytes, or records ErrShortBuffer.
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}

	if n < 0 || len(r.buf) < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(r.buf))
		return nil
	}

	b := r.buf[:n]
	r.buf = r.buf[n:]

	return b
}

// U8 reads a u8.
func (r *Reader) U8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a little-endian u16.
func (r *Reader) U16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U32 reads a little-endian u32.
func (r *Reader) U32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a little-endian u64.
func (r *Reader) U64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// I8 reads an i8.
func (r *Reader) I8() int8 { return int8(r.U8()) }

// I16 reads a little-endian i16.
func (r *Reader) I16() int16 { return int16(r.U16()) }

// I32 reads a little-endian i32.
func (r *Reader) I32() int32 { return int32(r.U32()) }

// I64 reads a little-endian i64.
func (r *Reader) I64() int64 { return int64(r.U64()) }

// U128 reads a little-endian u128.
func (r *Reader) U128() *big.Int {
	b := r.next(16)
	if b == nil {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(reversed(b))
}

// I128 reads a little-endian two's complement i128.
func (r *Reader) I128() *big.Int {
	b := r.next(16)
	if b == nil {
		return new(big.Int)
	}

	v := new(big.Int).SetBytes(reversed(b))
	if b[15]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}

	return v
}

// Bool reads a bool; only 0 and 1 are accepted.
func (r *Reader) Bool() bool {
	v := r.U8()
	if r.err == nil && v > 1 {
		r.err = fmt.Errorf("%w: bool byte %d", ErrInvalidValue, v)
		return false
	}
	return v == 1
}

// Fixed reads exactly n bytes into a fresh slice.
func (r *Reader) Fixed(n int) []byte {
	b := r.next(n)
	if b == nil {
		return nil
	}

	out := make([]byte, n)
	copy(out, b)

	return out
}

// Key reads a 32-byte public key.
func (r *Reader) Key() [32]byte {
	var k [32]byte
	if b := r.next(32); b != nil {
		copy(k[:], b)
	}
	return k
}

// Bytes reads a Vec<u8> (u32 length prefix).
func (r *Reader) Bytes() []byte {
	n := r.U32()
	if r.err != nil {
		return nil
	}
	return r.Fixed(int(n))
}

// String reads a UTF-8 string (u32 length prefix).
func (r *Reader) String() string {
	b := r.Bytes()
	if r.err != nil {
		return ""
	}

	if !utf8.Valid(b) {
		r.err = fmt.Errorf("%w: string is not utf-8", ErrInvalidValue)
		return ""
	}

	return string(b)
}

// Char reads a Rust char (u32 unicode scalar value).
func (r *Reader) Char() rune {
	v := r.U32()
	if r.err != nil {
		return 0
	}

	c := rune(v)
	if v > utf8.MaxRune || !utf8.ValidRune(c) {
		r.err = fmt.Errorf("%w: char %#x", ErrInvalidValue, v)
		return 0
	}

	return c
}

// Len reads a vector element count, bounded by the remaining input so
// corrupt counts fail fast instead of allocating.
func (r *Reader) Len(minElemSize int) int {
	n := r.U32()
	if r.err != nil {
		return 0
	}

	if minElemSize > 0 && uint64(n)*uint64(minElemSize) > uint64(len(r.buf)) {
		r.err = fmt.Errorf("%w: vector of %d elements exceeds %d bytes", ErrShortBuffer, n, len(r.buf))
		return 0
	}

	return int(n)
}

// Writer accumulates Borsh-encoded values.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with an initial capacity hint.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded output.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// U8 writes a u8.
func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

// U16 writes a little-endian u16.
func (w *Writer) U16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

// U32 writes a little-endian u32.
func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

// U64 writes a little-endian u64.
func (w *Writer) U64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// I8 writes an i8.
func (w *Writer) I8(v int8) { w.U8(uint8(v)) }

// I16 writes a little-endian i16.
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }

// I32 writes a little-endian i32.
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

// I64 writes a little-endian i64.
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

// U128 writes v as a little-endian u128. Values outside the range are an error.
func (w *Writer) U128(v *big.Int) error {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return fmt.Errorf("%w: %s out of u128 range", ErrInvalidValue, v)
	}

	var b [16]byte
	v.FillBytes(b[:])
	w.buf = append(w.buf, reversed(b[:])...)

	return nil
}

// I128 writes v as a little-endian two's complement i128.
func (w *Writer) I128(v *big.Int) error {
	limit := new(big.Int).Lsh(big.NewInt(1), 127)
	if v.Cmp(limit) >= 0 || v.Cmp(new(big.Int).Neg(limit)) < 0 {
		return fmt.Errorf("%w: %s out of i128 range", ErrInvalidValue, v)
	}

	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), 128))
	}

	var b [16]byte
	u.FillBytes(b[:])
	w.buf = append(w.buf, reversed(b[:])...)

	return nil
}

// Bool writes a bool as 0 or 1.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// Fixed writes raw bytes with no length prefix.
func (w *Writer) Fixed(b []byte) { w.buf = append(w.buf, b...) }

// Key writes a 32-byte public key.
func (w *Writer) Key(k [32]byte) { w.buf = append(w.buf, k[:]...) }

// ByteVec writes a Vec<u8> with a u32 length prefix.
func (w *Writer) ByteVec(b []byte) {
	w.U32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// String writes a string with a u32 length prefix.
func (w *Writer) String(s string) { w.ByteVec([]byte(s)) }

// Char writes a Rust char.
func (w *Writer) Char(c rune) { w.U32(uint32(c)) }

// reversed returns a reversed copy of b (little/big endian swap).
func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
