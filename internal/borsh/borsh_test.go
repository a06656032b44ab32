package borsh

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

func TestIntegersLittleEndian(t *testing.T) {
	w := NewWriter(32)
	w.U8(0xAB)
	w.U16(0x0102)
	w.U32(0x01020304)
	w.U64(0x0102030405060708)
	w.I64(-2)

	want := []byte{
		0xAB,
		0x02, 0x01,
		0x04, 0x03, 0x02, 0x01,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	}

	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("encoded %x, want %x", w.Bytes(), want)
	}

	r := NewReader(w.Bytes())
	if r.U8() != 0xAB || r.U16() != 0x0102 || r.U32() != 0x01020304 || r.U64() != 0x0102030405060708 {
		t.Fatal("unsigned values did not decode")
	}

	if v := r.I64(); v != -2 {
		t.Errorf("I64 = %d, want -2", v)
	}

	if err := r.Finish(); err != nil {
		t.Errorf("Finish: %v", err)
	}
}

func TestStringAndVec(t *testing.T) {
	w := NewWriter(0)
	w.String("usa")
	w.ByteVec([]byte{9, 8})

	want := []byte{3, 0, 0, 0, 'u', 's', 'a', 2, 0, 0, 0, 9, 8}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("encoded %x, want %x", w.Bytes(), want)
	}

	r := NewReader(want)
	if s := r.String(); s != "usa" {
		t.Errorf("String = %q", s)
	}

	if b := r.Bytes(); !bytes.Equal(b, []byte{9, 8}) {
		t.Errorf("Bytes = %x", b)
	}
}

func TestShortBuffer(t *testing.T) {
	r := NewReader([]byte{5, 0, 0, 0, 'a'})
	_ = r.String()

	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", r.Err())
	}

	// Sticky error: later reads return zero values.
	if v := r.U8(); v != 0 {
		t.Errorf("read after error returned %d", v)
	}
}

func TestInvalidBool(t *testing.T) {
	r := NewReader([]byte{2})
	_ = r.Bool()

	if !errors.Is(r.Err(), ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", r.Err())
	}
}

func TestInvalidUTF8(t *testing.T) {
	r := NewReader([]byte{1, 0, 0, 0, 0xFF})
	_ = r.String()

	if !errors.Is(r.Err(), ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", r.Err())
	}
}

func TestTrailingBytes(t *testing.T) {
	r := NewReader([]byte{1, 2})
	r.U8()

	if err := r.Finish(); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected trailing-bytes error, got %v", err)
	}
}

func TestLenBoundedByInput(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF, 0xFF, 0x7F})
	n := r.Len(32)

	if n != 0 || !errors.Is(r.Err(), ErrShortBuffer) {
		t.Fatalf("Len = %d, err = %v", n, r.Err())
	}
}

func TestInt128RoundTrip(t *testing.T) {
	values := []string{"0", "1", "-1", "170141183460469231731687303715884105727", "-170141183460469231731687303715884105728"}

	for _, s := range values {
		v, _ := new(big.Int).SetString(s, 10)

		w := NewWriter(16)
		if err := w.I128(v); err != nil {
			t.Fatalf("I128(%s): %v", s, err)
		}

		got := NewReader(w.Bytes()).I128()
		if got.Cmp(v) != 0 {
			t.Errorf("I128 round trip: got %s, want %s", got, s)
		}
	}
}

func TestU128Range(t *testing.T) {
	w := NewWriter(16)

	if err := w.U128(big.NewInt(-1)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("negative u128 accepted: %v", err)
	}

	maxU128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	if err := w.U128(maxU128); err != nil {
		t.Fatalf("max u128 rejected: %v", err)
	}

	if !bytes.Equal(w.Bytes(), bytes.Repeat([]byte{0xFF}, 16)) {
		t.Errorf("max u128 encoded as %x", w.Bytes())
	}
}

func TestChar(t *testing.T) {
	w := NewWriter(4)
	w.Char('é')

	if c := NewReader(w.Bytes()).Char(); c != 'é' {
		t.Errorf("Char = %q", c)
	}

	r := NewReader([]byte{0x00, 0xD8, 0x00, 0x00}) // surrogate
	_ = r.Char()
	if !errors.Is(r.Err(), ErrInvalidValue) {
		t.Errorf("surrogate accepted: %v", r.Err())
	}
}
