package sas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"SASVerify/internal/borsh"
)

// Field is one decoded payload value.
//
// Value types: U8..U64 as uint8..uint64, I8..I64 as int8..int64,
// U128/I128 as *big.Int, Bool as bool, Char as rune, String as string,
// and the vector forms as slices of those.
type Field struct {
	Name  string    `json:"name"`
	Type  FieldType `json:"type"`
	Value any       `json:"value"`
}

// Record is an attestation payload decoded in schema order.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the record as an object with fields in schema order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(jsonValue(f.Type, f.Value))
		if err != nil {
			return nil, fmt.Errorf("field %q:\n%w", f.Name, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// jsonValue renders chars as strings and byte vectors as number arrays.
func jsonValue(t FieldType, v any) any {
	switch t {
	case Char:
		if c, ok := v.(rune); ok {
			return string(c)
		}
	case VecChar:
		if cs, ok := v.([]rune); ok {
			out := make([]string, len(cs))
			for i, c := range cs {
				out[i] = string(c)
			}
			return out
		}
	case VecU8:
		if bs, ok := v.([]byte); ok {
			out := make([]uint, len(bs))
			for i, b := range bs {
				out[i] = uint(b)
			}
			return out
		}
	}
	return v
}

// DecodeData decodes an attestation payload according to the schema layout.
// Every byte must be consumed.
func DecodeData(s *Schema, data []byte) (Record, error) {
	if len(s.FieldNames) != len(s.Layout) {
		return nil, fmt.Errorf("schema has %d names for %d fields", len(s.FieldNames), len(s.Layout))
	}

	r := borsh.NewReader(data)
	rec := make(Record, len(s.Layout))

	for i, t := range s.Layout {
		v, err := readValue(r, t)
		if err != nil {
			return nil, fmt.Errorf("field %q:\n%w", s.FieldNames[i], err)
		}

		rec[i] = Field{Name: s.FieldNames[i], Type: t, Value: v}
	}

	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode payload:\n%w", err)
	}

	return rec, nil
}

// readValue reads one value of type t.
func readValue(r *borsh.Reader, t FieldType) (any, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown type tag %d", uint8(t))
	}

	if !t.IsVec() {
		v := readScalar(r, t)
		return v, r.Err()
	}

	n := r.Len(t.minSize())
	if r.Err() != nil {
		return nil, r.Err()
	}

	var out any
	switch t.Elem() {
	case U8:
		out = r.Fixed(n)
	case U16:
		out = readVec(r, n, r.U16)
	case U32:
		out = readVec(r, n, r.U32)
	case U64:
		out = readVec(r, n, r.U64)
	case U128:
		out = readVec(r, n, r.U128)
	case I8:
		out = readVec(r, n, r.I8)
	case I16:
		out = readVec(r, n, r.I16)
	case I32:
		out = readVec(r, n, r.I32)
	case I64:
		out = readVec(r, n, r.I64)
	case I128:
		out = readVec(r, n, r.I128)
	case Bool:
		out = readVec(r, n, r.Bool)
	case Char:
		out = readVec(r, n, r.Char)
	case String:
		out = readVec(r, n, r.String)
	}

	return out, r.Err()
}

// readScalar reads a non-vector value.
func readScalar(r *borsh.Reader, t FieldType) any {
	switch t {
	case U8:
		return r.U8()
	case U16:
		return r.U16()
	case U32:
		return r.U32()
	case U64:
		return r.U64()
	case U128:
		return r.U128()
	case I8:
		return r.I8()
	case I16:
		return r.I16()
	case I32:
		return r.I32()
	case I64:
		return r.I64()
	case I128:
		return r.I128()
	case Bool:
		return r.Bool()
	case Char:
		return r.Char()
	default:
		return r.String()
	}
}

// readVec reads n elements with read, stopping at the first error.
func readVec[T any](r *borsh.Reader, n int, read func() T) []T {
	out := make([]T, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		out = append(out, read())
	}
	return out
}

// EncodeData serializes values in schema order. Integer fields accept any Go
// integer or an integral float64 (as produced by encoding/json) within range.
func EncodeData(s *Schema, values map[string]any) ([]byte, error) {
	if len(s.FieldNames) != len(s.Layout) {
		return nil, fmt.Errorf("schema has %d names for %d fields", len(s.FieldNames), len(s.Layout))
	}

	w := borsh.NewWriter(64)

	for i, t := range s.Layout {
		name := s.FieldNames[i]

		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("missing value for field %q", name)
		}

		if err := writeValue(w, t, v); err != nil {
			return nil, fmt.Errorf("field %q:\n%w", name, err)
		}
	}

	return w.Bytes(), nil
}

// writeValue writes one value of type t.
func writeValue(w *borsh.Writer, t FieldType, v any) error {
	if !t.Valid() {
		return fmt.Errorf("unknown type tag %d", uint8(t))
	}

	if !t.IsVec() {
		return writeScalar(w, t, v)
	}

	if t == VecU8 {
		if b, ok := v.([]byte); ok {
			w.ByteVec(b)
			return nil
		}
	}

	if t == VecString {
		if ss, ok := v.([]string); ok {
			w.U32(uint32(len(ss)))
			for _, s := range ss {
				w.String(s)
			}
			return nil
		}
	}

	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%s expects a list, got %T", t, v)
	}

	w.U32(uint32(len(items)))
	for j, item := range items {
		if err := writeScalar(w, t.Elem(), item); err != nil {
			return fmt.Errorf("element %d:\n%w", j, err)
		}
	}

	return nil
}

// writeScalar writes a non-vector value with range checks.
func writeScalar(w *borsh.Writer, t FieldType, v any) error {
	switch t {
	case U8, U16, U32, U64:
		u, err := toUint(v, uintLimit(t))
		if err != nil {
			return err
		}
		switch t {
		case U8:
			w.U8(uint8(u))
		case U16:
			w.U16(uint16(u))
		case U32:
			w.U32(uint32(u))
		default:
			w.U64(u)
		}
	case I8, I16, I32, I64:
		i, err := toInt(v, intLimit(t))
		if err != nil {
			return err
		}
		switch t {
		case I8:
			w.I8(int8(i))
		case I16:
			w.I16(int16(i))
		case I32:
			w.I32(int32(i))
		default:
			w.I64(i)
		}
	case U128, I128:
		b, err := toBig(v)
		if err != nil {
			return err
		}
		if t == U128 {
			return w.U128(b)
		}
		return w.I128(b)
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("Bool expects bool, got %T", v)
		}
		w.Bool(b)
	case Char:
		switch c := v.(type) {
		case rune:
			w.Char(c)
		case string:
			rs := []rune(c)
			if len(rs) != 1 {
				return fmt.Errorf("Char expects one character, got %q", c)
			}
			w.Char(rs[0])
		default:
			return fmt.Errorf("Char expects rune or string, got %T", v)
		}
	case String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("String expects string, got %T", v)
		}
		w.String(s)
	default:
		return fmt.Errorf("%s is not a scalar type", t)
	}

	return nil
}

func uintLimit(t FieldType) uint64 {
	switch t {
	case U8:
		return math.MaxUint8
	case U16:
		return math.MaxUint16
	case U32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

func intLimit(t FieldType) int64 {
	switch t {
	case I8:
		return math.MaxInt8
	case I16:
		return math.MaxInt16
	case I32:
		return math.MaxInt32
	default:
		return math.MaxInt64
	}
}

// toUint converts an integer-like value, checking 0 <= v <= limit.
func toUint(v any, limit uint64) (uint64, error) {
	var u uint64

	switch x := v.(type) {
	case uint8:
		u = uint64(x)
	case uint16:
		u = uint64(x)
	case uint32:
		u = uint64(x)
	case uint64:
		u = x
	case uint:
		u = uint64(x)
	case int, int8, int16, int32, int64, float64:
		i, err := toInt(v, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", i)
		}
		u = uint64(i)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}

	if u > limit {
		return 0, fmt.Errorf("value %d exceeds %d", u, limit)
	}

	return u, nil
}

// toInt converts an integer-like value, checking -limit-1 <= v <= limit.
func toInt(v any, limit int64) (int64, error) {
	var i int64

	switch x := v.(type) {
	case int:
		i = int64(x)
	case int8:
		i = int64(x)
	case int16:
		i = int64(x)
	case int32:
		i = int64(x)
	case int64:
		i = x
	case uint8:
		i = int64(x)
	case uint16:
		i = int64(x)
	case uint32:
		i = int64(x)
	case float64:
		if x != math.Trunc(x) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("value %v is not an integer", x)
		}
		i = int64(x)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}

	if i > limit || i < -limit-1 {
		return 0, fmt.Errorf("value %d out of range", i)
	}

	return i, nil
}

// toBig converts 128-bit inputs.
func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return x, nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case string:
		b, ok := new(big.Int).SetString(x, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return b, nil
	default:
		i, err := toInt(v, math.MaxInt64)
		if err != nil {
			return nil, err
		}
		return big.NewInt(i), nil
	}
}
