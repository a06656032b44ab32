package sas

import "fmt"

// FieldType is a schema layout tag.
type FieldType uint8

// Layout tags as stored in a schema account.
const (
	U8 FieldType = iota
	U16
	U32
	U64
	U128
	I8
	I16
	I32
	I64
	I128
	Bool
	Char
	String
	VecU8
	VecU16
	VecU32
	VecU64
	VecU128
	VecI8
	VecI16
	VecI32
	VecI64
	VecI128
	VecBool
	VecChar
	VecString
)

var fieldTypeNames = [...]string{
	"U8", "U16", "U32", "U64", "U128",
	"I8", "I16", "I32", "I64", "I128",
	"Bool", "Char", "String",
	"VecU8", "VecU16", "VecU32", "VecU64", "VecU128",
	"VecI8", "VecI16", "VecI32", "VecI64", "VecI128",
	"VecBool", "VecChar", "VecString",
}

// Valid reports whether t is a known tag.
func (t FieldType) Valid() bool {
	return int(t) < len(fieldTypeNames)
}

// String returns the tag name.
func (t FieldType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
	return fieldTypeNames[t]
}

// IsVec reports whether t is a vector form.
func (t FieldType) IsVec() bool {
	return t >= VecU8 && t.Valid()
}

// Elem returns the element type of a vector form, or t itself.
func (t FieldType) Elem() FieldType {
	if t.IsVec() {
		return t - VecU8
	}
	return t
}

// ParseFieldType maps a tag name back to its value.
func ParseFieldType(s string) (FieldType, error) {
	for i, n := range fieldTypeNames {
		if n == s {
			return FieldType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// MarshalText encodes the tag name.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tag name.
func (t *FieldType) UnmarshalText(text []byte) error {
	ft, err := ParseFieldType(string(text))
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// minSize is the smallest encoding of one element, used to bound vector counts.
func (t FieldType) minSize() int {
	switch t.Elem() {
	case U8, I8, Bool:
		return 1
	case U16, I16:
		return 2
	case U32, I32, Char, String:
		return 4
	case U64, I64:
		return 8
	case U128, I128:
		return 16
	default:
		return 1
	}
}
