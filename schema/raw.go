package schema

import (
	"bytes"

	"github.com/structwire/structwire/errors"
)

// RawType holds the byte tail of a record. It has no inherent size: it never
// consumes data mid-record and takes everything that remains when it is the
// last field.
type RawType struct {
	name       string
	stripZeros bool
	p          *rawParser
}

var (
	// Raw is a verbatim byte tail.
	Raw = newRawType("raw", false)
	// VarChr is a byte tail that drops trailing zero bytes when decoding,
	// for records whose tail is a zero-padded string.
	VarChr = newRawType("varchr", true)
)

func newRawType(name string, strip bool) *RawType {
	t := &RawType{name: name, stripZeros: strip}
	t.p = &rawParser{t: t}
	return t
}

func (t *RawType) Name() string { return t.name }

func (t *RawType) String() string { return t.name }

func (t *RawType) valueParser() parser { return t.p }

func (t *RawType) inlineLayout() *inlineInfo { return nil }

func (t *RawType) extraCapable() bool { return true }

// Parse decodes nothing: a byte tail has no length of its own.
func (t *RawType) Parse(data []byte) (any, int, error) {
	return t.p.parse(data, nil)
}

// Create decodes all of data as the value.
func (t *RawType) Create(data []byte) (any, error) {
	return t.p.create(data, nil)
}

// New returns an empty byte slice.
func (t *RawType) New() any { return t.p.newValue(nil) }

// ToBytes encodes a byte tail, which is the value itself.
func (t *RawType) ToBytes(v any) ([]byte, error) {
	return t.p.tobytes(v, false)
}

type rawParser struct {
	t *RawType
}

func (p *rawParser) parse(_ []byte, _ *Struct) (any, int, error) {
	return []byte{}, 0, nil
}

func (p *rawParser) create(data []byte, _ *Struct) (any, error) {
	if p.t.stripZeros {
		data = bytes.TrimRight(data, "\x00")
	}
	return append([]byte(nil), data...), nil
}

func (p *rawParser) newValue(_ *Struct) any { return []byte{} }

func (p *rawParser) sizeof(v any) int {
	b, _ := v.([]byte)
	return len(b)
}

func (p *rawParser) paddingSize(v any) int { return p.sizeof(v) }

func (p *rawParser) tobytes(v any, _ bool) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, errors.BadValue(errors.PhasePack, nil, v, "%s expects bytes, got %T", p.t, v)
	}
	return b, nil
}

// CStrType is a zero-terminated byte string. The terminator is part of the
// encoding, not the value.
type CStrType struct {
	p *cstrParser
}

// CStr is the zero-terminated string type.
var CStr = newCStrType()

func newCStrType() *CStrType {
	t := &CStrType{}
	t.p = &cstrParser{t: t}
	return t
}

func (t *CStrType) Name() string { return "cstr" }

func (t *CStrType) String() string { return "cstr" }

func (t *CStrType) valueParser() parser { return t.p }

func (t *CStrType) inlineLayout() *inlineInfo { return nil }

func (t *CStrType) extraCapable() bool { return false }

// Parse scans for the terminator and decodes the bytes before it. Without a
// terminator in data the string is incomplete.
func (t *CStrType) Parse(data []byte) (any, int, error) {
	return t.p.parse(data, nil)
}

// Create decodes data, which must be a whole string: terminated by its final
// byte and with no interior zero byte.
func (t *CStrType) Create(data []byte) (any, error) {
	return t.p.create(data, nil)
}

// New returns an empty byte slice.
func (t *CStrType) New() any { return t.p.newValue(nil) }

// ToBytes encodes the value followed by the terminator.
func (t *CStrType) ToBytes(v any) ([]byte, error) {
	return t.p.tobytes(v, false)
}

type cstrParser struct {
	t *CStrType
}

func (p *cstrParser) parse(data []byte, _ *Struct) (any, int, error) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		return nil, 0, errors.ErrNeedMore
	}
	return append([]byte(nil), data[:i]...), i + 1, nil
}

func (p *cstrParser) create(data []byte, _ *Struct) (any, error) {
	if len(data) == 0 || data[len(data)-1] != 0 {
		return nil, errors.BadFormat(errors.PhaseCreate, "cstr", "string is not zero-terminated")
	}
	body := data[:len(data)-1]
	if bytes.IndexByte(body, 0) >= 0 {
		return nil, errors.BadFormat(errors.PhaseCreate, "cstr", "string has an interior zero byte")
	}
	return append([]byte(nil), body...), nil
}

func (p *cstrParser) newValue(_ *Struct) any { return []byte{} }

func (p *cstrParser) sizeof(v any) int {
	b, _ := v.([]byte)
	return len(b) + 1
}

func (p *cstrParser) paddingSize(v any) int { return p.sizeof(v) }

func (p *cstrParser) tobytes(v any, _ bool) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, errors.BadValue(errors.PhasePack, nil, v, "cstr expects bytes, got %T", v)
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return nil, errors.BadValue(errors.PhasePack, nil, v, "cstr value must not contain a zero byte")
	}
	out := make([]byte, len(b)+1)
	copy(out, b)
	return out, nil
}
