package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema/internal/wire"
)

// PrimKind selects the decoded Go representation of a primitive.
type PrimKind uint8

const (
	// KindUnsigned decodes to uint64.
	KindUnsigned PrimKind = iota
	// KindSigned decodes to int64.
	KindSigned
	// KindBytes decodes to []byte with trailing zero bytes stripped.
	KindBytes
)

// Primitive is a fixed-width scalar type: an integer or a fixed byte block.
type Primitive struct {
	name   string
	kind   PrimKind
	width  int
	order  binary.ByteOrder
	strict bool
	inl    *inlineInfo
	p      *primParser
}

// NewPrim declares a primitive type of the given width and byte order. A
// strict primitive never flattens into an enclosing record, so it keeps its
// own byte order instead of adopting the record's.
func NewPrim(kind PrimKind, width int, order binary.ByteOrder, name string, strict bool) *Primitive {
	if kind != KindBytes {
		switch width {
		case 1, 2, 4, 8:
		default:
			panic(errors.Definition(name, "integer primitives must be 1, 2, 4 or 8 bytes wide, got %d", width))
		}
	} else if width <= 0 {
		panic(errors.Definition(name, "byte blocks need a positive width, got %d", width))
	}
	if order == nil {
		order = binary.BigEndian
	}
	t := &Primitive{name: name, kind: kind, width: width, order: order, strict: strict}
	if !strict {
		t.inl = &inlineInfo{size: width, prim: &primSlot{kind: t.slotKind(), width: width}}
	}
	t.p = &primParser{t: t}
	return t
}

// Bytes declares a fixed byte block of n bytes. Decoding strips trailing zero
// bytes; encoding zero-pads short values back to n.
func Bytes(n int) *Primitive {
	if n <= 0 {
		panic(errors.Definition("char", "byte blocks need a positive width, got %d", n))
	}
	return NewPrim(KindBytes, n, binary.BigEndian, fmt.Sprintf("char[%d]", n), false)
}

// Standard primitives. Everything is network order unless the name says LE;
// the LE variants are strict so they keep little-endian layout even inside a
// big-endian record.
var (
	UInt8  = NewPrim(KindUnsigned, 1, binary.BigEndian, "uint8", false)
	UInt16 = NewPrim(KindUnsigned, 2, binary.BigEndian, "uint16", false)
	UInt32 = NewPrim(KindUnsigned, 4, binary.BigEndian, "uint32", false)
	UInt64 = NewPrim(KindUnsigned, 8, binary.BigEndian, "uint64", false)

	Int8  = NewPrim(KindSigned, 1, binary.BigEndian, "int8", false)
	Int16 = NewPrim(KindSigned, 2, binary.BigEndian, "int16", false)
	Int32 = NewPrim(KindSigned, 4, binary.BigEndian, "int32", false)
	Int64 = NewPrim(KindSigned, 8, binary.BigEndian, "int64", false)

	UInt16LE = NewPrim(KindUnsigned, 2, binary.LittleEndian, "uint16_le", true)
	UInt32LE = NewPrim(KindUnsigned, 4, binary.LittleEndian, "uint32_le", true)
	UInt64LE = NewPrim(KindUnsigned, 8, binary.LittleEndian, "uint64_le", true)

	// Char is a single byte block. Char arrays compile to fixed byte
	// blocks: ArrayOf(Char, n) is Bytes(n) and ArrayOf(Char, 0) is Raw.
	Char = NewPrim(KindBytes, 1, binary.BigEndian, "char", false)
)

func (t *Primitive) Name() string { return t.name }

func (t *Primitive) String() string {
	if t.name != "" {
		return t.name
	}
	return fmt.Sprintf("prim(%d)", t.width)
}

// Width returns the primitive's encoded size in bytes.
func (t *Primitive) Width() int { return t.width }

// Kind returns the primitive's decoded representation.
func (t *Primitive) Kind() PrimKind { return t.kind }

func (t *Primitive) valueParser() parser { return t.p }

func (t *Primitive) inlineLayout() *inlineInfo { return t.inl }

func (t *Primitive) extraCapable() bool { return false }

func (t *Primitive) slotKind() slotKind {
	switch t.kind {
	case KindSigned:
		return slotSigned
	case KindBytes:
		return slotBytes
	default:
		return slotUnsigned
	}
}

// Parse decodes one value from the head of data and returns the consumed
// size. Unsigned primitives decode to uint64, signed to int64, byte blocks
// to []byte.
func (t *Primitive) Parse(data []byte) (any, int, error) {
	return t.p.parse(data, nil)
}

// Create decodes a value from exactly data.
func (t *Primitive) Create(data []byte) (any, error) {
	return t.p.create(data, nil)
}

// New returns the primitive's zero value.
func (t *Primitive) New() any {
	return t.p.newValue(nil)
}

// ToBytes encodes a value of the primitive.
func (t *Primitive) ToBytes(v any) ([]byte, error) {
	return t.p.tobytes(v, false)
}

type primParser struct {
	t *Primitive
}

func (p *primParser) parse(data []byte, _ *Struct) (any, int, error) {
	if len(data) < p.t.width {
		return nil, 0, errors.ErrNeedMore
	}
	return p.decode(data[:p.t.width]), p.t.width, nil
}

func (p *primParser) create(data []byte, _ *Struct) (any, error) {
	if len(data) != p.t.width {
		return nil, errors.BadFormat(errors.PhaseCreate, p.t.String(), "need exactly %d bytes, got %d", p.t.width, len(data))
	}
	return p.decode(data), nil
}

func (p *primParser) decode(b []byte) any {
	switch p.t.kind {
	case KindUnsigned:
		return wire.Uint(b, p.t.order)
	case KindSigned:
		return wire.Int(b, p.t.order)
	default:
		return append([]byte(nil), wire.TrimZeros(b)...)
	}
}

func (p *primParser) newValue(_ *Struct) any {
	switch p.t.kind {
	case KindUnsigned:
		return uint64(0)
	case KindSigned:
		return int64(0)
	default:
		return []byte{}
	}
}

func (p *primParser) sizeof(any) int { return p.t.width }

func (p *primParser) paddingSize(any) int { return p.t.width }

func (p *primParser) tobytes(v any, _ bool) ([]byte, error) {
	buf := make([]byte, p.t.width)
	switch p.t.kind {
	case KindUnsigned:
		n, ok := asUint64(v)
		if !ok {
			return nil, errors.BadValue(errors.PhasePack, nil, v, "%s expects an unsigned integer, got %T", p.t, v)
		}
		wire.PutUint(buf, p.t.order, n)
	case KindSigned:
		n, ok := asInt64(v)
		if !ok {
			return nil, errors.BadValue(errors.PhasePack, nil, v, "%s expects a signed integer, got %T", p.t, v)
		}
		wire.PutInt(buf, p.t.order, n)
	default:
		b, ok := v.([]byte)
		if !ok {
			return nil, errors.BadValue(errors.PhasePack, nil, v, "%s expects bytes, got %T", p.t, v)
		}
		copy(buf, b)
	}
	return buf, nil
}
