package schema

import (
	"fmt"

	"github.com/structwire/structwire/errors"
)

// canonKind identifies which canonical slice type carries a sequence of
// decoded values: []uint64, []int64, [][]byte, []*Struct or []any.
type canonKind uint8

const (
	canonUint canonKind = iota
	canonInt
	canonBytes
	canonRecord
	canonAny
)

// parserKind reports the canonical element kind a parser produces.
func parserKind(p parser) canonKind {
	switch q := p.(type) {
	case *primParser:
		switch q.t.kind {
		case KindSigned:
			return canonInt
		case KindBytes:
			return canonBytes
		default:
			return canonUint
		}
	case *rawParser, *cstrParser:
		return canonBytes
	case structParser:
		return canonRecord
	default:
		return canonAny
	}
}

// makeCanonSlice packs loosely typed element values into the canonical slice
// for the given kind.
func makeCanonSlice(k canonKind, vals []any) any {
	switch k {
	case canonUint:
		out := make([]uint64, len(vals))
		for i, v := range vals {
			out[i], _ = asUint64(v)
		}
		return out
	case canonInt:
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i], _ = asInt64(v)
		}
		return out
	case canonBytes:
		out := make([][]byte, len(vals))
		for i, v := range vals {
			b, _ := v.([]byte)
			out[i] = b
		}
		return out
	case canonRecord:
		out := make([]*Struct, len(vals))
		for i, v := range vals {
			s, _ := v.(*Struct)
			out[i] = s
		}
		return out
	default:
		out := make([]any, len(vals))
		copy(out, vals)
		return out
	}
}

// canonLen reports the length of a canonical slice value. ok is false when v
// is not one of the canonical slice types.
func canonLen(v any) (int, bool) {
	switch s := v.(type) {
	case []uint64:
		return len(s), true
	case []int64:
		return len(s), true
	case [][]byte:
		return len(s), true
	case []*Struct:
		return len(s), true
	case []any:
		return len(s), true
	}
	return 0, false
}

// canonIndex returns element i of a canonical slice value.
func canonIndex(v any, i int) any {
	switch s := v.(type) {
	case []uint64:
		return s[i]
	case []int64:
		return s[i]
	case [][]byte:
		return s[i]
	case []*Struct:
		return s[i]
	case []any:
		return s[i]
	}
	return nil
}

// ArrayType is an array of another type. A zero count declares a variable
// array: it has no inherent length, parses no data mid-record, and consumes
// every remaining element when it is the last field of a record.
type ArrayType struct {
	name  string
	elem  Type
	count int
	p     *arrayParser
}

// ArrayOf declares an array of count elements. ArrayOf(Char, n) compiles to
// the byte block Bytes(n) and ArrayOf(Char, 0) to Raw, which is how byte
// strings are normally declared. A zero count with any other element type
// declares a variable array.
func ArrayOf(elem Type, count int) Type {
	if count < 0 {
		panic(errors.Definition(elem.String(), "array count must not be negative, got %d", count))
	}
	if elem == Char {
		if count == 0 {
			return Raw
		}
		return Bytes(count)
	}
	switch elem.(type) {
	case *ArrayType:
		panic(errors.Definition(elem.String(), "nested arrays are not supported"))
	case *Optional, *DArray, *Variant:
		panic(errors.Definition(elem.String(), "%s cannot be an array element", elem))
	}
	if elem.extraCapable() {
		panic(errors.Definition(elem.String(), "cannot make an array of a variable-size type"))
	}
	name := fmt.Sprintf("%s[%d]", elem.String(), count)
	if count == 0 {
		name = elem.String() + "[]"
	}
	t := &ArrayType{name: name, elem: elem, count: count}
	ep := elem.valueParser()
	t.p = &arrayParser{name: name, elem: ep, count: count, kind: parserKind(ep)}
	return t
}

// VarArrayOf declares a variable array of elem. It is shorthand for
// ArrayOf(elem, 0).
func VarArrayOf(elem Type) Type { return ArrayOf(elem, 0) }

func (t *ArrayType) Name() string { return t.name }

func (t *ArrayType) String() string { return t.name }

// Element returns the array's element type.
func (t *ArrayType) Element() Type { return t.elem }

// Count returns the declared element count, zero for variable arrays.
func (t *ArrayType) Count() int { return t.count }

func (t *ArrayType) valueParser() parser { return t.p }

func (t *ArrayType) inlineLayout() *inlineInfo { return nil }

func (t *ArrayType) extraCapable() bool { return false }

// Parse decodes count elements from the head of data. A variable array
// decodes no elements in this mode.
func (t *ArrayType) Parse(data []byte) (any, int, error) {
	return t.p.parse(data, nil)
}

// Create decodes elements from data. A fixed array needs at least count
// elements and ignores any bytes past them; a variable array decodes
// elements until the data runs out, discarding a trailing partial element.
func (t *ArrayType) Create(data []byte) (any, error) {
	return t.p.create(data, nil)
}

// New returns the array's zero value: count default elements, or an empty
// slice for a variable array.
func (t *ArrayType) New() any {
	return t.p.newValue(nil)
}

// ToBytes encodes an array value. Missing elements of a fixed array are
// encoded as defaults and surplus ones are dropped.
func (t *ArrayType) ToBytes(v any) ([]byte, error) {
	return t.p.tobytes(v, false)
}

type arrayParser struct {
	name  string
	elem  parser
	count int
	kind  canonKind
}

func (p *arrayParser) parse(data []byte, _ *Struct) (any, int, error) {
	vals := make([]any, 0, p.count)
	start := 0
	for i := 0; i < p.count; i++ {
		v, n, err := p.elem.parse(advance(data, start), nil)
		if err != nil {
			return nil, 0, err
		}
		vals = append(vals, v)
		start += n
	}
	return makeCanonSlice(p.kind, vals), start, nil
}

func (p *arrayParser) create(data []byte, _ *Struct) (any, error) {
	var vals []any
	start := 0
	if p.count > 0 {
		vals = make([]any, 0, p.count)
		for i := 0; i < p.count; i++ {
			v, n, err := p.elem.parse(advance(data, start), nil)
			if err != nil {
				if errors.IsNeedMore(err) {
					return nil, errors.BadFormat(errors.PhaseCreate, p.name, "need %d elements, got %d in %d bytes", p.count, i, len(data))
				}
				return nil, err
			}
			vals = append(vals, v)
			start += n
		}
	} else {
		for start < len(data) {
			v, n, err := p.elem.parse(data[start:], nil)
			if err != nil {
				if errors.IsNeedMore(err) {
					break
				}
				return nil, err
			}
			if n == 0 {
				break
			}
			vals = append(vals, v)
			start += n
		}
	}
	return makeCanonSlice(p.kind, vals), nil
}

func (p *arrayParser) newValue(_ *Struct) any {
	vals := make([]any, p.count)
	for i := range vals {
		vals[i] = p.elem.newValue(nil)
	}
	return makeCanonSlice(p.kind, vals)
}

func (p *arrayParser) sizeof(v any) int {
	n, _ := canonLen(v)
	total := p.count
	if total == 0 {
		total = n
	}
	size := 0
	for i := 0; i < total; i++ {
		var ev any
		if i < n {
			ev = canonIndex(v, i)
		} else {
			ev = p.elem.newValue(nil)
		}
		size += p.elem.paddingSize(ev)
	}
	return size
}

func (p *arrayParser) paddingSize(v any) int { return p.sizeof(v) }

func (p *arrayParser) tobytes(v any, skipPrepack bool) ([]byte, error) {
	n, _ := canonLen(v)
	total := p.count
	if total == 0 {
		total = n
	}
	var out []byte
	for i := 0; i < total; i++ {
		var ev any
		if i < n {
			ev = canonIndex(v, i)
		} else {
			ev = p.elem.newValue(nil)
		}
		b, err := p.elem.tobytes(ev, skipPrepack)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}
