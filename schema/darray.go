package schema

import (
	"github.com/structwire/structwire/errors"
)

// DArray declares an array field whose element count is computed from fields
// decoded before it, for wire formats that store an element count instead of
// a byte size. Like Optional it is used as an anonymous member: the decoded
// slice is stored under the field name in the enclosing record's namespace.
//
// When the total byte size of the record is stored instead, prefer the Size
// option with a variable array as the last field.
type DArray struct {
	inner     Type
	fieldName string
	p         *darrayParser

	listFormatter FormatFunc
}

// DefineDArray declares a dynamic array of the inner type under the given
// field name. count may only read fields declared before the array member.
// Only the Padding and Prepack options apply here.
func DefineDArray(inner Type, name string, count CountFunc, opts ...Options) *DArray {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if inner == nil {
		panic(errors.Definition(name, "dynamic arrays need an inner type"))
	}
	if name == "" {
		panic(errors.Definition(inner.String(), "dynamic arrays must be named"))
	}
	if count == nil {
		panic(errors.Definition(name, "dynamic arrays need a count hook"))
	}
	if inner.extraCapable() {
		panic(errors.Definition(name, "cannot make a dynamic array of a variable-size type"))
	}
	warnUnsupported(name, o, "Padding", "Prepack")

	padding := 1
	if o.Padding > 0 {
		padding = o.Padding
	}
	d := &DArray{inner: inner, fieldName: name}
	if ff, ok := inner.(fieldFormatter); ok {
		d.listFormatter = ff.dumpFormatter()
	}
	ep := inner.valueParser()
	d.p = &darrayParser{
		parserCore: parserCore{
			padding:     padding,
			prepackfunc: o.Prepack,
			owner:       d,
		},
		elem:  ep,
		kind:  parserKind(ep),
		field: name,
		count: count,
	}
	return d
}

func (t *DArray) Name() string { return "" }

func (t *DArray) String() string { return t.inner.String() + "[]" }

// FieldName returns the name the array value is stored under.
func (t *DArray) FieldName() string { return t.fieldName }

func (t *DArray) valueParser() parser { return t.p }

func (t *DArray) inlineLayout() *inlineInfo { return nil }

func (t *DArray) extraCapable() bool { return false }

type darrayParser struct {
	parserCore
	elem  parser
	kind  canonKind
	field string
	count CountFunc
}

// parseInner decodes count elements onto the target and returns the bytes
// consumed.
func (p *darrayParser) parseInner(data []byte, s *Struct) (int, error) {
	n := p.count(s)
	vals := make([]any, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		v, sz, err := p.elem.parse(advance(data, start), nil)
		if err != nil {
			return 0, err
		}
		vals = append(vals, v)
		start += sz
	}
	s.Set(p.field, makeCanonSlice(p.kind, vals))
	return start, nil
}

func (p *darrayParser) parseLayer(data []byte, inlineParent *Struct) (*Struct, int, error) {
	s := newStruct(p, inlineParent)
	n, err := p.parseInner(data, s)
	if err != nil {
		return nil, 0, err
	}
	return s, n, nil
}

func (p *darrayParser) unpack(data []byte, s *Struct) ([]byte, error) {
	n, err := p.parseInner(data, s)
	if err != nil {
		if errors.IsNeedMore(err) {
			return nil, errors.Corrupted(p.typeName())
		}
		return nil, err
	}
	return data[n:], nil
}

func (p *darrayParser) pack(s *Struct) ([]byte, error) {
	v, ok := s.Get(p.field)
	if !ok {
		return nil, errors.FieldMissing(errors.PhasePack, nil, p.field)
	}
	n, _ := canonLen(v)
	var out []byte
	for i := 0; i < n; i++ {
		b, err := p.elem.tobytes(canonIndex(v, i), false)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (p *darrayParser) newLayer(inlineParent *Struct) *Struct {
	s := newStruct(p, inlineParent)
	s.Set(p.field, makeCanonSlice(p.kind, nil))
	s.setExtraBytes(nil)
	return s
}

func (p *darrayParser) layerSize(s *Struct) int {
	v, ok := s.Get(p.field)
	if !ok {
		return 0
	}
	n, _ := canonLen(v)
	size := 0
	for i := 0; i < n; i++ {
		size += p.elem.paddingSize(canonIndex(v, i))
	}
	return size
}

func (p *darrayParser) parse(data []byte, ip *Struct) (any, int, error) {
	return parseValue(p, data, ip)
}

func (p *darrayParser) create(data []byte, ip *Struct) (any, error) {
	return createValue(p, data, ip)
}

func (p *darrayParser) newValue(ip *Struct) any { return newValueOf(p, ip) }

func (p *darrayParser) sizeof(v any) int { return structSizeof(v) }

func (p *darrayParser) paddingSize(v any) int { return structPaddingSize(p, v) }

func (p *darrayParser) tobytes(v any, skipPrepack bool) ([]byte, error) {
	return structToBytes(v, skipPrepack)
}
