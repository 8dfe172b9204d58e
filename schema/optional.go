package schema

import (
	"github.com/structwire/structwire/errors"
)

// Optional declares a field that only exists on the wire when a criteria hook
// approves. It is used as an anonymous member and behaves like an embedded
// record with a single named field: parsing evaluates the criteria against
// the fields decoded so far and either decodes the inner type into the field
// or leaves it unset, and packing writes the field only when it is set.
//
// New never sets the field; assign it to make it present. The enclosing
// record usually declares a Prepack hook to maintain its presence flag.
type Optional struct {
	inner     Type
	fieldName string
	p         *optionalParser

	formatter     FormatFunc
	listFormatter FormatFunc
}

// DefineOptional declares an optional field of the inner type under the given
// field name. criteria may only read fields declared before the optional
// member, because later fields are not yet decoded when it runs. Only the
// Prepack option applies here.
func DefineOptional(inner Type, name string, criteria CriteriaFunc, opts ...Options) *Optional {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if inner == nil {
		panic(errors.Definition(name, "optional fields need an inner type"))
	}
	if name == "" {
		panic(errors.Definition(inner.String(), "optional fields must be named"))
	}
	if criteria == nil {
		panic(errors.Definition(name, "optional fields need a criteria hook"))
	}
	warnUnsupported(name, o, "Prepack")

	d := &Optional{inner: inner, fieldName: name}
	if ff, ok := inner.(fieldFormatter); ok {
		d.formatter = ff.dumpFormatter()
	}
	if at, ok := inner.(*ArrayType); ok {
		if ff, ok := at.elem.(fieldFormatter); ok {
			d.listFormatter = ff.dumpFormatter()
		}
	}
	d.p = &optionalParser{
		parserCore: parserCore{
			padding:     1,
			prepackfunc: o.Prepack,
			owner:       d,
		},
		inner:   inner.valueParser(),
		field:   name,
		present: criteria,
	}
	return d
}

func (t *Optional) Name() string { return "" }

func (t *Optional) String() string { return t.inner.String() + "?" }

// FieldName returns the name the optional value is stored under.
func (t *Optional) FieldName() string { return t.fieldName }

func (t *Optional) valueParser() parser { return t.p }

func (t *Optional) inlineLayout() *inlineInfo { return nil }

// extraCapable follows the inner type: an optional raw tail still swallows
// the record's trailing bytes when present.
func (t *Optional) extraCapable() bool { return t.inner.extraCapable() }

type optionalParser struct {
	parserCore
	inner   parser
	field   string
	present CriteriaFunc
}

// parseInner decodes the inner value onto the target when the criteria
// holds. It returns the bytes consumed, zero when the field is absent.
func (p *optionalParser) parseInner(data []byte, s *Struct, createMode bool) (int, error) {
	if !p.present(s) {
		return 0, nil
	}
	if createMode {
		v, err := p.inner.create(data, nil)
		if err != nil {
			return 0, err
		}
		s.Set(p.field, v)
		return len(data), nil
	}
	v, n, err := p.inner.parse(data, nil)
	if err != nil {
		return 0, err
	}
	s.Set(p.field, v)
	return n, nil
}

func (p *optionalParser) parseLayer(data []byte, inlineParent *Struct) (*Struct, int, error) {
	s := newStruct(p, inlineParent)
	n, err := p.parseInner(data, s, false)
	if err != nil {
		return nil, 0, err
	}
	return s, n, nil
}

func (p *optionalParser) unpack(data []byte, s *Struct) ([]byte, error) {
	n, err := p.parseInner(data, s, true)
	if err != nil {
		return nil, err
	}
	return data[n:], nil
}

func (p *optionalParser) pack(s *Struct) ([]byte, error) {
	v, ok := s.Get(p.field)
	if !ok {
		return nil, nil
	}
	return p.inner.tobytes(v, false)
}

func (p *optionalParser) newLayer(inlineParent *Struct) *Struct {
	s := newStruct(p, inlineParent)
	s.setExtraBytes(nil)
	return s
}

func (p *optionalParser) layerSize(s *Struct) int {
	v, ok := s.Get(p.field)
	if !ok {
		return 0
	}
	return p.inner.paddingSize(v)
}

func (p *optionalParser) prepackLayer(s *Struct) error {
	if p.prepackfunc != nil {
		return p.prepackfunc(s)
	}
	return nil
}

func (p *optionalParser) parse(data []byte, ip *Struct) (any, int, error) {
	return parseValue(p, data, ip)
}

func (p *optionalParser) create(data []byte, ip *Struct) (any, error) {
	return createValue(p, data, ip)
}

func (p *optionalParser) newValue(ip *Struct) any { return newValueOf(p, ip) }

func (p *optionalParser) sizeof(v any) int { return structSizeof(v) }

func (p *optionalParser) paddingSize(v any) int { return structPaddingSize(p, v) }

func (p *optionalParser) tobytes(v any, skipPrepack bool) ([]byte, error) {
	return structToBytes(v, skipPrepack)
}
