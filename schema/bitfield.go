package schema

import (
	"strings"

	"github.com/Velocidex/ordereddict"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema/internal/wire"
)

// Bits declares one field of a bit field record. A zero Name makes the bits
// padding; a positive Count makes the field an array of Count elements, each
// Width bits wide.
type Bits struct {
	Width int
	Name  string
	Count int
}

// bitSpan is a compiled bit field: the half-open bit range [start, end)
// counted from the most significant bit. elem is the element width for
// arrays, 0 for scalars.
type bitSpan struct {
	name  string
	start int
	end   int
	elem  int
}

// Bitfield is a record type that splits one unsigned integer primitive into
// bit fields. Fields are laid out from the most significant bit down
// regardless of the base primitive's byte order, need not align to byte
// boundaries, and get no padding unless declared.
type Bitfield struct {
	name  string
	base  *Primitive
	p     *bitfieldParser
	spans []bitSpan

	formatters      map[string]FormatFunc
	listFormatters  map[string]FormatFunc
	structFormatter StructFormatFunc
}

// DefineBitfield declares a bit field record over an unsigned integer
// primitive. The declared widths may not exceed the primitive's width; spare
// low bits read and pack as zero.
//
// Only the Init, Prepack, Extend and Formatter options apply; others are
// ignored with a warning.
func DefineBitfield(name string, base *Primitive, fields []Bits, opts ...Options) *Bitfield {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if base == nil || base.kind != KindUnsigned {
		panic(errors.Definition(name, "bit fields need an unsigned integer base primitive"))
	}
	warnUnsupported(name, o, "Init", "Prepack", "Extend", "Formatter")

	d := &Bitfield{
		name:            name,
		base:            base,
		structFormatter: o.Formatter,
		formatters:      make(map[string]FormatFunc),
		listFormatters:  make(map[string]FormatFunc),
	}
	start := 0
	for i, f := range fields {
		if f.Width < 1 {
			panic(errors.Definition(name, "bit field %d must be at least one bit wide", i))
		}
		if f.Count < 0 {
			panic(errors.Definition(name, "bit field %d has a negative element count", i))
		}
		switch {
		case f.Name == "":
			n := 1
			if f.Count > 0 {
				n = f.Count
			}
			start += f.Width * n
		case f.Count > 0:
			d.spans = append(d.spans, bitSpan{name: f.Name, start: start, end: start + f.Width*f.Count, elem: f.Width})
			start += f.Width * f.Count
		default:
			d.spans = append(d.spans, bitSpan{name: f.Name, start: start, end: start + f.Width})
			start += f.Width
		}
	}
	if minBytes := (start + 7) / 8; minBytes > base.width {
		panic(errors.Definition(name, "bit fields need %d bytes, the base type has only %d", minBytes, base.width))
	}
	for k, v := range o.Extend {
		if strings.Contains(k, ".") {
			panic(errors.Definition(name, "cannot extend a bit field with the property path %q", k))
		}
		if ff, ok := v.(fieldFormatter); ok {
			if fn := ff.dumpFormatter(); fn != nil {
				d.formatters[k] = fn
			}
		}
		if at, ok := v.(*ArrayType); ok {
			if ff, ok := at.elem.(fieldFormatter); ok {
				if fn := ff.dumpFormatter(); fn != nil {
					d.listFormatters[k] = fn
				}
			}
		}
	}
	d.p = &bitfieldParser{
		parserCore: parserCore{
			padding:     1,
			initfunc:    o.Init,
			prepackfunc: o.Prepack,
			owner:       d,
		},
		base:  base.p,
		spans: d.spans,
	}
	return d
}

func (t *Bitfield) Name() string { return t.name }

func (t *Bitfield) String() string {
	if t.name != "" {
		return t.name
	}
	return "bitfield"
}

func (t *Bitfield) valueParser() parser { return t.p }

func (t *Bitfield) inlineLayout() *inlineInfo { return nil }

func (t *Bitfield) extraCapable() bool { return false }

func (t *Bitfield) dumpFormatters() (map[string]FormatFunc, map[string]FormatFunc) {
	return t.formatters, t.listFormatters
}

// Parse decodes one value from the head of data.
func (t *Bitfield) Parse(data []byte) (*Struct, int, error) {
	v, n, err := t.p.parse(data, nil)
	if err != nil {
		return nil, 0, err
	}
	return v.(*Struct), n, nil
}

// Create decodes a value from exactly data, which must be exactly as wide as
// the base primitive.
func (t *Bitfield) Create(data []byte) (*Struct, error) {
	v, err := t.p.create(data, nil)
	if err != nil {
		return nil, err
	}
	return v.(*Struct), nil
}

// New instantiates the bit field record with all fields zero, runs the init
// hook, then applies the given overrides in order.
func (t *Bitfield) New(vals ...Values) *Struct {
	s := t.p.newValue(nil).(*Struct)
	applyValues(s, vals)
	return s
}

// Dump converts a value into an ordered primitive-only map. See the
// package-level Dump.
func (t *Bitfield) Dump(v *Struct, opts ...DumpOptions) *ordereddict.Dict {
	d, _ := Dump(v, opts...).(*ordereddict.Dict)
	return d
}

type bitfieldParser struct {
	parserCore
	base  *primParser
	spans []bitSpan
}

// assign splits inner into the declared fields and sets them on the target,
// so an anonymous bit field member embeds into its enclosing record.
func (p *bitfieldParser) assign(s *Struct, inner uint64, totalBits int) {
	for _, sp := range p.spans {
		if sp.elem > 0 {
			vals := make([]uint64, 0, (sp.end-sp.start)/sp.elem)
			for b := sp.start; b < sp.end; b += sp.elem {
				vals = append(vals, wire.Bits(inner, totalBits, b, sp.elem))
			}
			s.Set(sp.name, vals)
		} else {
			s.Set(sp.name, wire.Bits(inner, totalBits, sp.start, sp.end-sp.start))
		}
	}
}

func (p *bitfieldParser) parseLayer(data []byte, inlineParent *Struct) (*Struct, int, error) {
	v, n, err := p.base.parse(data, nil)
	if err != nil {
		return nil, 0, err
	}
	s := newStruct(p, inlineParent)
	p.assign(s, v.(uint64), n*8)
	s.setExtraBytes(nil)
	return s, n, nil
}

func (p *bitfieldParser) unpack(data []byte, s *Struct) ([]byte, error) {
	v, err := p.base.create(data, nil)
	if err != nil {
		return nil, err
	}
	p.assign(s, v.(uint64), len(data)*8)
	return data[len(data):], nil
}

func (p *bitfieldParser) pack(s *Struct) ([]byte, error) {
	totalBits := p.base.t.width * 8
	var inner uint64
	for _, sp := range p.spans {
		v, ok := s.Get(sp.name)
		if !ok {
			return nil, errors.FieldMissing(errors.PhasePack, nil, sp.name)
		}
		if sp.elem > 0 {
			n, ok := canonLen(v)
			if !ok {
				return nil, errors.BadValue(errors.PhasePack, []string{sp.name}, v, "bit field array needs a slice, got %T", v)
			}
			for i, b := 0, sp.start; b < sp.end && i < n; i, b = i+1, b+sp.elem {
				u, ok := asUint64(canonIndex(v, i))
				if !ok {
					return nil, errors.BadValue(errors.PhasePack, []string{sp.name}, v, "bit field element %d is not an integer", i)
				}
				inner = wire.SetBits(inner, totalBits, b, sp.elem, u)
			}
		} else {
			u, ok := asUint64(v)
			if !ok {
				return nil, errors.BadValue(errors.PhasePack, []string{sp.name}, v, "bit field needs an integer, got %T", v)
			}
			inner = wire.SetBits(inner, totalBits, sp.start, sp.end-sp.start, u)
		}
	}
	return p.base.tobytes(inner, true)
}

func (p *bitfieldParser) newLayer(inlineParent *Struct) *Struct {
	s := newStruct(p, inlineParent)
	p.assign(s, 0, p.base.t.width*8)
	s.setExtraBytes(nil)
	return s
}

func (p *bitfieldParser) layerSize(*Struct) int { return p.base.t.width }

func (p *bitfieldParser) prepackLayer(s *Struct) error {
	if p.prepackfunc != nil {
		return p.prepackfunc(s)
	}
	return nil
}

func (p *bitfieldParser) parse(data []byte, ip *Struct) (any, int, error) {
	return parseValue(p, data, ip)
}

func (p *bitfieldParser) create(data []byte, ip *Struct) (any, error) {
	return createValue(p, data, ip)
}

func (p *bitfieldParser) newValue(ip *Struct) any { return newValueOf(p, ip) }

func (p *bitfieldParser) sizeof(v any) int { return structSizeof(v) }

func (p *bitfieldParser) paddingSize(v any) int { return structPaddingSize(p, v) }

func (p *bitfieldParser) tobytes(v any, skipPrepack bool) ([]byte, error) {
	return structToBytes(v, skipPrepack)
}
