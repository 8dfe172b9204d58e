package schema

import (
	"github.com/Velocidex/ordereddict"

	"github.com/structwire/structwire/errors"
)

// Variant is the root of an alternate subtype hierarchy. Unlike a record with
// a Size option it has no notion of its own total size: an optional header is
// parsed first, then the matched subtype determines how many bytes the value
// takes. With no match the value stays at the header alone.
//
// A variant cannot be parsed with forward compatibility: data of an
// unregistered subtype is indistinguishable from corruption. Prefer sized
// records for new formats and keep variants for wire formats that already
// exist.
type Variant struct {
	name   string
	header Type
	p      *variantParser

	formatters     map[string]FormatFunc
	listFormatters map[string]FormatFunc
}

// DefineVariant declares a variant type. header, usually a record, is embedded
// and decoded before subtype dispatch; nil means dispatch starts at the first
// byte. Subtypes declare the variant as their Base. Only the Classifier,
// Prepack and Padding options apply here.
func DefineVariant(name string, header Type, opts ...Options) *Variant {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if name == "" {
		Logger().Warn("variant type is not named; it cannot be referenced or replaced by name")
	}
	warnUnsupported(name, o, "Classifier", "Prepack", "Padding")

	defineMu.Lock()
	defer defineMu.Unlock()

	padding := 1
	if o.Padding > 0 {
		padding = o.Padding
	}
	d := &Variant{
		name:           name,
		header:         header,
		formatters:     make(map[string]FormatFunc),
		listFormatters: make(map[string]FormatFunc),
	}
	var hp structParser
	if header != nil {
		p, ok := header.valueParser().(structParser)
		if !ok {
			panic(errors.Definition(name, "variant header type %s is not a record type", header))
		}
		hp = p
		if fc, ok := header.(formatterCarrier); ok {
			fs, lfs := fc.dumpFormatters()
			for k, v := range fs {
				d.formatters[k] = v
			}
			for k, v := range lfs {
				d.listFormatters[k] = v
			}
		}
	}
	d.p = &variantParser{
		parserCore: parserCore{
			padding:     padding,
			classifier:  o.Classifier,
			prepackfunc: o.Prepack,
			owner:       d,
		},
		header: hp,
	}
	return d
}

func (t *Variant) Name() string { return t.name }

func (t *Variant) String() string {
	if t.name != "" {
		return t.name
	}
	return "variant"
}

func (t *Variant) valueParser() parser { return t.p }

func (t *Variant) inlineLayout() *inlineInfo { return nil }

func (t *Variant) extraCapable() bool { return false }

func (t *Variant) dumpFormatters() (map[string]FormatFunc, map[string]FormatFunc) {
	return t.formatters, t.listFormatters
}

// Parse decodes one value from the head of data: the header, then whichever
// registered subtype the dispatch selects.
func (t *Variant) Parse(data []byte) (*Struct, int, error) {
	v, n, err := t.p.parse(data, nil)
	if err != nil {
		return nil, 0, err
	}
	return v.(*Struct), n, nil
}

// Create decodes a value from exactly data. The matched subtype consumes all
// bytes after the header.
func (t *Variant) Create(data []byte) (*Struct, error) {
	v, err := t.p.create(data, nil)
	if err != nil {
		return nil, err
	}
	return v.(*Struct), nil
}

// New instantiates the variant with a default header and no subtype layer,
// then applies the given overrides in order.
func (t *Variant) New(vals ...Values) *Struct {
	s := t.p.newValue(nil).(*Struct)
	applyValues(s, vals)
	return s
}

// Dump converts a value into an ordered primitive-only map. See the
// package-level Dump.
func (t *Variant) Dump(v *Struct, opts ...DumpOptions) *ordereddict.Dict {
	d, _ := Dump(v, opts...).(*ordereddict.Dict)
	return d
}

type variantParser struct {
	parserCore
	header structParser
}

// selectSubtype runs the variant's own dispatch: classifier table first, then
// criteria predicates in registration order.
func (p *variantParser) selectSubtype(s *Struct) structParser {
	if p.classifier != nil {
		if subp := p.subindices[p.classifier(s.target)]; subp != nil {
			return subp
		}
	}
	for _, sc := range p.subclasses {
		if crit := sc.core().criteria; crit != nil && crit(s.target) {
			return sc
		}
	}
	return nil
}

// parseLayer decodes the header and attaches the matched subtype's first
// layer. The generic dispatch then continues from that layer, so nested
// subtypes resolve the usual way.
func (p *variantParser) parseLayer(data []byte, inlineParent *Struct) (*Struct, int, error) {
	s := newStruct(p, inlineParent)
	start := 0
	if p.header != nil {
		v, n, err := p.header.parse(data, s.target)
		if err != nil {
			return nil, 0, err
		}
		s.seqs = append(s.seqs, v.(*Struct))
		start = n
	}
	subp := p.selectSubtype(s)
	if subp == nil {
		s.setExtraBytes(nil)
		return s, start, nil
	}
	inner, n, err := subp.parseLayer(advance(data, start), s.target)
	if err != nil {
		return nil, 0, err
	}
	s.extend(inner)
	return s, start + n, nil
}

func (p *variantParser) unpack(data []byte, s *Struct) ([]byte, error) {
	start := 0
	if p.header != nil {
		v, n, err := p.header.parse(data, s.target)
		if err != nil {
			if errors.IsNeedMore(err) {
				return nil, errors.Corrupted(p.typeName())
			}
			return nil, err
		}
		s.seqs = append(s.seqs, v.(*Struct))
		start = n
	}
	subp := p.selectSubtype(s)
	if subp == nil {
		return data[min(start, len(data)):], nil
	}
	inner := newStruct(subp, s.target)
	if err := unpackChain(inner, advance(data, start)); err != nil {
		return nil, err
	}
	s.extend(inner)
	return nil, nil
}

// pack encodes the header only; subtype layers encode themselves in chain
// order.
func (p *variantParser) pack(s *Struct) ([]byte, error) {
	if p.header == nil {
		return nil, nil
	}
	if len(s.seqs) == 0 {
		return nil, errors.BadValue(errors.PhasePack, nil, p.typeName(), "variant header is missing")
	}
	return p.header.tobytes(s.seqs[0], true)
}

func (p *variantParser) newLayer(inlineParent *Struct) *Struct {
	s := newStruct(p, inlineParent)
	if p.header != nil {
		s.seqs = append(s.seqs, p.header.newValue(s.target).(*Struct))
	}
	s.setExtraBytes(nil)
	return s
}

func (p *variantParser) layerSize(s *Struct) int {
	if p.header == nil || len(s.seqs) == 0 {
		return 0
	}
	return p.header.paddingSize(s.seqs[0])
}

func (p *variantParser) prepackLayer(s *Struct) error {
	for _, em := range s.seqs {
		if err := prepackChain(em); err != nil {
			return err
		}
	}
	if p.prepackfunc != nil {
		return p.prepackfunc(s)
	}
	return nil
}

func (p *variantParser) parse(data []byte, ip *Struct) (any, int, error) {
	return parseValue(p, data, ip)
}

func (p *variantParser) create(data []byte, ip *Struct) (any, error) {
	return createValue(p, data, ip)
}

func (p *variantParser) newValue(ip *Struct) any { return newValueOf(p, ip) }

func (p *variantParser) sizeof(v any) int { return structSizeof(v) }

func (p *variantParser) paddingSize(v any) int { return structPaddingSize(p, v) }

func (p *variantParser) tobytes(v any, skipPrepack bool) ([]byte, error) {
	return structToBytes(v, skipPrepack)
}
