package schema

import (
	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema/internal/wire"
)

// parser is the compiled codec behind a type. Value parsers (primitives,
// arrays, byte strings) produce plain Go values, record parsers produce
// *Struct. All parsers are immutable after the defining type is built.
type parser interface {
	// parse decodes one value from the head of data and returns the padded
	// number of bytes it consumed. It returns errors.ErrNeedMore when data
	// is too short; the caller retries with a longer buffer.
	parse(data []byte, inlineParent *Struct) (v any, size int, err error)

	// create decodes a value from exactly data, consuming every byte.
	// Truncated input is an error here, never a need-more signal.
	create(data []byte, inlineParent *Struct) (any, error)

	// newValue builds a default-initialized value.
	newValue(inlineParent *Struct) any

	// sizeof returns the value's exact serialized size.
	sizeof(v any) int

	// paddingSize returns sizeof rounded up to the parser's alignment.
	paddingSize(v any) int

	// tobytes serializes a value produced by this parser.
	tobytes(v any, skipPrepack bool) ([]byte, error)
}

// structParser is the extended contract of parsers producing record layers.
// The shared chain algorithms (parseValue, createValue, dispatch) drive these
// entry points.
type structParser interface {
	parser

	core() *parserCore

	// parseLayer decodes one unpadded layer from the head of data.
	parseLayer(data []byte, inlineParent *Struct) (*Struct, int, error)

	// unpack decodes one layer from data and returns the bytes left over
	// for the next layer of the chain.
	unpack(data []byte, s *Struct) ([]byte, error)

	// pack serializes one layer, excluding residual bytes and padding.
	pack(s *Struct) ([]byte, error)

	// newLayer builds one default-filled layer.
	newLayer(inlineParent *Struct) *Struct

	// layerSize returns the serialized size of one layer.
	layerSize(s *Struct) int

	// prepackLayer runs the layer's pre-serialization hooks.
	prepackLayer(s *Struct) error
}

// parserCore carries the structural options shared by all record parsers and
// the subtype dispatch tables.
type parserCore struct {
	padding     int
	base        structParser
	criteria    CriteriaFunc
	classifier  ClassifierFunc
	initfunc    InitFunc
	prepackfunc PrepackFunc
	owner       Type

	subclasses []structParser
	subindices map[uint64]structParser
}

func (c *parserCore) core() *parserCore { return c }

func (c *parserCore) typeName() string {
	if c.owner != nil {
		return c.owner.Name()
	}
	return ""
}

// prepackLayer is the default hook runner; parsers with embedded records
// override it.
func (c *parserCore) prepackLayer(s *Struct) error {
	if c.prepackfunc != nil {
		return c.prepackfunc(s)
	}
	return nil
}

// registerSubtype wires a subtype parser into its base's dispatch tables.
// Registration is static: it happens while the subtype is defined.
func registerSubtype(p structParser, classifyBy []uint64) {
	c := p.core()
	if c.base == nil {
		return
	}
	bc := c.base.core()
	bc.subclasses = append(bc.subclasses, p)
	if len(classifyBy) > 0 {
		if bc.subindices == nil {
			bc.subindices = make(map[uint64]structParser)
		}
		for _, v := range classifyBy {
			bc.subindices[v] = p
		}
	}
}

// parseValue runs the full parse protocol of a record parser: delegate to the
// base chain root, decode one layer, dispatch subtypes, then align the
// consumed size.
func parseValue(p structParser, data []byte, inlineParent *Struct) (any, int, error) {
	c := p.core()
	if c.base != nil {
		return c.base.parse(data, inlineParent)
	}
	s, size, err := p.parseLayer(data, inlineParent)
	if err != nil {
		return nil, 0, err
	}
	if err := dispatch(s); err != nil {
		return nil, 0, err
	}
	return s, wire.Pad(size, c.padding), nil
}

// createValue decodes a record from an exact byte range.
func createValue(p structParser, data []byte, inlineParent *Struct) (any, error) {
	c := p.core()
	if c.base != nil {
		return c.base.create(data, inlineParent)
	}
	s := newStruct(p, inlineParent)
	if err := unpackChain(s, data); err != nil {
		return nil, err
	}
	if err := dispatch(s); err != nil {
		return nil, err
	}
	return s, nil
}

// newValueOf builds a default record: base layers first so their initializers
// run before the derived ones.
func newValueOf(p structParser, inlineParent *Struct) any {
	c := p.core()
	var s *Struct
	if c.base != nil {
		s = c.base.newValue(inlineParent).(*Struct)
		s.extend(p.newLayer(s.target))
	} else {
		s = p.newLayer(inlineParent)
	}
	if c.initfunc != nil {
		c.initfunc(s)
	}
	return s
}

// dispatch narrows a freshly decoded value through the registered subtypes.
// The classifier table is consulted first, then the criteria predicates in
// registration order. After a layer attaches, its own subtypes are checked in
// turn; the loop ends at the first layer with no match. Dispatch starts at the
// chain's terminal layer, so a parser that attaches layers itself (a variant)
// hands over where it stopped.
func dispatch(s *Struct) error {
	cp := s.terminal().parser.core()
	for {
		var subp structParser
		if cp.classifier != nil {
			subp = cp.subindices[cp.classifier(s.target)]
		}
		if subp == nil {
			for _, sc := range cp.subclasses {
				if crit := sc.core().criteria; crit != nil && crit(s.target) {
					subp = sc
					break
				}
			}
		}
		if subp == nil {
			return nil
		}
		if err := attachSub(s, subp); err != nil {
			return err
		}
		cp = subp.core()
	}
}

func structSizeof(v any) int {
	s, ok := v.(*Struct)
	if !ok {
		return 0
	}
	return s.RealSize()
}

func structPaddingSize(p structParser, v any) int {
	s, ok := v.(*Struct)
	if !ok {
		return 0
	}
	return wire.Pad(s.RealSize(), p.core().padding)
}

func structToBytes(v any, skipPrepack bool) ([]byte, error) {
	s, ok := v.(*Struct)
	if !ok {
		return nil, errors.BadValue(errors.PhasePack, nil, "", "expected a record value, got %T", v)
	}
	return s.toBytes(skipPrepack)
}

// advance slices off n consumed bytes, clamping when padding rounded past the
// end of the buffer.
func advance(data []byte, n int) []byte {
	if n >= len(data) {
		return nil
	}
	return data[n:]
}
