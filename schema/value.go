package schema

import (
	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema/internal/wire"
)

// Struct is a decoded or constructed record instance. Fields of a record and
// of every record embedded in it live in one shared namespace owned by the
// outermost value; subtype layers attached by dispatch form a linear chain
// hanging off the root. Struct values are mutable and not safe for concurrent
// use.
type Struct struct {
	parser structParser
	target *Struct

	fields map[string]any
	order  []string

	// sub is the next narrower subtype layer, nil on the terminal layer.
	sub *Struct

	// seqs holds anonymous embedded records in declaration order.
	seqs []*Struct

	// extra holds residual bytes; only the terminal layer may carry them.
	extra    []byte
	extraSet bool

	// embedded maps declared type names of anonymous records to their slot,
	// maintained on the root value only.
	embedded map[string]embedRef
}

type embedRef struct {
	holder *Struct
	index  int
}

// embedIndexer is implemented by types whose anonymous members can be
// replaced after construction.
type embedIndexer interface {
	embeddedIndexes() map[string]int
}

func newStruct(p structParser, inlineParent *Struct) *Struct {
	s := &Struct{parser: p, fields: make(map[string]any)}
	if inlineParent == nil {
		s.target = s
	} else {
		s.target = inlineParent.target
	}
	if owner := p.core().owner; owner != nil {
		if ei, ok := owner.(embedIndexer); ok {
			registerEmbedded(s, ei.embeddedIndexes())
		}
	}
	return s
}

func registerEmbedded(s *Struct, names map[string]int) {
	if len(names) == 0 {
		return
	}
	root := s.target
	if root.embedded == nil {
		root.embedded = make(map[string]embedRef)
	}
	for name, idx := range names {
		root.embedded[name] = embedRef{holder: s, index: idx}
	}
}

// newContainer creates a plain field container used for nested paths inside
// flattened segments. It has no parser and owns its own fields.
func newContainer() *Struct {
	s := &Struct{fields: make(map[string]any)}
	s.target = s
	return s
}

// Get returns a named field from the record's shared namespace.
func (s *Struct) Get(name string) (any, bool) {
	v, ok := s.target.fields[name]
	return v, ok
}

// Set stores a named field in the record's shared namespace.
func (s *Struct) Set(name string, v any) {
	s.target.setOwn(name, v)
}

func (s *Struct) setOwn(name string, v any) {
	if _, ok := s.fields[name]; !ok {
		s.order = append(s.order, name)
	}
	s.fields[name] = v
}

// GetPath reads a field through nested containers.
func (s *Struct) GetPath(path ...string) (any, bool) {
	var v any = s.target
	for _, leg := range path {
		st, ok := v.(*Struct)
		if !ok {
			return nil, false
		}
		v, ok = st.target.fields[leg]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// SetPath stores a field through nested containers, creating intermediate
// containers as needed.
func (s *Struct) SetPath(v any, path ...string) {
	holder := s.target
	for _, leg := range path[:len(path)-1] {
		next, ok := holder.fields[leg].(*Struct)
		if !ok {
			next = newContainer()
			holder.setOwn(leg, next)
		}
		holder = next
	}
	holder.setOwn(path[len(path)-1], v)
}

// Uint returns a named unsigned integer field, or 0 when it is absent or has
// another type.
func (s *Struct) Uint(name string) uint64 {
	v, _ := s.Get(name)
	n, _ := asUint64(v)
	return n
}

// Int returns a named signed integer field, or 0 when absent.
func (s *Struct) Int(name string) int64 {
	v, _ := s.Get(name)
	n, _ := asInt64(v)
	return n
}

// Bytes returns a named byte field, or nil when absent.
func (s *Struct) Bytes(name string) []byte {
	v, _ := s.Get(name)
	b, _ := v.([]byte)
	return b
}

// Record returns a named nested record, or nil when absent.
func (s *Struct) Record(name string) *Struct {
	v, _ := s.Get(name)
	st, _ := v.(*Struct)
	return st
}

// Uints returns a named unsigned integer array field, or nil when absent.
func (s *Struct) Uints(name string) []uint64 {
	v, _ := s.Get(name)
	ns, _ := v.([]uint64)
	return ns
}

// Records returns a named record array field, or nil when absent.
func (s *Struct) Records(name string) []*Struct {
	v, _ := s.Get(name)
	sts, _ := v.([]*Struct)
	return sts
}

// Has reports whether the named field is present. Optional fields skipped by
// their predicate are absent rather than nil.
func (s *Struct) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

func (s *Struct) terminal() *Struct {
	cur := s
	for cur.sub != nil {
		cur = cur.sub
	}
	return cur
}

// TypeOf returns the most-derived declared type along the value's extension
// chain, or nil for plain containers.
func (s *Struct) TypeOf() Type {
	var t Type
	for cur := s; cur != nil; cur = cur.sub {
		if cur.parser != nil {
			if owner := cur.parser.core().owner; owner != nil {
				t = owner
			}
		}
	}
	return t
}

func (s *Struct) layerType() Type {
	if s.parser == nil {
		return nil
	}
	return s.parser.core().owner
}

// Residual returns the unconsumed trailing bytes held by the terminal layer.
func (s *Struct) Residual() []byte {
	return s.terminal().extra
}

// SetResidual replaces the terminal layer's residual bytes.
func (s *Struct) SetResidual(b []byte) {
	s.terminal().setExtraBytes(b)
}

func (s *Struct) setExtraBytes(b []byte) {
	s.extra = b
	s.extraSet = true
}

func (s *Struct) clearExtra() {
	s.extra = nil
	s.extraSet = false
}

// extend appends a subtype layer at the end of the chain and drops the
// receiver's own residual bytes.
func (s *Struct) extend(inner *Struct) {
	s.terminal().sub = inner
	s.clearExtra()
}

// attachSub narrows the chain's terminal layer by one subtype: the subtype
// parser consumes the terminal's residual bytes.
func attachSub(s *Struct, p structParser) error {
	t := s.terminal()
	inner := newStruct(p, s.target)
	if err := unpackChain(inner, t.extra); err != nil {
		return err
	}
	t.sub = inner
	t.clearExtra()
	return nil
}

// Extend forces a declared subtype layer onto the value: the subtype's parser
// consumes the value's residual bytes. Extending a value that has no residual
// bytes is a no-op.
func (s *Struct) Extend(t Type) error {
	term := s.terminal()
	if !term.extraSet || len(term.extra) == 0 {
		return nil
	}
	sp, ok := t.valueParser().(structParser)
	if !ok {
		return errors.BadValue(errors.PhaseCreate, nil, t.String(), "type %s cannot extend a record", t)
	}
	return attachSub(term, sp)
}

// unpackChain distributes data across the value's layers. Each layer's parser
// consumes its own bytes and returns the rest; bytes left after the terminal
// layer become its residual. A layer whose unpack attaches new sub layers
// (variant dispatch) finishes the chain itself.
func unpackChain(s *Struct, data []byte) error {
	current := s
	for current != nil {
		hadSub := current.sub != nil
		rest, err := current.parser.unpack(data, current)
		if err != nil {
			return err
		}
		data = rest
		if !hadSub {
			if current.sub == nil {
				current.setExtraBytes(data)
			}
			return nil
		}
		current = current.sub
	}
	return nil
}

func packChain(s *Struct) ([]byte, error) {
	var out []byte
	last := s
	for current := s; current != nil; current = current.sub {
		b, err := current.parser.pack(current)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		last = current
	}
	return append(out, last.extra...), nil
}

func prepackChain(s *Struct) error {
	for current := s; current != nil; current = current.sub {
		if err := current.parser.prepackLayer(current); err != nil {
			return err
		}
	}
	return nil
}

// RealSize returns the value's exact serialized size before alignment.
func (s *Struct) RealSize() int {
	if s.parser == nil {
		return 0
	}
	size := 0
	last := s
	for current := s; current != nil; current = current.sub {
		size += current.parser.layerSize(current)
		last = current
	}
	return size + len(last.extra)
}

// PaddedSize returns RealSize rounded up to the schema's alignment boundary.
func (s *Struct) PaddedSize() int {
	if s.parser == nil {
		return 0
	}
	return wire.Pad(s.RealSize(), s.parser.core().padding)
}

func (s *Struct) toBytes(skipPrepack bool) ([]byte, error) {
	if s.parser == nil {
		return nil, errors.BadValue(errors.PhasePack, nil, "", "plain container cannot be serialized")
	}
	if !skipPrepack {
		if err := prepackChain(s); err != nil {
			return nil, err
		}
	}
	data, err := packChain(s)
	if err != nil {
		return nil, err
	}
	return wire.ZeroPad(data, wire.Pad(len(data), s.parser.core().padding)), nil
}

// ToBytes serializes the value: prepack hooks run through the whole extension
// chain first, then each layer encodes in chain order followed by the
// terminal residual bytes and alignment padding.
func (s *Struct) ToBytes() ([]byte, error) {
	return s.toBytes(false)
}

// Copy serializes and reparses the value, so the copy shares no mutable
// storage with the original.
func (s *Struct) Copy() (*Struct, error) {
	if s.parser == nil {
		return nil, errors.BadValue(errors.PhaseCreate, nil, "", "plain container cannot be copied")
	}
	data, err := s.ToBytes()
	if err != nil {
		return nil, err
	}
	v, err := createValue(s.parser, data, nil)
	if err != nil {
		return nil, err
	}
	return v.(*Struct), nil
}

// Embedded returns the anonymous record registered under a declared type
// name.
func (s *Struct) Embedded(name string) (*Struct, bool) {
	ref, ok := s.target.embedded[name]
	if !ok {
		return nil, false
	}
	return ref.holder.seqs[ref.index], true
}

// ReplaceEmbedded swaps an anonymous record for a freshly instantiated value
// of a richer declared subtype, without reparsing the whole value.
func (s *Struct) ReplaceEmbedded(name string, t Type) error {
	root := s.target
	ref, ok := root.embedded[name]
	if !ok {
		return errors.FieldUnknown(errors.PhaseCreate, nil, name)
	}
	sp, ok := t.valueParser().(structParser)
	if !ok {
		return errors.BadValue(errors.PhaseCreate, []string{name}, t.String(), "type %s cannot replace an embedded record", t)
	}
	nv := newValueOf(sp, root)
	st, ok := nv.(*Struct)
	if !ok {
		return errors.BadValue(errors.PhaseCreate, []string{name}, t.String(), "type %s does not instantiate a record", t)
	}
	ref.holder.seqs[ref.index] = st
	return nil
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	case int:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case int32:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case int16:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case int8:
		return uint64(n), true
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	}
	return 0, false
}
