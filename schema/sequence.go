package schema

import (
	"github.com/structwire/structwire/errors"
)

// seqMember is one compiled entry of a sequenced record. Array members keep
// the element parser and loop it; anonymous members are embedded records
// whose fields join the root namespace.
type seqMember struct {
	p     parser
	name  string // "" for anonymous members
	array bool
	count int // fixed element count; 0 only on the variable trailing member
}

// sequencedParser runs an ordered list of sub-parsers. The optional trailing
// extra member greedily consumes whatever bytes the declared size (or the
// create range) leaves after the fixed members.
type sequencedParser struct {
	parserCore
	members  []seqMember
	extra    *seqMember
	sizefunc SizeFunc
}

// parseInner decodes the member sequence into s. With useAll the whole buffer
// belongs to this record; otherwise the declared size function bounds it and
// without one the record ends with its last fixed member.
func (p *sequencedParser) parseInner(data []byte, s *Struct, useAll bool) (int, error) {
	start := 0
	for _, m := range p.members {
		switch {
		case m.array:
			vals := make([]any, 0, m.count)
			for i := 0; i < m.count; i++ {
				v, n, err := m.p.parse(advance(data, start), nil)
				if err != nil {
					return 0, err
				}
				vals = append(vals, v)
				start += n
			}
			s.Set(m.name, makeCanonSlice(parserKind(m.p), vals))
		case m.name == "":
			v, n, err := m.p.parse(advance(data, start), s.target)
			if err != nil {
				return 0, err
			}
			s.seqs = append(s.seqs, v.(*Struct))
			start += n
		default:
			v, n, err := m.p.parse(advance(data, start), nil)
			if err != nil {
				return 0, err
			}
			s.Set(m.name, v)
			start += n
		}
	}
	size := start
	if useAll {
		size = len(data)
	} else if p.sizefunc != nil {
		n, err := p.sizefunc(s)
		if err != nil {
			return 0, err
		}
		if n < start {
			return 0, errors.BadFormat(errors.PhaseParse, p.typeName(), "struct size should be at least %d bytes, got %d", start, n)
		}
		if len(data) < n {
			return 0, errors.ErrNeedMore
		}
		size = n
	}
	window := data[min(start, size):size]
	if p.extra == nil {
		s.setExtraBytes(append([]byte(nil), window...))
		return size, nil
	}
	switch {
	case p.extra.array:
		var vals []any
		off := 0
		for off < len(window) {
			v, n, err := p.extra.p.parse(window[off:], nil)
			if err != nil {
				if errors.IsNeedMore(err) {
					// a trailing partial element is discarded
					break
				}
				return 0, err
			}
			vals = append(vals, v)
			off += n
		}
		s.Set(p.extra.name, makeCanonSlice(parserKind(p.extra.p), vals))
	case p.extra.name == "":
		v, err := p.extra.p.create(window, s.target)
		if err != nil {
			return 0, err
		}
		s.seqs = append(s.seqs, v.(*Struct))
	default:
		v, err := p.extra.p.create(window, nil)
		if err != nil {
			return 0, err
		}
		s.Set(p.extra.name, v)
	}
	return size, nil
}

func (p *sequencedParser) parseLayer(data []byte, inlineParent *Struct) (*Struct, int, error) {
	s := newStruct(p, inlineParent)
	size, err := p.parseInner(data, s, false)
	if err != nil {
		return nil, 0, err
	}
	return s, size, nil
}

func (p *sequencedParser) unpack(data []byte, s *Struct) ([]byte, error) {
	if _, err := p.parseInner(data, s, true); err != nil {
		if errors.IsNeedMore(err) {
			return nil, errors.Corrupted(p.typeName())
		}
		return nil, err
	}
	var rest []byte
	if s.extraSet {
		rest = s.extra
		s.clearExtra()
	}
	return rest, nil
}

func (p *sequencedParser) pack(s *Struct) ([]byte, error) {
	var out []byte
	seqIdx := 0
	appendMember := func(mp parser, v any, skipPrepack bool) error {
		b, err := mp.tobytes(v, skipPrepack)
		if err != nil {
			return err
		}
		out = append(out, b...)
		return nil
	}
	for _, m := range p.members {
		switch {
		case m.array:
			v, _ := s.Get(m.name)
			n, _ := canonLen(v)
			for i := 0; i < m.count; i++ {
				ev := any(nil)
				if i < n {
					ev = canonIndex(v, i)
				} else {
					ev = m.p.newValue(nil)
				}
				if err := appendMember(m.p, ev, false); err != nil {
					return nil, err
				}
			}
		case m.name == "":
			if seqIdx >= len(s.seqs) {
				return nil, errors.BadValue(errors.PhasePack, nil, p.typeName(), "embedded record %d is missing", seqIdx)
			}
			if err := appendMember(m.p, s.seqs[seqIdx], true); err != nil {
				return nil, err
			}
			seqIdx++
		default:
			v, ok := s.Get(m.name)
			if !ok {
				return nil, errors.FieldMissing(errors.PhasePack, nil, m.name)
			}
			if err := appendMember(m.p, v, false); err != nil {
				return nil, err
			}
		}
	}
	if p.extra == nil {
		return out, nil
	}
	switch {
	case p.extra.array:
		v, ok := s.Get(p.extra.name)
		if !ok {
			return nil, errors.FieldMissing(errors.PhasePack, nil, p.extra.name)
		}
		n, _ := canonLen(v)
		for i := 0; i < n; i++ {
			if err := appendMember(p.extra.p, canonIndex(v, i), false); err != nil {
				return nil, err
			}
		}
	case p.extra.name == "":
		if seqIdx >= len(s.seqs) {
			return nil, errors.BadValue(errors.PhasePack, nil, p.typeName(), "embedded record %d is missing", seqIdx)
		}
		if err := appendMember(p.extra.p, s.seqs[seqIdx], true); err != nil {
			return nil, err
		}
	default:
		v, ok := s.Get(p.extra.name)
		if !ok {
			return nil, errors.FieldMissing(errors.PhasePack, nil, p.extra.name)
		}
		if err := appendMember(p.extra.p, v, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *sequencedParser) newLayer(inlineParent *Struct) *Struct {
	s := newStruct(p, inlineParent)
	for _, m := range p.members {
		switch {
		case m.array:
			vals := make([]any, m.count)
			for i := range vals {
				vals[i] = m.p.newValue(nil)
			}
			s.Set(m.name, makeCanonSlice(parserKind(m.p), vals))
		case m.name == "":
			s.seqs = append(s.seqs, m.p.newValue(s.target).(*Struct))
		default:
			s.Set(m.name, m.p.newValue(nil))
		}
	}
	if p.extra == nil {
		s.setExtraBytes(nil)
		return s
	}
	switch {
	case p.extra.array:
		s.Set(p.extra.name, makeCanonSlice(parserKind(p.extra.p), nil))
	case p.extra.name == "":
		s.seqs = append(s.seqs, p.extra.p.newValue(s.target).(*Struct))
	default:
		s.Set(p.extra.name, p.extra.p.newValue(nil))
	}
	return s
}

func (p *sequencedParser) layerSize(s *Struct) int {
	size := 0
	seqIdx := 0
	for _, m := range p.members {
		switch {
		case m.array:
			v, _ := s.Get(m.name)
			n, _ := canonLen(v)
			for i := 0; i < m.count; i++ {
				if i < n {
					size += m.p.paddingSize(canonIndex(v, i))
				} else {
					size += m.p.paddingSize(m.p.newValue(nil))
				}
			}
		case m.name == "":
			if seqIdx < len(s.seqs) {
				size += m.p.paddingSize(s.seqs[seqIdx])
			}
			seqIdx++
		default:
			if v, ok := s.Get(m.name); ok {
				size += m.p.paddingSize(v)
			} else {
				size += m.p.paddingSize(m.p.newValue(nil))
			}
		}
	}
	if p.extra == nil {
		return size
	}
	switch {
	case p.extra.array:
		v, _ := s.Get(p.extra.name)
		n, _ := canonLen(v)
		for i := 0; i < n; i++ {
			size += p.extra.p.paddingSize(canonIndex(v, i))
		}
	case p.extra.name == "":
		if seqIdx < len(s.seqs) {
			size += p.extra.p.paddingSize(s.seqs[seqIdx])
		}
	default:
		if v, ok := s.Get(p.extra.name); ok {
			size += p.extra.p.paddingSize(v)
		}
	}
	return size
}

// prepackLayer runs the embedded records' full prepack chains before the
// record's own hook, so a size-storing hook sees final embedded sizes.
func (p *sequencedParser) prepackLayer(s *Struct) error {
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

func (p *sequencedParser) parse(data []byte, ip *Struct) (any, int, error) {
	return parseValue(p, data, ip)
}

func (p *sequencedParser) create(data []byte, ip *Struct) (any, error) {
	return createValue(p, data, ip)
}

func (p *sequencedParser) newValue(ip *Struct) any { return newValueOf(p, ip) }

func (p *sequencedParser) sizeof(v any) int { return structSizeof(v) }

func (p *sequencedParser) paddingSize(v any) int { return structPaddingSize(p, v) }

func (p *sequencedParser) tobytes(v any, skipPrepack bool) ([]byte, error) {
	return structToBytes(v, skipPrepack)
}
