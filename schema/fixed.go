package schema

import (
	"encoding/binary"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema/internal/wire"
)

// slotKind selects the decoded Go representation of a flattened field.
type slotKind uint8

const (
	slotUnsigned slotKind = iota
	slotSigned
	slotBytes
)

// primSlot describes the flattened layout of a bare primitive. A flattened
// primitive adopts the byte order of whichever fixed segment it lands in.
type primSlot struct {
	kind  slotKind
	width int
}

// slot is one named field inside a fixed segment. Anonymous padding occupies
// no slot: its gap simply stays zero on encode.
type slot struct {
	path   []string
	kind   slotKind
	offset int
	width  int // element width in bytes
	count  int // 0 for scalars, element count for fixed arrays
}

// inlineInfo is a type's flattened layout: either a bare primitive or a fully
// fixed record segment. size includes the type's own trailing padding.
type inlineInfo struct {
	size  int
	prim  *primSlot
	slots []slot
}

func decodeSlot(seg []byte, sl slot, order binary.ByteOrder, s *Struct) {
	if sl.count == 0 {
		s.SetPath(decodeScalar(seg, sl.offset, sl.width, sl.kind, order), sl.path...)
		return
	}
	switch sl.kind {
	case slotUnsigned:
		vs := make([]uint64, sl.count)
		for i := range vs {
			vs[i] = wire.Uint(seg[sl.offset+i*sl.width:sl.offset+(i+1)*sl.width], order)
		}
		s.SetPath(vs, sl.path...)
	case slotSigned:
		vs := make([]int64, sl.count)
		for i := range vs {
			vs[i] = wire.Int(seg[sl.offset+i*sl.width:sl.offset+(i+1)*sl.width], order)
		}
		s.SetPath(vs, sl.path...)
	case slotBytes:
		vs := make([][]byte, sl.count)
		for i := range vs {
			b := seg[sl.offset+i*sl.width : sl.offset+(i+1)*sl.width]
			vs[i] = append([]byte(nil), wire.TrimZeros(b)...)
		}
		s.SetPath(vs, sl.path...)
	}
}

func decodeScalar(seg []byte, off, width int, k slotKind, order binary.ByteOrder) any {
	switch k {
	case slotUnsigned:
		return wire.Uint(seg[off:off+width], order)
	case slotSigned:
		return wire.Int(seg[off:off+width], order)
	default:
		return append([]byte(nil), wire.TrimZeros(seg[off:off+width])...)
	}
}

func encodeSlots(buf []byte, slots []slot, order binary.ByteOrder, s *Struct, typeName string) error {
	for _, sl := range slots {
		v, ok := s.GetPath(sl.path...)
		if !ok {
			return errors.FieldMissing(errors.PhasePack, sl.path[:len(sl.path)-1], sl.path[len(sl.path)-1])
		}
		if err := encodeSlot(buf, sl, order, v, typeName); err != nil {
			return err
		}
	}
	return nil
}

func encodeSlot(buf []byte, sl slot, order binary.ByteOrder, v any, typeName string) error {
	if sl.count == 0 {
		switch sl.kind {
		case slotUnsigned:
			n, ok := asUint64(v)
			if !ok {
				return errors.BadValue(errors.PhasePack, sl.path, typeName, "expected an unsigned integer, got %T", v)
			}
			wire.PutUint(buf[sl.offset:sl.offset+sl.width], order, n)
		case slotSigned:
			n, ok := asInt64(v)
			if !ok {
				return errors.BadValue(errors.PhasePack, sl.path, typeName, "expected a signed integer, got %T", v)
			}
			wire.PutInt(buf[sl.offset:sl.offset+sl.width], order, n)
		case slotBytes:
			b, ok := v.([]byte)
			if !ok {
				return errors.BadValue(errors.PhasePack, sl.path, typeName, "expected bytes, got %T", v)
			}
			copy(buf[sl.offset:sl.offset+sl.width], b)
		}
		return nil
	}
	switch sl.kind {
	case slotUnsigned:
		vs, ok := v.([]uint64)
		if !ok || len(vs) < sl.count {
			return errors.BadValue(errors.PhasePack, sl.path, typeName, "expected %d unsigned integers, got %v", sl.count, v)
		}
		for i := 0; i < sl.count; i++ {
			wire.PutUint(buf[sl.offset+i*sl.width:sl.offset+(i+1)*sl.width], order, vs[i])
		}
	case slotSigned:
		vs, ok := v.([]int64)
		if !ok || len(vs) < sl.count {
			return errors.BadValue(errors.PhasePack, sl.path, typeName, "expected %d signed integers, got %v", sl.count, v)
		}
		for i := 0; i < sl.count; i++ {
			wire.PutInt(buf[sl.offset+i*sl.width:sl.offset+(i+1)*sl.width], order, vs[i])
		}
	case slotBytes:
		vs, ok := v.([][]byte)
		if !ok || len(vs) < sl.count {
			return errors.BadValue(errors.PhasePack, sl.path, typeName, "expected %d byte blocks, got %v", sl.count, v)
		}
		for i := 0; i < sl.count; i++ {
			copy(buf[sl.offset+i*sl.width:sl.offset+(i+1)*sl.width], vs[i])
		}
	}
	return nil
}

// fixedParser decodes and encodes one fixed segment in a single pass. It
// backs both fully flattened records and the anonymous segments between
// non-flattenable fields.
type fixedParser struct {
	parserCore
	order    binary.ByteOrder
	size     int
	slots    []slot
	sizefunc SizeFunc
}

func (p *fixedParser) unpackFixed(seg []byte, s *Struct) {
	for _, sl := range p.slots {
		decodeSlot(seg, sl, p.order, s)
	}
}

func (p *fixedParser) parseLayer(data []byte, inlineParent *Struct) (*Struct, int, error) {
	if len(data) < p.size {
		return nil, 0, errors.ErrNeedMore
	}
	s := newStruct(p, inlineParent)
	p.unpackFixed(data[:p.size], s)
	size := p.size
	if p.sizefunc != nil {
		n, err := p.sizefunc(s)
		if err != nil {
			return nil, 0, err
		}
		if n < p.size {
			return nil, 0, errors.BadFormat(errors.PhaseParse, p.typeName(), "struct size should be at least %d bytes, got %d", p.size, n)
		}
		if len(data) < n {
			return nil, 0, errors.ErrNeedMore
		}
		s.setExtraBytes(append([]byte(nil), data[p.size:n]...))
		size = n
	} else {
		s.setExtraBytes(nil)
	}
	return s, size, nil
}

func (p *fixedParser) unpack(data []byte, s *Struct) ([]byte, error) {
	if len(data) < p.size {
		return nil, errors.BadFormat(errors.PhaseCreate, p.typeName(), "need %d bytes for the fixed segment, got %d", p.size, len(data))
	}
	p.unpackFixed(data[:p.size], s)
	return data[p.size:], nil
}

func (p *fixedParser) pack(s *Struct) ([]byte, error) {
	buf := make([]byte, p.size)
	if err := encodeSlots(buf, p.slots, p.order, s, p.typeName()); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *fixedParser) newLayer(inlineParent *Struct) *Struct {
	s := newStruct(p, inlineParent)
	p.unpackFixed(make([]byte, p.size), s)
	return s
}

func (p *fixedParser) layerSize(s *Struct) int { return p.size }

func (p *fixedParser) parse(data []byte, ip *Struct) (any, int, error) {
	return parseValue(p, data, ip)
}

func (p *fixedParser) create(data []byte, ip *Struct) (any, error) {
	return createValue(p, data, ip)
}

func (p *fixedParser) newValue(ip *Struct) any { return newValueOf(p, ip) }

func (p *fixedParser) sizeof(v any) int { return structSizeof(v) }

func (p *fixedParser) paddingSize(v any) int { return structPaddingSize(p, v) }

func (p *fixedParser) tobytes(v any, skipPrepack bool) ([]byte, error) {
	return structToBytes(v, skipPrepack)
}
