package schema

import (
	"fmt"
	"unicode/utf8"

	"github.com/Velocidex/ordereddict"
	"go.uber.org/zap"
)

// StructFormatFunc rewrites a record's whole dumped map, after the per-field
// formatters have run. A non-nil error leaves the map unchanged.
type StructFormatFunc func(*ordereddict.Dict) (*ordereddict.Dict, error)

// TypeTag selects how Dump labels a record's type.
type TypeTag int

const (
	// TypeTagFlat adds a "_type" key to every dumped record map.
	TypeTagFlat TypeTag = iota
	// TypeTagKey wraps every dumped record map under its type-name key.
	TypeTagKey
	// TypeTagNone leaves type information out.
	TypeTagNone
)

// DumpOptions control Dump. The zero value dumps human-readable values in
// declaration order with flat type tags and no residual bytes.
type DumpOptions struct {
	// Raw skips the human-readable formatters and keeps raw field values.
	Raw bool

	// IncludeResidual adds a record's residual bytes under "_extra".
	IncludeResidual bool

	// TypeTag selects the type labeling mode.
	TypeTag TypeTag

	// ToString renders []byte values as strings: verbatim when valid UTF-8,
	// quoted otherwise. With it the result encodes cleanly as JSON.
	ToString bool
}

// Dump converts a parsed or constructed value into nested primitive-only
// data: records and their extension layers become insertion-ordered maps,
// arrays become slices, everything else stays as is. The maps follow the
// schema's declaration order even where compilation reordered fields into
// shared fixed segments.
//
// Field formatters never abort a dump: a failing formatter is logged at debug
// level and the unformatted value kept.
func Dump(v any, opts ...DumpOptions) any {
	var o DumpOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	d := dumpAny(v, o)
	if o.ToString {
		d = dumpToString(d)
	}
	return d
}

func dumpAny(v any, o DumpOptions) any {
	switch val := v.(type) {
	case nil:
		return nil
	case *Struct:
		return dumpStruct(val, o)
	case []uint64:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case []int64:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case [][]byte:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = append([]byte(nil), e...)
		}
		return out
	case []*Struct:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = dumpAny(e, o)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = dumpAny(e, o)
		}
		return out
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}

func dumpStruct(s *Struct, o DumpOptions) any {
	d := ordereddict.NewDict()
	root := s.target
	for _, name := range root.order {
		d.Set(name, dumpAny(root.fields[name], o))
	}
	t := s.TypeOf()
	if t == nil {
		// a plain container from a dotted field path
		return d
	}
	d = reorderDump(s, d)
	if !o.Raw {
		d = formatLayers(s, d)
		d = formatWhole(t, d)
	}
	if o.IncludeResidual {
		if extra := s.Residual(); len(extra) > 0 {
			d.Set("_extra", append([]byte(nil), extra...))
		}
	}
	switch o.TypeTag {
	case TypeTagFlat:
		d.Set("_type", "<"+t.String()+">")
	case TypeTagKey:
		return ordereddict.NewDict().Set("<"+t.String()+">", d)
	}
	return d
}

// reorderDump restores declaration order: it walks every layer's compiled
// field paths and moves each matching entry from the unordered map into a
// fresh map, then appends whatever the schemas did not mention. Paths absent
// from the unordered map are skipped, tolerating optional and variant fields
// that were never decoded.
func reorderDump(s *Struct, unordered *ordereddict.Dict) *ordereddict.Dict {
	ordered := ordereddict.NewDict()
	for cur := s; cur != nil; cur = cur.sub {
		reorderLayer(cur, unordered, ordered)
	}
	mergeRemaining(unordered, ordered)
	return ordered
}

func reorderLayer(layer *Struct, unordered, ordered *ordereddict.Dict) {
	switch p := layer.parser.(type) {
	case *fixedParser:
		for _, sl := range p.slots {
			moveEntry(sl.path, unordered, ordered)
		}
	case *sequencedParser:
		seqIdx := 0
		for _, m := range p.members {
			if m.name != "" {
				moveEntry([]string{m.name}, unordered, ordered)
			} else if seqIdx < len(layer.seqs) {
				reorderLayer(layer.seqs[seqIdx], unordered, ordered)
				seqIdx++
			}
		}
		if m := p.extra; m != nil {
			if m.name != "" {
				moveEntry([]string{m.name}, unordered, ordered)
			} else if seqIdx < len(layer.seqs) {
				reorderLayer(layer.seqs[seqIdx], unordered, ordered)
			}
		}
	case *optionalParser:
		moveEntry([]string{p.field}, unordered, ordered)
	case *darrayParser:
		moveEntry([]string{p.field}, unordered, ordered)
	case *bitfieldParser:
		for _, sp := range p.spans {
			moveEntry([]string{sp.name}, unordered, ordered)
		}
	case *variantParser:
		if len(layer.seqs) > 0 {
			reorderLayer(layer.seqs[0], unordered, ordered)
		}
	}
}

// moveEntry pops the entry at path from one nested map and inserts it at the
// same path of the other, creating intermediate maps as needed. A missing
// source entry is left alone.
func moveEntry(path []string, from, to *ordereddict.Dict) {
	cur := from
	for _, leg := range path[:len(path)-1] {
		v, ok := cur.Get(leg)
		if !ok {
			return
		}
		cur, ok = v.(*ordereddict.Dict)
		if !ok {
			return
		}
	}
	last := path[len(path)-1]
	v, ok := cur.Get(last)
	if !ok {
		return
	}
	cur.Delete(last)
	dst := to
	for _, leg := range path[:len(path)-1] {
		next, ok := dst.Get(leg)
		nd, isDict := next.(*ordereddict.Dict)
		if !ok || !isDict {
			nd = ordereddict.NewDict()
			dst.Set(leg, nd)
		}
		dst = nd
	}
	dst.Set(last, v)
}

func mergeRemaining(from, to *ordereddict.Dict) {
	for _, k := range from.Keys() {
		v, _ := from.Get(k)
		if vd, ok := v.(*ordereddict.Dict); ok {
			tv, ok := to.Get(k)
			td, isDict := tv.(*ordereddict.Dict)
			if !ok || !isDict {
				td = ordereddict.NewDict()
				to.Set(k, td)
			}
			mergeRemaining(vd, td)
		} else {
			to.Set(k, v)
		}
	}
}

// formatLayers applies the value's human-readable formatters: the terminal
// type's path formatter tables first (they include the inherited base
// tables), then every embedded record's own formatting across every layer.
func formatLayers(s *Struct, d *ordereddict.Dict) *ordereddict.Dict {
	if fc, ok := s.TypeOf().(formatterCarrier); ok {
		fs, lfs := fc.dumpFormatters()
		applyTables(d, fs, lfs)
	}
	for cur := s; cur != nil; cur = cur.sub {
		for _, seq := range cur.seqs {
			d = formatEmbedded(seq, d)
		}
	}
	return d
}

func formatEmbedded(seq *Struct, d *ordereddict.Dict) *ordereddict.Dict {
	switch t := seq.layerType().(type) {
	case *Optional:
		if v, ok := d.Get(t.fieldName); ok {
			if t.listFormatter != nil {
				formatElems(v, t.listFormatter)
			}
			if t.formatter != nil {
				nv, err := t.formatter(v)
				if err != nil {
					Logger().Debug("dump formatter failed", zap.String("field", t.fieldName), zap.Error(err))
				} else {
					d.Set(t.fieldName, nv)
				}
			}
		}
	case *DArray:
		if t.listFormatter != nil {
			if v, ok := d.Get(t.fieldName); ok {
				formatElems(v, t.listFormatter)
			}
		}
	default:
		d = formatLayers(seq, d)
	}
	return d
}

// applyTables runs the path-keyed formatter tables against a dumped map.
// Array-element formatters run before scalar ones, so an element formatter
// and a whole-field formatter can share a path. Paths missing from the map
// are skipped.
func applyTables(d *ordereddict.Dict, formatters, listFormatters map[string]FormatFunc) {
	for key, fn := range listFormatters {
		if v, ok := lookupPath(d, splitPathKey(key)); ok {
			formatElems(v, fn)
		}
	}
	for key, fn := range formatters {
		path := splitPathKey(key)
		parent, ok := lookupParent(d, path)
		if !ok {
			continue
		}
		last := path[len(path)-1]
		v, ok := parent.Get(last)
		if !ok {
			continue
		}
		nv, err := fn(v)
		if err != nil {
			Logger().Debug("dump formatter failed", zap.String("path", key), zap.Error(err))
			continue
		}
		parent.Set(last, nv)
	}
}

func formatElems(v any, fn FormatFunc) {
	elems, ok := v.([]any)
	if !ok {
		return
	}
	for i, e := range elems {
		ne, err := fn(e)
		if err != nil {
			Logger().Debug("dump formatter failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		elems[i] = ne
	}
}

func lookupPath(d *ordereddict.Dict, path []string) (any, bool) {
	parent, ok := lookupParent(d, path)
	if !ok {
		return nil, false
	}
	return parent.Get(path[len(path)-1])
}

func lookupParent(d *ordereddict.Dict, path []string) (*ordereddict.Dict, bool) {
	cur := d
	for _, leg := range path[:len(path)-1] {
		v, ok := cur.Get(leg)
		if !ok {
			return nil, false
		}
		cur, ok = v.(*ordereddict.Dict)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// formatWhole runs the record-level formatters of the terminal type.
func formatWhole(t Type, d *ordereddict.Dict) *ordereddict.Dict {
	sd, ok := t.(*StructDef)
	if !ok {
		if bf, ok := t.(*Bitfield); ok && bf.structFormatter != nil {
			nd, err := bf.structFormatter(d)
			if err != nil {
				Logger().Debug("dump formatter failed", zap.String("type", t.String()), zap.Error(err))
				return d
			}
			return nd
		}
		return d
	}
	for _, fn := range sd.wholeFormatters {
		nv, err := fn(d)
		if err != nil {
			Logger().Debug("dump formatter failed", zap.String("type", t.String()), zap.Error(err))
			continue
		}
		if nd, ok := nv.(*ordereddict.Dict); ok {
			d = nd
		}
	}
	if sd.structFormatter != nil {
		nd, err := sd.structFormatter(d)
		if err != nil {
			Logger().Debug("dump formatter failed", zap.String("type", t.String()), zap.Error(err))
			return d
		}
		d = nd
	}
	return d
}

// dumpToString converts the []byte leaves of a dumped value to strings.
func dumpToString(v any) any {
	switch val := v.(type) {
	case *ordereddict.Dict:
		out := ordereddict.NewDict()
		for _, k := range val.Keys() {
			e, _ := val.Get(k)
			out.Set(k, dumpToString(e))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = dumpToString(e)
		}
		return out
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return fmt.Sprintf("%q", val)
	default:
		return v
	}
}
