package schema

import (
	"strings"
	"sync"

	"github.com/Velocidex/ordereddict"
	"go.uber.org/zap"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema/internal/wire"
)

// defineMu serializes type definitions: defining a subtype mutates its base
// parser's dispatch tables. Parsing never takes the lock, so define all types
// before decoding concurrently.
var defineMu sync.Mutex

// fieldFormatter is implemented by types that carry a value formatter for
// human-readable dumps, such as enumerations.
type fieldFormatter interface {
	dumpFormatter() FormatFunc
}

// formatterCarrier is implemented by record types whose path formatters merge
// into records that flatten them or derive from them.
type formatterCarrier interface {
	dumpFormatters() (formatters, listFormatters map[string]FormatFunc)
}

// StructDef is a record type declared with Define. Runs of flattenable fields
// compile into fixed segments decoded in a single pass; the remaining fields
// keep their own parsers and run in sequence.
type StructDef struct {
	name     string
	p        structParser
	inl      *inlineInfo
	extraCap bool
	base     Type

	// embedIdx maps the type names of replaceable anonymous fields to
	// their position among the record's embedded values.
	embedIdx map[string]int

	formatters      map[string]FormatFunc
	listFormatters  map[string]FormatFunc
	wholeFormatters []FormatFunc
	structFormatter StructFormatFunc
}

// segmentType backs the anonymous fixed segments compiled between a record's
// non-flattenable fields. It exists so segment values can take part in dump
// reordering.
type segmentType struct {
	p *fixedParser
}

func (t *segmentType) Name() string              { return "" }
func (t *segmentType) String() string            { return "segment" }
func (t *segmentType) valueParser() parser       { return t.p }
func (t *segmentType) inlineLayout() *inlineInfo { return nil }
func (t *segmentType) extraCapable() bool        { return false }

// Define declares a record type.
//
// Fields flatten into a shared fixed segment when their type allows it:
// integer primitives and byte blocks, fixed arrays of them, and records that
// are themselves fully fixed with no size, prepack or init hook and no base.
// Anonymous primitive fields become padding; anonymous record fields embed
// their fields into the record's namespace.
//
// The returned type is immutable. Define panics on an inconsistent
// declaration.
func Define(name string, fields []Field, opts ...Options) *StructDef {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if name == "" {
		Logger().Warn("record type is not named; it cannot be referenced or replaced by name",
			zap.Int("fields", len(fields)))
	}

	defineMu.Lock()
	defer defineMu.Unlock()

	d := &StructDef{
		name:            name,
		base:            o.Base,
		structFormatter: o.Formatter,
		formatters:      make(map[string]FormatFunc),
		listFormatters:  make(map[string]FormatFunc),
		embedIdx:        make(map[string]int),
	}

	var baseParser structParser
	if o.Base != nil {
		bp, ok := o.Base.valueParser().(structParser)
		if !ok {
			panic(errors.Definition(name, "base type %s is not a record type", o.Base))
		}
		baseParser = bp
		if fc, ok := o.Base.(formatterCarrier); ok {
			fs, lfs := fc.dumpFormatters()
			for k, v := range fs {
				d.formatters[k] = v
			}
			for k, v := range lfs {
				d.listFormatters[k] = v
			}
		}
		if len(o.ClassifyBy) > 0 && baseParser.core().classifier == nil {
			panic(errors.Definition(name, "base type %s has no classifier for the declared classify values", o.Base))
		}
		if len(o.ClassifyBy) == 0 && baseParser.core().classifier != nil {
			Logger().Warn("base type has a classifier but the subtype declares no classify values",
				zap.String("type", name), zap.String("base", o.Base.Name()))
		}
	} else {
		if len(o.ClassifyBy) > 0 {
			panic(errors.Definition(name, "classify values require a base type"))
		}
		if o.Criteria != nil {
			panic(errors.Definition(name, "criteria requires a base type"))
		}
	}

	var (
		segSize  int
		segSlots []slot

		members   []seqMember
		lastType  Type
		anonCount int
	)
	flush := func() {
		if segSize == 0 {
			return
		}
		seg := &fixedParser{
			parserCore: parserCore{padding: 1},
			order:      o.order(),
			size:       segSize,
			slots:      segSlots,
		}
		seg.owner = &segmentType{p: seg}
		members = append(members, seqMember{p: seg})
		lastType = seg.owner
		anonCount++
		segSize = 0
		segSlots = nil
	}

	last := len(fields) - 1
	for i, f := range fields {
		if f.Type == nil {
			panic(errors.Definition(name, "field %d has no type", i))
		}
		elemT := f.Type
		arrayCount := -1
		if at, ok := f.Type.(*ArrayType); ok {
			arrayCount = at.count
			elemT = at.elem
		}
		if ff, ok := elemT.(fieldFormatter); ok && f.Name != "" {
			if fn := ff.dumpFormatter(); fn != nil {
				if arrayCount < 0 {
					d.formatters[f.Name] = fn
				} else {
					d.listFormatters[f.Name] = fn
				}
			}
		}

		// The last field stays out of the fixed segment when it is

		// explicitly declared to take the record's trailing bytes.
		var einl *inlineInfo
		if !(i == last && o.LastExtra != nil && *o.LastExtra) {
			einl = elemT.inlineLayout()
			if arrayCount >= 0 && (arrayCount == 0 || einl == nil || einl.prim == nil) {
				einl = nil
			}
		}

		switch {
		case einl != nil && einl.prim != nil:
			n := 1
			if arrayCount > 0 {
				n = arrayCount
			}
			if f.Name != "" {
				count := 0
				if arrayCount > 0 {
					count = arrayCount
				}
				segSlots = append(segSlots, slot{
					path:   []string{f.Name},
					kind:   einl.prim.kind,
					offset: segSize,
					width:  einl.prim.width,
					count:  count,
				})
			}
			segSize += einl.prim.width * n

		case einl != nil:
			child, ok := elemT.(*StructDef)
			if !ok {
				panic(errors.Definition(name, "field %d: type %s flattens but is not a record", i, elemT))
			}
			base := segSize
			for _, sl := range child.inl.slots {
				ns := sl
				ns.offset = base + sl.offset
				if f.Name != "" {
					ns.path = append([]string{f.Name}, sl.path...)
				}
				segSlots = append(segSlots, ns)
			}
			segSize += child.inl.size
			mergeInlineFormatters(d, f.Name, child)

		default:
			flush()
			switch {
			case f.Name != "" && arrayCount >= 0:
				members = append(members, seqMember{p: elemT.valueParser(), name: f.Name, array: true, count: arrayCount})
				lastType = elemT
			case f.Name != "":
				members = append(members, seqMember{p: f.Type.valueParser(), name: f.Name})
				lastType = f.Type
			case arrayCount >= 0:
				panic(errors.Definition(name, "field %d: an array field must be named", i))
			default:
				mp := f.Type.valueParser()
				if _, ok := mp.(structParser); !ok {
					panic(errors.Definition(name, "field %d: anonymous field of type %s must be a record type", i, f.Type))
				}
				if tn := f.Type.Name(); tn != "" {
					d.embedIdx[tn] = anonCount
				}
				members = append(members, seqMember{p: mp})
				lastType = f.Type
				anonCount++
			}
		}
	}

	core := parserCore{
		padding:     o.padding(),
		base:        baseParser,
		criteria:    o.Criteria,
		classifier:  o.Classifier,
		initfunc:    o.Init,
		prepackfunc: o.Prepack,
		owner:       d,
	}

	if len(members) == 0 {
		fp := &fixedParser{
			parserCore: core,
			order:      o.order(),
			size:       segSize,
			slots:      segSlots,
			sizefunc:   o.Size,
		}
		d.p = fp
		if baseParser == nil && o.Size == nil && o.Prepack == nil && o.Init == nil && len(fields) > 0 {
			d.inl = &inlineInfo{size: wire.Pad(segSize, o.padding()), slots: segSlots}
		}
	} else {
		flush()
		lastExtra := false
		if o.LastExtra != nil {
			lastExtra = *o.LastExtra
		} else {
			lm := members[len(members)-1]
			switch {
			case lm.array && lm.count == 0:
				lastExtra = true
			case !lm.array && lastType != nil && lastType.extraCapable():
				lastExtra = true
			}
		}
		if lastExtra {
			if _, isSeg := lastType.(*segmentType); isSeg {
				lastExtra = false
			}
		}
		sp := &sequencedParser{
			parserCore: core,
			members:    members,
			sizefunc:   o.Size,
		}
		if lastExtra {
			e := members[len(members)-1]
			sp.members = members[:len(members)-1]
			sp.extra = &e
		}
		d.p = sp
		d.extraCap = lastExtra && o.Size == nil && baseParser == nil
	}

	for k, v := range o.Extend {
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

	registerSubtype(d.p, o.ClassifyBy)
	return d
}

// mergeInlineFormatters folds a flattened child record's dump formatters into
// the parent, prefixing paths with the field name for named fields. The
// child's whole-record formatters apply to the child's nested map when named
// and to the parent's whole map when anonymous.
func mergeInlineFormatters(d *StructDef, fieldName string, child *StructDef) {
	for k, v := range child.formatters {
		if fieldName != "" {
			d.formatters[fieldName+"."+k] = v
		} else {
			d.formatters[k] = v
		}
	}
	for k, v := range child.listFormatters {
		if fieldName != "" {
			d.listFormatters[fieldName+"."+k] = v
		} else {
			d.listFormatters[k] = v
		}
	}
	var whole []FormatFunc
	whole = append(whole, child.wholeFormatters...)
	if child.structFormatter != nil {
		whole = append(whole, structFormatterFunc(child.structFormatter))
	}
	if len(whole) == 0 {
		return
	}
	if fieldName != "" {
		d.formatters[fieldName] = chainFormat(whole...)
	} else {
		d.wholeFormatters = append(d.wholeFormatters, whole...)
	}
}

// structFormatterFunc adapts a whole-record formatter to the generic field
// formatter shape.
func structFormatterFunc(f StructFormatFunc) FormatFunc {
	return func(v any) (any, error) {
		dv, ok := v.(*ordereddict.Dict)
		if !ok {
			return v, errors.BadValue(errors.PhaseDump, nil, v, "record formatter applied to %T", v)
		}
		return f(dv)
	}
}

// chainFormat applies formatters in order. A failing step is logged and
// skipped, keeping the value from the previous step.
func chainFormat(fs ...FormatFunc) FormatFunc {
	if len(fs) == 1 {
		return fs[0]
	}
	return func(v any) (any, error) {
		for _, f := range fs {
			nv, err := f(v)
			if err != nil {
				Logger().Debug("dump formatter failed", zap.Error(err))
				continue
			}
			v = nv
		}
		return v, nil
	}
}

func (t *StructDef) Name() string { return t.name }

func (t *StructDef) String() string {
	if t.name != "" {
		return t.name
	}
	return "struct"
}

func (t *StructDef) valueParser() parser { return t.p }

func (t *StructDef) inlineLayout() *inlineInfo { return t.inl }

func (t *StructDef) extraCapable() bool { return t.extraCap }

func (t *StructDef) embeddedIndexes() map[string]int { return t.embedIdx }

func (t *StructDef) dumpFormatters() (map[string]FormatFunc, map[string]FormatFunc) {
	return t.formatters, t.listFormatters
}

// Base returns the declared base type, or nil.
func (t *StructDef) Base() Type { return t.base }

// Parse decodes one record from the head of data and returns the aligned
// number of bytes consumed. It returns errors.ErrNeedMore when data does not
// yet hold a whole record, so a stream reader can retry with more bytes.
func (t *StructDef) Parse(data []byte) (*Struct, int, error) {
	v, n, err := t.p.parse(data, nil)
	if err != nil {
		return nil, 0, err
	}
	return v.(*Struct), n, nil
}

// Create decodes a record from exactly data: the whole buffer belongs to the
// record, and truncated input is an error rather than a need-more signal.
func (t *StructDef) Create(data []byte) (*Struct, error) {
	v, err := t.p.create(data, nil)
	if err != nil {
		return nil, err
	}
	return v.(*Struct), nil
}

// New instantiates the record with default field values, runs the init hooks
// along its base chain, then applies the given overrides in order. Override
// keys may be dotted paths.
func (t *StructDef) New(vals ...Values) *Struct {
	s := t.p.newValue(nil).(*Struct)
	applyValues(s, vals)
	return s
}

// Dump converts a value into an ordered primitive-only map. See the
// package-level Dump.
func (t *StructDef) Dump(v *Struct, opts ...DumpOptions) *ordereddict.Dict {
	d, _ := Dump(v, opts...).(*ordereddict.Dict)
	return d
}

func applyValues(s *Struct, vals []Values) {
	for _, m := range vals {
		for k, v := range m {
			if strings.Contains(k, ".") {
				s.SetPath(v, splitPathKey(k)...)
			} else {
				s.Set(k, v)
			}
		}
	}
}
