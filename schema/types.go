package schema

import (
	"encoding/binary"
	"strings"

	"go.uber.org/zap"
)

// Type is the common interface of every schema type: primitives, records,
// arrays, enumerations, bitfields and the special field kinds. Types are
// immutable once defined and safe to share across goroutines.
type Type interface {
	// Name returns the declared type name, or "" for anonymous types.
	Name() string

	// String returns a short human-readable description of the type.
	String() string

	// valueParser returns the compiled parser for the type. Types compile
	// when they are defined, so this never fails at parse time.
	valueParser() parser

	// inlineLayout reports how the type flattens into an enclosing fixed
	// segment, or nil when the type must keep its own parser.
	inlineLayout() *inlineInfo

	// extraCapable reports whether the type consumes all trailing bytes
	// when it is the last field of a record.
	extraCapable() bool
}

// SizeFunc computes the total byte size of a record from its already-decoded
// fixed prefix. It is consulted during parse to discover how many trailing
// bytes belong to the record.
type SizeFunc func(*Struct) (int, error)

// PrepackFunc runs immediately before a record is serialized, typically to
// store a computed length back into one of its fields.
type PrepackFunc func(*Struct) error

// InitFunc runs on a freshly instantiated record after its fields have been
// filled with defaults.
type InitFunc func(*Struct)

// CriteriaFunc reports whether a decoded base record should be narrowed into
// the subtype carrying this predicate.
type CriteriaFunc func(*Struct) bool

// CountFunc computes a dynamic array's element count from the fields decoded
// before it, for wire formats that store an element count instead of a byte
// size.
type CountFunc func(*Struct) int

// ClassifierFunc computes a dispatch key from a decoded base record. Subtypes
// registered with matching ClassifyBy values are selected in O(1).
type ClassifierFunc func(*Struct) uint64

// FormatFunc rewrites a single dumped field value into a human-readable form.
// A non-nil error leaves the original value in place.
type FormatFunc func(any) (any, error)

// Values carries field overrides for New.
type Values map[string]any

// Field is one entry of a record declaration. A Field with an empty Name is
// anonymous: primitive-typed anonymous fields become padding, record-typed
// anonymous fields are embedded so their fields join the parent's namespace.
type Field struct {
	Type Type
	Name string
}

// F declares a named field.
func F(t Type, name string) Field {
	return Field{Type: t, Name: name}
}

// Embed declares an anonymous field.
func Embed(t Type) Field {
	return Field{Type: t}
}

// Options carries the structural options of Define.
type Options struct {
	// Size computes the record's total size from its fixed prefix. Required
	// for records that carry trailing variable data in the middle of a
	// stream.
	Size SizeFunc

	// Prepack runs before serialization, after embedded records have been
	// prepacked.
	Prepack PrepackFunc

	// Base declares this record as a subtype of another record or variant.
	// Requires Criteria or ClassifyBy.
	Base Type

	// Criteria selects this subtype from its base by predicate scan.
	Criteria CriteriaFunc

	// Classifier computes the dispatch key on a base record. Subtypes
	// register against it with ClassifyBy.
	Classifier ClassifierFunc

	// ClassifyBy lists the classifier values that select this subtype.
	ClassifyBy []uint64

	// Padding aligns the serialized record to a byte boundary. Zero means
	// the default of 8; 1 disables alignment.
	Padding int

	// Order is the byte order of the record's fixed segments. Nil means
	// big endian.
	Order binary.ByteOrder

	// LastExtra overrides the automatic trailing-variable detection: true
	// forces the last field to consume the record's trailing bytes, false
	// keeps the trailing bytes on the record itself for subtyping.
	LastExtra *bool

	// Init runs on every record produced by New.
	Init InitFunc

	// Formatter rewrites the whole dumped map of the record after field
	// formatters have been applied.
	Formatter StructFormatFunc

	// Extend overrides the dump formatter of inherited field paths, keyed
	// by dotted path. The replacement type contributes only its formatter.
	Extend map[string]Type
}

// LastExtraOn and LastExtraOff are convenience values for Options.LastExtra.
var (
	lastExtraOn  = true
	lastExtraOff = false

	LastExtraOn  = &lastExtraOn
	LastExtraOff = &lastExtraOff
)

func (o Options) order() binary.ByteOrder {
	if o.Order == nil {
		return binary.BigEndian
	}
	return o.Order
}

func (o Options) padding() int {
	if o.Padding == 0 {
		return 8
	}
	return o.Padding
}

func pathKey(path []string) string {
	return strings.Join(path, ".")
}

func splitPathKey(key string) []string {
	return strings.Split(key, ".")
}

// setOptions names the options that are set, for diagnostics.
func setOptions(o Options) []string {
	var set []string
	if o.Size != nil {
		set = append(set, "Size")
	}
	if o.Prepack != nil {
		set = append(set, "Prepack")
	}
	if o.Base != nil {
		set = append(set, "Base")
	}
	if o.Criteria != nil {
		set = append(set, "Criteria")
	}
	if o.Classifier != nil {
		set = append(set, "Classifier")
	}
	if len(o.ClassifyBy) > 0 {
		set = append(set, "ClassifyBy")
	}
	if o.Padding != 0 {
		set = append(set, "Padding")
	}
	if o.Order != nil {
		set = append(set, "Order")
	}
	if o.LastExtra != nil {
		set = append(set, "LastExtra")
	}
	if o.Init != nil {
		set = append(set, "Init")
	}
	if o.Formatter != nil {
		set = append(set, "Formatter")
	}
	if len(o.Extend) > 0 {
		set = append(set, "Extend")
	}
	return set
}

// warnUnsupported logs a warning for every set option the declaring form
// does not honor, mirroring the unknown-parameter warning of schema files.
func warnUnsupported(typ string, o Options, supported ...string) {
	for _, name := range setOptions(o) {
		ok := false
		for _, s := range supported {
			if s == name {
				ok = true
				break
			}
		}
		if !ok {
			Logger().Warn("option is not supported by this declaration",
				zap.String("type", typ), zap.String("option", name))
		}
	}
}
