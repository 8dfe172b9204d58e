package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/structwire/structwire/errors"
)

// EnumDef is an integer primitive with named values. On the wire it is exactly
// its base primitive; the names only affect human-readable dumps, where the
// raw integer is replaced by its name.
//
// A bitwise enum treats values as OR-combinations. Its dump formatter picks
// names greedily from the highest value down, so a name covering several bits
// wins over the individual bits, and prints them space-separated in ascending
// order with any leftover bits appended in hex. Zero stays zero.
type EnumDef struct {
	name    string
	prim    *Primitive
	bitwise bool
	values  map[string]uint64

	// byName resolves reverse lookups deterministically, byValueDesc
	// drives the greedy bitwise match.
	byName      []string
	byValueDesc []string
}

// DefineEnum declares an enum over the given integer primitive.
func DefineEnum(name string, base *Primitive, bitwise bool, values map[string]uint64) *EnumDef {
	if base == nil || base.kind == KindBytes {
		panic(errors.Definition(name, "enums need an integer base primitive"))
	}
	e := &EnumDef{
		name:    name,
		prim:    base,
		bitwise: bitwise,
		values:  make(map[string]uint64, len(values)),
	}
	for k, v := range values {
		e.values[k] = v
		e.byName = append(e.byName, k)
	}
	sort.Strings(e.byName)
	e.byValueDesc = append(e.byValueDesc, e.byName...)
	sort.Slice(e.byValueDesc, func(i, j int) bool {
		vi, vj := e.values[e.byValueDesc[i]], e.values[e.byValueDesc[j]]
		if vi != vj {
			return vi > vj
		}
		return e.byValueDesc[i] < e.byValueDesc[j]
	})
	return e
}

// Extend returns a new enum with the same base primitive and the merged
// value set. New names win on conflict.
func (e *EnumDef) Extend(name string, values map[string]uint64) *EnumDef {
	if name == "" {
		name = e.name
	}
	merged := make(map[string]uint64, len(e.values)+len(values))
	for k, v := range e.values {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	return DefineEnum(name, e.prim, e.bitwise, merged)
}

// Merge returns a new enum holding the values of both enums.
func (e *EnumDef) Merge(other *EnumDef) *EnumDef {
	return e.Extend(e.name, other.values)
}

// AsType returns an enum with the same names and values over a different
// primitive, e.g. to fit a 16-bit enum into a 32-bit field. Bitwise
// formatting carries over.
func (e *EnumDef) AsType(base *Primitive) *EnumDef {
	return DefineEnum(e.name, base, e.bitwise, e.values)
}

// NameOf returns the name defined for value, or def. When several names share
// the value the lexicographically smallest wins.
func (e *EnumDef) NameOf(value uint64, def string) string {
	for _, k := range e.byName {
		if e.values[k] == value {
			return k
		}
	}
	return def
}

// ValueOf returns the value defined for name, or def.
func (e *EnumDef) ValueOf(name string, def uint64) uint64 {
	if v, ok := e.values[name]; ok {
		return v
	}
	return def
}

// Has reports whether value is one of the defined values.
func (e *EnumDef) Has(value uint64) bool {
	for _, v := range e.values {
		if v == value {
			return true
		}
	}
	return false
}

// Values returns a copy of the name to value mapping.
func (e *EnumDef) Values() map[string]uint64 {
	m := make(map[string]uint64, len(e.values))
	for k, v := range e.values {
		m[k] = v
	}
	return m
}

// ToString formats value the way a dump would, falling back to the decimal
// representation for unnamed values.
func (e *EnumDef) ToString(value uint64) string {
	v, err := e.format(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return fmt.Sprint(v)
}

func (e *EnumDef) format(value uint64) (any, error) {
	if !e.bitwise {
		if n := e.NameOf(value, ""); n != "" {
			return n, nil
		}
		return value, nil
	}
	var names []string
	rest := value
	for _, k := range e.byValueDesc {
		v := e.values[k]
		if v != 0 && v&rest == v {
			names = append(names, k)
			rest ^= v
		}
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", rest))
	}
	if len(names) == 0 {
		return value, nil
	}
	return strings.Join(names, " "), nil
}

func (e *EnumDef) dumpFormatter() FormatFunc {
	return func(v any) (any, error) {
		u, ok := asUint64(v)
		if !ok {
			return v, errors.BadValue(errors.PhaseDump, nil, v, "enum %s formats integers, got %T", e.name, v)
		}
		return e.format(u)
	}
}

func (e *EnumDef) Name() string { return e.name }

func (e *EnumDef) String() string {
	if e.name != "" {
		return e.name
	}
	return e.prim.String()
}

func (e *EnumDef) valueParser() parser { return e.prim.valueParser() }

func (e *EnumDef) inlineLayout() *inlineInfo { return e.prim.inlineLayout() }

func (e *EnumDef) extraCapable() bool { return false }

// Parse decodes one value from the head of data.
func (e *EnumDef) Parse(data []byte) (any, int, error) { return e.prim.Parse(data) }

// Create decodes a value from exactly data.
func (e *EnumDef) Create(data []byte) (any, error) { return e.prim.Create(data) }

// New returns the zero value of the base primitive.
func (e *EnumDef) New() any { return e.prim.New() }

// ToBytes encodes a value of the base primitive.
func (e *EnumDef) ToBytes(v any) ([]byte, error) { return e.prim.ToBytes(v) }
