package catalog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema"
)

// Catalog holds the types compiled from one schema file. Lookups are by the
// declared name; a Catalog is immutable after loading and safe to share.
type Catalog struct {
	types map[string]schema.Type
	names []string
}

// builtins are the primitive names every catalog can reference.
var builtins = map[string]schema.Type{
	"uint8":  schema.UInt8,
	"uint16": schema.UInt16,
	"uint32": schema.UInt32,
	"uint64": schema.UInt64,

	"int8":  schema.Int8,
	"int16": schema.Int16,
	"int32": schema.Int32,
	"int64": schema.Int64,

	"uint16_le": schema.UInt16LE,
	"uint32_le": schema.UInt32LE,
	"uint64_le": schema.UInt64LE,

	"char":   schema.Char,
	"raw":    schema.Raw,
	"varchr": schema.VarChr,
	"cstr":   schema.CStr,
}

// Load reads and compiles a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	Logger().Info("catalog loaded",
		zap.String("path", path),
		zap.Int("types", len(c.names)))
	return c, nil
}

// Parse compiles a catalog document. Types compile in file order, so a type
// may reference the built-in primitives and anything declared before it.
// Definition faults across the whole document are collected into one
// *errors.DefinitionsError.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.PhaseDefine, errors.KindBadDefinition, err, "catalog is not valid YAML")
	}

	c := &Catalog{types: make(map[string]schema.Type, len(doc.Types))}
	var problems []errors.Problem
	for i := range doc.Types {
		node := &doc.Types[i]
		var spec typeSpec
		if err := node.Decode(&spec); err != nil {
			problems = append(problems, errors.Problem{
				Type: fmt.Sprintf("types[%d]", i),
				Err:  err,
			})
			continue
		}
		if spec.Name == "" {
			problems = append(problems, errors.Problem{
				Type: fmt.Sprintf("types[%d]", i),
				Err:  errors.Definition("", "catalog types must be named"),
			})
			continue
		}
		if _, dup := c.types[spec.Name]; dup {
			problems = append(problems, errors.Problem{
				Type: spec.Name,
				Err:  errors.Definition(spec.Name, "type name is declared twice"),
			})
			continue
		}
		checkKeys(node, spec.Name, spec.Kind)

		t, err := c.compile(&spec)
		if err != nil {
			problems = append(problems, errors.Problem{Type: spec.Name, Err: err})
			continue
		}
		c.types[spec.Name] = t
		c.names = append(c.names, spec.Name)
		Logger().Debug("catalog type compiled",
			zap.String("name", spec.Name),
			zap.String("kind", spec.Kind))
	}
	if len(problems) > 0 {
		return nil, errors.NewDefinitionsError(problems...)
	}
	return c, nil
}

// Type returns the compiled type declared under name.
func (c *Catalog) Type(name string) (schema.Type, bool) {
	t, ok := c.types[name]
	return t, ok
}

// Names returns the declared type names in file order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// resolve looks a type reference up among the built-ins and the types
// declared so far.
func (c *Catalog) resolve(name string) (schema.Type, error) {
	if t, ok := c.types[name]; ok {
		return t, nil
	}
	if t, ok := builtins[name]; ok {
		return t, nil
	}
	return nil, errors.Definition(name, "type reference %q does not resolve", name)
}

// compile builds one schema type from its spec. Definition panics from the
// schema package surface as errors here.
func (c *Catalog) compile(spec *typeSpec) (t schema.Type, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = errors.Definition(spec.Name, "%v", r)
		}
	}()

	switch spec.Kind {
	case "struct":
		return c.compileStruct(spec)
	case "enum":
		return c.compileEnum(spec)
	case "bitfield":
		return c.compileBitfield(spec)
	case "variant":
		return c.compileVariant(spec)
	case "primitive":
		return c.resolve(spec.Type)
	case "":
		return nil, errors.Definition(spec.Name, "catalog types need a kind")
	default:
		return nil, errors.Definition(spec.Name, "unknown kind %q", spec.Kind)
	}
}
