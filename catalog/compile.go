package catalog

import (
	"go.uber.org/zap"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema"
)

func (c *Catalog) compileStruct(spec *typeSpec) (schema.Type, error) {
	fields := make([]schema.Field, 0, len(spec.Fields))
	for i, fs := range spec.Fields {
		if fs.Type == "" {
			return nil, errors.Definition(spec.Name, "field %d has no type", i)
		}
		t, err := c.resolve(fs.Type)
		if err != nil {
			return nil, err
		}
		if fs.Count != nil {
			t = schema.ArrayOf(t, *fs.Count)
		}
		fields = append(fields, schema.Field{Type: t, Name: fs.Name})
	}

	opts := schema.Options{
		Padding:    spec.Padding,
		ClassifyBy: spec.ClassifyBy,
		LastExtra:  spec.LastExtra,
	}
	switch spec.Order {
	case "", "big":
	case "little":
		return nil, errors.Definition(spec.Name, "little-endian records are not supported; use the _le primitives per field")
	default:
		return nil, errors.Definition(spec.Name, "unknown byte order %q", spec.Order)
	}
	if spec.Base != "" {
		base, err := c.resolve(spec.Base)
		if err != nil {
			return nil, err
		}
		opts.Base = base
	}
	if spec.Size != nil {
		if len(spec.Size.Field) == 0 {
			return nil, errors.Definition(spec.Name, "size hook needs a field")
		}
		limit := -1
		if spec.Size.Limit != nil {
			limit = *spec.Size.Limit
		}
		opts.Size = schema.SizeFromField(limit, spec.Size.Field...)
		if spec.Padding == 0 {
			Logger().Warn("sized schema leaves padding unset; the default of 8 rarely matches a length field",
				zap.String("type", spec.Name))
		}
	}
	if spec.Prepack != nil {
		fn, err := prepackHook(spec.Name, spec.Prepack)
		if err != nil {
			return nil, err
		}
		opts.Prepack = fn
	}
	if spec.Criteria != nil {
		if len(spec.Criteria.Field) == 0 {
			return nil, errors.Definition(spec.Name, "criteria hook needs a field")
		}
		path, want := spec.Criteria.Field, spec.Criteria.Equals
		opts.Criteria = func(s *schema.Struct) bool {
			v, ok := fieldUint(s, path)
			return ok && v == want
		}
	}
	if spec.Classifier != nil {
		if len(spec.Classifier.Field) == 0 {
			return nil, errors.Definition(spec.Name, "classifier hook needs a field")
		}
		path := spec.Classifier.Field
		opts.Classifier = func(s *schema.Struct) uint64 {
			v, _ := fieldUint(s, path)
			return v
		}
	}
	if spec.Init != nil {
		fn, err := initHook(spec.Name, spec.Init)
		if err != nil {
			return nil, err
		}
		opts.Init = fn
	}
	if len(spec.Extend) > 0 {
		ext, err := c.extendTable(spec.Extend)
		if err != nil {
			return nil, err
		}
		opts.Extend = ext
	}
	return schema.Define(spec.Name, fields, opts), nil
}

func (c *Catalog) compileEnum(spec *typeSpec) (schema.Type, error) {
	if spec.Type == "" {
		return nil, errors.Definition(spec.Name, "enums need a base primitive type")
	}
	base, err := c.resolvePrimitive(spec.Name, spec.Type)
	if err != nil {
		return nil, err
	}
	if len(spec.Values) == 0 {
		return nil, errors.Definition(spec.Name, "enums need at least one value")
	}
	return schema.DefineEnum(spec.Name, base, spec.Bitwise, spec.Values), nil
}

func (c *Catalog) compileBitfield(spec *typeSpec) (schema.Type, error) {
	if spec.Type == "" {
		return nil, errors.Definition(spec.Name, "bit fields need a base primitive type")
	}
	base, err := c.resolvePrimitive(spec.Name, spec.Type)
	if err != nil {
		return nil, err
	}
	if len(spec.Bits) == 0 {
		return nil, errors.Definition(spec.Name, "bit fields need a bits list")
	}
	bits := make([]schema.Bits, 0, len(spec.Bits))
	for _, b := range spec.Bits {
		bits = append(bits, schema.Bits{Width: b.Width, Name: b.Name, Count: b.Count})
	}
	var opts schema.Options
	if spec.Init != nil {
		fn, err := initHook(spec.Name, spec.Init)
		if err != nil {
			return nil, err
		}
		opts.Init = fn
	}
	if spec.Prepack != nil {
		fn, err := prepackHook(spec.Name, spec.Prepack)
		if err != nil {
			return nil, err
		}
		opts.Prepack = fn
	}
	if len(spec.Extend) > 0 {
		ext, err := c.extendTable(spec.Extend)
		if err != nil {
			return nil, err
		}
		opts.Extend = ext
	}
	return schema.DefineBitfield(spec.Name, base, bits, opts), nil
}

func (c *Catalog) compileVariant(spec *typeSpec) (schema.Type, error) {
	var header schema.Type
	if spec.Header != "" {
		t, err := c.resolve(spec.Header)
		if err != nil {
			return nil, err
		}
		header = t
	}
	opts := schema.Options{Padding: spec.Padding}
	if spec.Classifier != nil {
		if len(spec.Classifier.Field) == 0 {
			return nil, errors.Definition(spec.Name, "classifier hook needs a field")
		}
		path := spec.Classifier.Field
		opts.Classifier = func(s *schema.Struct) uint64 {
			v, _ := fieldUint(s, path)
			return v
		}
	}
	if spec.Prepack != nil {
		fn, err := prepackHook(spec.Name, spec.Prepack)
		if err != nil {
			return nil, err
		}
		opts.Prepack = fn
	}
	return schema.DefineVariant(spec.Name, header, opts), nil
}

func (c *Catalog) resolvePrimitive(typeName, ref string) (*schema.Primitive, error) {
	t, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	p, ok := t.(*schema.Primitive)
	if !ok {
		return nil, errors.Definition(typeName, "%q is not a primitive type", ref)
	}
	return p, nil
}

func (c *Catalog) extendTable(ext map[string]string) (map[string]schema.Type, error) {
	out := make(map[string]schema.Type, len(ext))
	for path, ref := range ext {
		t, err := c.resolve(ref)
		if err != nil {
			return nil, err
		}
		out[path] = t
	}
	return out, nil
}

// prepackHook builds the pre-serialization hook; the spec must pick exactly
// one of its forms.
func prepackHook(typeName string, spec *prepackSpec) (schema.PrepackFunc, error) {
	set := 0
	if len(spec.RealSize) > 0 {
		set++
	}
	if len(spec.Size) > 0 {
		set++
	}
	if len(spec.Set) > 0 {
		set++
	}
	if set != 1 {
		return nil, errors.Definition(typeName, "prepack needs exactly one of realsize, size or set")
	}
	switch {
	case len(spec.RealSize) > 0:
		return schema.PackRealSize(spec.RealSize...), nil
	case len(spec.Size) > 0:
		return schema.PackPaddedSize(spec.Size...), nil
	default:
		vals := spec.Set
		return func(s *schema.Struct) error {
			for field, v := range vals {
				s.SetPath(v, splitDots(field)...)
			}
			return nil
		}, nil
	}
}

func initHook(typeName string, spec *initSpec) (schema.InitFunc, error) {
	if len(spec.Set) == 0 {
		return nil, errors.Definition(typeName, "init needs a set map")
	}
	vals := spec.Set
	return func(s *schema.Struct) {
		for field, v := range vals {
			s.SetPath(v, splitDots(field)...)
		}
	}, nil
}

// fieldUint reads an unsigned integer through a dotted field path.
func fieldUint(s *schema.Struct, path []string) (uint64, bool) {
	v, ok := s.GetPath(path...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	case int:
		return uint64(n), true
	}
	return 0, false
}
