// Package structwire is a schema-driven binary codec engine.
//
// Record layouts are declared once, as field lists in Go or as YAML
// catalogs, and compile into immutable codecs that parse byte streams into
// field-addressable values and serialize those values back, byte for byte.
//
// # Package layout
//
//	structwire/
//	├── schema/      Core engine: type definitions, layout compiler,
//	│                runtime parsers, value model, ordered dumps
//	├── errors/      Structured engine errors (phase/kind taxonomy)
//	├── catalog/     Declarative YAML schema catalogs
//	├── transfer/    Type registry and CBOR envelopes for moving values
//	│                between processes
//	└── cmd/bindump/ CLI: decode binary captures against a catalog type,
//	                 with an interactive record inspector
//
// # Quick start
//
// Declare a record and round-trip it:
//
//	point := schema.Define("point", []schema.Field{
//	    schema.F(schema.UInt16, "x"),
//	    schema.F(schema.UInt16, "y"),
//	}, schema.Options{Padding: 1})
//
//	v, n, err := point.Parse(buf)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(v.Uint("x"), v.Uint("y"), n)
//
//	data, err := point.New(schema.Values{"x": 3, "y": 9}).ToBytes()
//
// Or load the same declaration from a catalog file:
//
//	cat, err := catalog.Load("types.yaml")
//	t, ok := cat.Type("point")
//
// See the schema package documentation for subtype dispatch, bit fields,
// dynamic arrays and the dump facility.
package structwire
