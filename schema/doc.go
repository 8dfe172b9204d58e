// Package schema compiles declarative binary record layouts into runnable
// codecs.
//
// A record is declared as an ordered field list plus structural options and
// compiles, once, into an immutable parser that converts between raw bytes
// and field-addressable values. The engine supports subtype dispatch driven
// by the data itself, bit-level sub-fields, fixed and variable arrays,
// alignment padding and an ordered human-readable dump for diagnostics.
//
// # Declaring records
//
// Fields pair a type with a name; anonymous primitive fields are padding and
// anonymous record fields embed their fields into the parent's namespace:
//
//	header := schema.Define("header", []schema.Field{
//	    schema.F(schema.UInt16, "length"),
//	    schema.F(schema.UInt8, "type"),
//	    schema.Embed(schema.UInt8), // padding
//	}, schema.Options{
//	    Size:    schema.SizeFromField(0xffff, "length"),
//	    Prepack: schema.PackRealSize("length"),
//	    Padding: 1,
//	})
//
// Simple nested types flatten into the parent's fixed layout at compile time,
// so a record built from integer fields decodes in a single pass.
//
// # Subtyping
//
// A record with trailing bytes can narrow into registered subtypes. The base
// declares how to compute a dispatch key, subtypes declare which keys select
// them:
//
//	base := schema.Define("base", fields, schema.Options{
//	    Size:       schema.SizeFromField(0xffff, "length"),
//	    Classifier: func(s *schema.Struct) uint64 { return s.Uint("type") },
//	})
//	ping := schema.Define("ping", pingFields, schema.Options{
//	    Base:       base,
//	    ClassifyBy: []uint64{1},
//	    Init:       schema.PackValue(uint64(1), "type"),
//	})
//
// Parsing the base resolves the chain automatically; each matched subtype
// consumes the residual bytes the previous layer left over.
//
// # Parse, create, new
//
// Every compiled type supports three ways to obtain a value: Parse decodes
// from the head of a stream buffer and reports errors.ErrNeedMore on
// truncation; Create decodes a byte range known to hold exactly one value;
// New builds a default-initialized value for packing:
//
//	v, n, err := header.Parse(buf)   // stream decode, n bytes consumed
//	v, err := header.Create(buf)     // whole-buffer decode
//	v := header.New(schema.Values{"type": 2})
//	data, err := v.ToBytes()
//
// Values are mutable and not safe for concurrent use. Compiled types are
// immutable and freely shared; define all types before decoding from
// multiple goroutines.
package schema
