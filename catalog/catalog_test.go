package catalog

import (
	stderrors "errors"
	"testing"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema"
)

const messageCatalog = `
types:
  - name: header
    kind: struct
    padding: 1
    classifier: {field: type}
    size: {field: length, limit: 65535}
    prepack: {realsize: [length]}
    fields:
      - {name: length, type: uint16}
      - {name: type, type: uint8}
      - {type: uint8}
  - name: ping
    kind: struct
    base: header
    padding: 1
    classifyby: [1]
    init: {set: {type: 1}}
    fields:
      - {name: seq, type: uint32}
  - name: pong
    kind: struct
    base: header
    padding: 1
    classifyby: [2]
    init: {set: {type: 2}}
    fields:
      - {name: seq, type: uint32}
      - {name: delay, type: uint32}
`

func TestParseCompilesSubtypeChain(t *testing.T) {
	c, err := Parse([]byte(messageCatalog))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wantNames := []string{"header", "ping", "pong"}
	names := c.Names()
	if len(names) != len(wantNames) {
		t.Fatalf("Names() = %v", names)
	}
	for i, n := range wantNames {
		if names[i] != n {
			t.Fatalf("Names() = %v, want %v", names, wantNames)
		}
	}

	hdrT, ok := c.Type("header")
	if !ok {
		t.Fatal("header missing from the catalog")
	}
	hdr, ok := hdrT.(*schema.StructDef)
	if !ok {
		t.Fatalf("header compiled to %T", hdrT)
	}
	pingT, _ := c.Type("ping")
	ping := pingT.(*schema.StructDef)

	// declared hooks drive instantiation and round trips
	v := ping.New(schema.Values{"seq": 42})
	if got := v.Uint("type"); got != 1 {
		t.Errorf("init hook: type = %d, want 1", got)
	}
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if len(data) != 8 || data[1] != 8 {
		t.Fatalf("encoded % x, want an 8-byte record with its length stored", data)
	}
	got, n, err := hdr.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 8 {
		t.Errorf("consumed %d bytes, want 8", n)
	}
	if got.TypeOf() != ping {
		t.Errorf("classifier dispatched to %v, want ping", got.TypeOf())
	}
	if got.Uint("seq") != 42 {
		t.Errorf("seq = %d", got.Uint("seq"))
	}
}

func TestParseEnumAndBitfield(t *testing.T) {
	c, err := Parse([]byte(`
types:
  - name: flags
    kind: enum
    type: uint8
    bitwise: true
    values: {ACK: 1, SYN: 2, FIN: 4}
  - name: lanes
    kind: bitfield
    type: uint32
    init: {set: {busy: 1}}
    bits:
      - {width: 1, name: busy}
      - {width: 7}
      - {width: 24, name: id}
  - name: frame
    kind: struct
    padding: 1
    fields:
      - {name: flags, type: flags}
      - {name: lanes, type: lanes}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	flagsT, _ := c.Type("flags")
	flags, ok := flagsT.(*schema.EnumDef)
	if !ok {
		t.Fatalf("flags compiled to %T", flagsT)
	}
	if got := flags.ToString(3); got != "ACK SYN" {
		t.Errorf("ToString(3) = %q", got)
	}

	frameT, _ := c.Type("frame")
	frame := frameT.(*schema.StructDef)
	v := frame.New()
	if got := v.Record("lanes").Uint("busy"); got != 1 {
		t.Errorf("bitfield init: busy = %d, want 1", got)
	}
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if len(data) != 5 || data[1] != 0x80 {
		t.Fatalf("encoded % x", data)
	}

	d := frame.Dump(frame.New(schema.Values{"flags": uint64(5)}), schema.DumpOptions{TypeTag: schema.TypeTagNone})
	if got, _ := d.Get("flags"); got != "ACK FIN" {
		t.Errorf("dumped flags = %v, want ACK FIN", got)
	}
}

func TestParseVariant(t *testing.T) {
	c, err := Parse([]byte(`
types:
  - name: tag_hdr
    kind: struct
    padding: 1
    fields:
      - {name: tag, type: uint8}
  - name: msg
    kind: variant
    header: tag_hdr
    classifier: {field: tag}
  - name: msg_wide
    kind: struct
    base: msg
    padding: 1
    classifyby: [1]
    init: {set: {tag: 1}}
    fields:
      - {name: value, type: uint32}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msgT, _ := c.Type("msg")
	msg, ok := msgT.(*schema.Variant)
	if !ok {
		t.Fatalf("msg compiled to %T", msgT)
	}
	wideT, _ := c.Type("msg_wide")

	v, n, err := msg.Parse([]byte{0x01, 0x00, 0x00, 0x00, 0x07})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 5 || v.TypeOf() != wideT {
		t.Fatalf("parse: n=%d type=%v", n, v.TypeOf())
	}
	if v.Uint("value") != 7 {
		t.Errorf("value = %d", v.Uint("value"))
	}
}

func TestParseProblems(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"duplicate name", `
types:
  - {name: a, kind: struct, padding: 1, fields: [{name: x, type: uint8}]}
  - {name: a, kind: struct, padding: 1, fields: [{name: y, type: uint8}]}
`},
		{"unresolved reference", `
types:
  - {name: a, kind: struct, padding: 1, fields: [{name: x, type: nosuch}]}
`},
		{"missing kind", `
types:
  - {name: a, fields: [{name: x, type: uint8}]}
`},
		{"missing name", `
types:
  - {kind: struct, fields: [{name: x, type: uint8}]}
`},
		{"enum without values", `
types:
  - {name: e, kind: enum, type: uint8}
`},
		{"prepack with two forms", `
types:
  - name: a
    kind: struct
    padding: 1
    prepack: {realsize: [x], size: [x]}
    fields: [{name: x, type: uint16}]
`},
		{"criteria without base", `
types:
  - name: a
    kind: struct
    padding: 1
    criteria: {field: x, equals: 1}
    fields: [{name: x, type: uint8}]
`},
		{"bitfield width overflow", `
types:
  - name: b
    kind: bitfield
    type: uint8
    bits: [{width: 9, name: x}]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse succeeded, want a definitions error")
			}
			var de *errors.DefinitionsError
			if !stderrors.As(err, &de) {
				t.Fatalf("err = %T (%v), want *errors.DefinitionsError", err, err)
			}
			if len(de.Problems) == 0 {
				t.Error("definitions error has no problems")
			}
		})
	}
}

func TestParseCollectsAllProblems(t *testing.T) {
	_, err := Parse([]byte(`
types:
  - {name: a, kind: struct, padding: 1, fields: [{name: x, type: nosuch}]}
  - {name: b, kind: enum, type: uint8}
`))
	var de *errors.DefinitionsError
	if !stderrors.As(err, &de) {
		t.Fatalf("err = %v", err)
	}
	if len(de.Problems) != 2 {
		t.Errorf("collected %d problems, want 2", len(de.Problems))
	}
}

func TestParsePrimitiveAlias(t *testing.T) {
	c, err := Parse([]byte(`
types:
  - {name: port, kind: primitive, type: uint16}
  - {name: hdr, kind: struct, padding: 1, fields: [{name: src, type: port}, {name: dst, type: port}]}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hdr := mustStruct(t, c, "hdr")
	v := hdr.New(schema.Values{"src": 80, "dst": 443})
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if len(data) != 4 || data[1] != 80 {
		t.Fatalf("encoded % x", data)
	}
}

func TestParseVariableTailArray(t *testing.T) {
	c, err := Parse([]byte(`
types:
  - name: list
    kind: struct
    padding: 1
    fields:
      - {name: count, type: uint8}
      - {name: items, type: uint16, count: 0}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	list := mustStruct(t, c, "list")
	v, err := list.Create([]byte{2, 0, 5, 0, 6})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	items := v.Uints("items")
	if len(items) != 2 || items[0] != 5 || items[1] != 6 {
		t.Errorf("items = %v", items)
	}
}

func mustStruct(t *testing.T, c *Catalog, name string) *schema.StructDef {
	t.Helper()
	typ, ok := c.Type(name)
	if !ok {
		t.Fatalf("%s missing from the catalog", name)
	}
	sd, ok := typ.(*schema.StructDef)
	if !ok {
		t.Fatalf("%s compiled to %T", name, typ)
	}
	return sd
}
