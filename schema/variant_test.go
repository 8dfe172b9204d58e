package schema

import (
	"bytes"
	"testing"
)

// tagged message family: a one-byte tag header, then a tag-selected body.
func taggedFamily() (*Variant, *StructDef, *StructDef, *StructDef) {
	hdr := Define("tag_hdr", []Field{
		F(UInt8, "tag"),
	}, Options{Padding: 1})
	msg := DefineVariant("tagged_msg", hdr, Options{
		Classifier: func(s *Struct) uint64 { return s.Uint("tag") },
	})
	wide := Define("tagged_wide", []Field{
		F(UInt32, "value"),
	}, Options{
		Base:       msg,
		ClassifyBy: []uint64{1},
		Init:       PackValue(uint64(1), "tag"),
		Padding:    1,
	})
	narrow := Define("tagged_narrow", []Field{
		F(UInt16, "value"),
	}, Options{
		Base:       msg,
		ClassifyBy: []uint64{2},
		Init:       PackValue(uint64(2), "tag"),
		Padding:    1,
	})
	sized := Define("tagged_sized", []Field{
		F(UInt8, "len"),
		F(Raw, "body"),
	}, Options{
		Base:       msg,
		ClassifyBy: []uint64{3},
		Init:       PackValue(uint64(3), "tag"),
		Size:       SizeFromField(255, "len"),
		Prepack:    PackRealSize("len"),
		Padding:    1,
	})
	return msg, wide, narrow, sized
}

func TestVariantDispatch(t *testing.T) {
	msg, wide, narrow, sized := taggedFamily()

	v, n, err := msg.Parse([]byte{0x01, 0x00, 0x00, 0x00, 0x01})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 5 {
		t.Errorf("consumed %d bytes, want 5", n)
	}
	if v.TypeOf() != wide {
		t.Fatalf("dispatched to %v, want tagged_wide", v.TypeOf())
	}
	if got := v.Uint("value"); got != 1 {
		t.Errorf("value = %d, want 1", got)
	}

	v2, n, err := msg.Parse([]byte{0x02, 0xbe, 0xef, 0xaa})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 3 || v2.TypeOf() != narrow || v2.Uint("value") != 0xbeef {
		t.Errorf("narrow parse: n=%d type=%v value=%#x", n, v2.TypeOf(), v2.Uint("value"))
	}

	// a sized subtype bounds itself inside the stream
	v3, n, err := msg.Parse([]byte{0x03, 0x03, 'h', 'i', 0xff})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 4 || v3.TypeOf() != sized {
		t.Fatalf("sized parse: n=%d type=%v", n, v3.TypeOf())
	}
	if !bytes.Equal(v3.Bytes("body"), []byte("hi")) {
		t.Errorf("body = %q, want hi", v3.Bytes("body"))
	}
}

func TestVariantRoundTrip(t *testing.T) {
	msg, wide, _, sized := taggedFamily()

	w := wide.New(Values{"value": 1})
	if got := w.Uint("tag"); got != 1 {
		t.Fatalf("init tag = %d, want 1", got)
	}
	data, err := w.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !bytes.Equal(data, []byte{0x01, 0x00, 0x00, 0x00, 0x01}) {
		t.Fatalf("encoded % x", data)
	}

	s := sized.New(Values{"body": []byte("hello")})
	data, err = s.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !bytes.Equal(data, append([]byte{0x03, 0x06}, "hello"...)) {
		t.Fatalf("encoded % x", data)
	}
	back, err := msg.Create(data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if back.TypeOf() != sized {
		t.Fatalf("round trip dispatched to %v", back.TypeOf())
	}
	if dumpJSON(t, s) != dumpJSON(t, back) {
		t.Errorf("round-trip dump mismatch")
	}
}

func TestVariantUnregisteredTag(t *testing.T) {
	msg, _, _, _ := taggedFamily()

	v, err := msg.Create([]byte{0x09, 0xca, 0xfe})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.TypeOf() != msg {
		t.Errorf("unregistered tag dispatched to %v, want the variant itself", v.TypeOf())
	}
	if !bytes.Equal(v.Residual(), []byte{0xca, 0xfe}) {
		t.Errorf("residual % x, want ca fe", v.Residual())
	}
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !bytes.Equal(data, []byte{0x09, 0xca, 0xfe}) {
		t.Errorf("re-encoded % x", data)
	}

	// parse mode takes the header and leaves the rest in the stream
	p, n, err := msg.Parse([]byte{0x09, 0xca, 0xfe})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 1 || p.TypeOf() != msg {
		t.Errorf("parse: n=%d type=%v", n, p.TypeOf())
	}
}

func TestVariantDumpOrder(t *testing.T) {
	msg, wide, _, _ := taggedFamily()
	_ = msg

	v := wide.New(Values{"value": 7})
	d := wide.Dump(v, DumpOptions{TypeTag: TypeTagFlat})
	keys := d.Keys()
	if len(keys) != 3 || keys[0] != "tag" || keys[1] != "value" || keys[2] != "_type" {
		t.Fatalf("dump keys %v, want [tag value _type]", keys)
	}
	tt, _ := d.Get("_type")
	if tt != "<tagged_wide>" {
		t.Errorf("_type = %v, want <tagged_wide>", tt)
	}
}
