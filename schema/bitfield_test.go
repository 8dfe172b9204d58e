package schema

import (
	"bytes"
	"testing"
)

var (
	colorBits = DefineBitfield("color", UInt32, []Bits{
		{Width: 1, Name: "a"},
		{Width: 9, Name: "r"},
		{Width: 11, Name: "g"},
		{Width: 11, Name: "b"},
	}, Options{Init: PackValue(uint64(1), "a")})

	laneBits = DefineBitfield("lanes", UInt64, []Bits{
		{Width: 3, Name: "pre"},
		{Width: 1, Name: "bits", Count: 50},
		{Width: 4}, // padding bits
		{Width: 7, Name: "post"},
	})
)

func TestBitfieldScalarFields(t *testing.T) {
	c := colorBits.New(Values{"a": 0, "r": 0x77, "g": 0x312, "b": 0x57a})
	data, err := c.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	// 0b0_001110111_01100010010_10101111010
	want := []byte{0x1d, 0xd8, 0x95, 0x7a}
	if !bytes.Equal(data, want) {
		t.Fatalf("encoded % x, want % x", data, want)
	}

	p, n, err := colorBits.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 4 {
		t.Errorf("consumed %d bytes, want 4", n)
	}
	if dumpJSON(t, c) != dumpJSON(t, p) {
		t.Errorf("parse dump mismatch")
	}
	cr, err := colorBits.Create(data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if dumpJSON(t, c) != dumpJSON(t, cr) {
		t.Errorf("create dump mismatch")
	}
}

func TestBitfieldInitDefault(t *testing.T) {
	c := colorBits.New()
	data, err := c.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !bytes.Equal(data, []byte{0x80, 0x00, 0x00, 0x00}) {
		t.Fatalf("encoded % x, want 80 00 00 00", data)
	}
}

func TestBitfieldArraysAndPaddingBits(t *testing.T) {
	alternating := make([]uint64, 50)
	for i := range alternating {
		alternating[i] = uint64(i & 1)
	}
	c := laneBits.New(Values{"pre": 2, "bits": alternating, "post": 0x3f})
	data, err := c.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{0x4a, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xa8, 0x3f}
	if !bytes.Equal(data, want) {
		t.Fatalf("encoded % x, want % x", data, want)
	}

	p, _, err := laneBits.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if dumpJSON(t, c) != dumpJSON(t, p) {
		t.Errorf("parse dump mismatch")
	}
	got := p.Uints("bits")
	if len(got) != 50 || got[0] != 0 || got[1] != 1 || got[49] != 1 {
		t.Errorf("decoded bits %v", got)
	}
	if p.Has("") {
		t.Error("padding bits leaked into the field namespace")
	}
}

func TestBitfieldInsideRecord(t *testing.T) {
	preNames := DefineEnum("pre_enum", UInt8, true, map[string]uint64{
		"PRE_A": 0x1,
		"PRE_B": 0x2,
		"PRE_C": 0x4,
	})
	frame := Define("frame", []Field{
		F(laneBits, "s1"),
		F(ArrayOf(colorBits, 2), "colors"),
		F(ArrayOf(laneBits, 0), "extras"),
	}, Options{
		Size:    SizeFromField(128, "s1", "post"),
		Prepack: PackPaddedSize("s1", "post"),
		Extend:  map[string]Type{"s1.pre": preNames},
	})

	ones := make([]uint64, 50)
	for i := range ones {
		ones[i] = 1
	}

	v := frame.New()
	s1 := v.Record("s1")
	s1.Set("pre", uint64(2))
	s1.Uints("bits")[17] = 1
	s1.Uints("bits")[29] = 1
	colors := v.Records("colors")
	colors[0].Set("r", uint64(10))
	colors[0].Set("b", uint64(12))
	colors[1].Set("a", uint64(0))
	colors[1].Set("g", uint64(9))
	v.Set("extras", append(v.Records("extras"),
		laneBits.New(Values{"pre": 1, "post": 0x1f}),
		laneBits.New(Values{"pre": 2, "bits": ones, "post": 0x17}),
	))

	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{
		0x40, 0x00, 0x08, 0x00, 0x80, 0x00, 0x00, 0x20,
		0x82, 0x80, 0x00, 0x0c, 0x00, 0x00, 0x48, 0x00,
		0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x1f,
		0x5f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xf8, 0x17,
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("encoded\n% x, want\n% x", data, want)
	}
	if got := s1.Uint("post"); got != 32 {
		t.Errorf("stored size %d, want the padded size 32", got)
	}

	p, n, err := frame.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 32 {
		t.Errorf("consumed %d bytes, want 32", n)
	}
	if dumpJSON(t, v) != dumpJSON(t, p) {
		t.Errorf("parse dump mismatch")
	}
	c, err := frame.Create(data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if dumpJSON(t, v) != dumpJSON(t, c) {
		t.Errorf("create dump mismatch")
	}

	// the extended path formatter applies to the embedded bit field
	d := frame.Dump(p)
	s1d, ok := lookupPath(d, []string{"s1", "pre"})
	if !ok {
		t.Fatal("s1.pre missing from the dump")
	}
	if s1d != "PRE_B" {
		t.Errorf("s1.pre dumped as %v, want PRE_B", s1d)
	}
}
