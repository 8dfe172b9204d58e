package schema

import (
	"testing"
)

func TestEnumNames(t *testing.T) {
	state := DefineEnum("state", UInt16, false, map[string]uint64{
		"IDLE":    0,
		"RUNNING": 1,
		"DONE":    2,
	})

	if got := state.NameOf(1, "?"); got != "RUNNING" {
		t.Errorf("NameOf(1) = %q", got)
	}
	if got := state.NameOf(9, "?"); got != "?" {
		t.Errorf("NameOf(9) = %q, want the default", got)
	}
	if got := state.ValueOf("DONE", 99); got != 2 {
		t.Errorf("ValueOf(DONE) = %d", got)
	}
	if got := state.ValueOf("MISSING", 99); got != 99 {
		t.Errorf("ValueOf(MISSING) = %d, want the default", got)
	}
	if !state.Has(2) || state.Has(3) {
		t.Error("Has is wrong")
	}
	if got := state.ToString(2); got != "DONE" {
		t.Errorf("ToString(2) = %q", got)
	}
	if got := state.ToString(7); got != "7" {
		t.Errorf("ToString(7) = %q, want the decimal fallback", got)
	}
}

func TestEnumBitwiseFormat(t *testing.T) {
	flags := DefineEnum("flags", UInt8, true, map[string]uint64{
		"A": 0x1,
		"B": 0x2,
		"C": 0x4,
		"D": 0x8,
		"E": 0x9, // covers A|D, wins over them greedily
	})

	tests := []struct {
		value uint64
		want  any
	}{
		{0x1, "A"},
		{0x3, "A B"},
		{0x9, "E"},
		{0xb, "B E"},
		{0x1f, "B C E 0x10"},
		{0x10, "0x10"},
		{0x0, uint64(0)},
	}
	for _, tt := range tests {
		got, err := flags.format(tt.value)
		if err != nil {
			t.Errorf("format(%#x): %v", tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("format(%#x) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestEnumExtendAndMerge(t *testing.T) {
	base := DefineEnum("proto", UInt8, false, map[string]uint64{
		"TCP": 6,
		"UDP": 17,
	})
	ext := base.Extend("proto_ext", map[string]uint64{
		"SCTP": 132,
		"UDP":  18, // new names win
	})

	if got := ext.NameOf(132, "?"); got != "SCTP" {
		t.Errorf("extended NameOf(132) = %q", got)
	}
	if got := ext.ValueOf("UDP", 0); got != 18 {
		t.Errorf("extended ValueOf(UDP) = %d, want the override", got)
	}
	if got := base.ValueOf("UDP", 0); got != 17 {
		t.Errorf("base enum changed by Extend: UDP = %d", got)
	}

	merged := base.Merge(DefineEnum("", UInt8, false, map[string]uint64{"ICMP": 1}))
	if got := merged.NameOf(1, "?"); got != "ICMP" {
		t.Errorf("merged NameOf(1) = %q", got)
	}
	if got := merged.NameOf(6, "?"); got != "TCP" {
		t.Errorf("merged NameOf(6) = %q", got)
	}
}

func TestEnumAsFieldType(t *testing.T) {
	proto := DefineEnum("ip_proto", UInt8, false, map[string]uint64{
		"TCP": 6,
		"UDP": 17,
	})
	pkt := Define("pkt", []Field{
		F(proto, "proto"),
		F(UInt16, "len"),
	}, Options{Padding: 1})

	v := pkt.New(Values{"proto": 6, "len": 20})
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if len(data) != 3 || data[0] != 6 {
		t.Fatalf("encoded % x", data)
	}

	d := pkt.Dump(v, DumpOptions{TypeTag: TypeTagNone})
	got, _ := d.Get("proto")
	if got != "TCP" {
		t.Errorf("dumped proto = %v, want TCP", got)
	}
	p, err := pkt.Create(data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	raw := pkt.Dump(p, DumpOptions{Raw: true, TypeTag: TypeTagNone})
	if got, _ := raw.Get("proto"); got != uint64(6) {
		t.Errorf("raw dumped proto = %v (%T), want 6", got, got)
	}

	// a 16-bit variant of the same names
	wide := proto.AsType(UInt16)
	pkt2 := Define("pkt2", []Field{F(wide, "proto")}, Options{Padding: 1})
	v2 := pkt2.New(Values{"proto": 17})
	if b, err := v2.ToBytes(); err != nil || len(b) != 2 {
		t.Fatalf("encoded % x (err %v)", b, err)
	}
	d2 := pkt2.Dump(v2, DumpOptions{TypeTag: TypeTagNone})
	if got, _ := d2.Get("proto"); got != "UDP" {
		t.Errorf("dumped proto = %v, want UDP", got)
	}
}
