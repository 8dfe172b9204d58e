package schema

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/Velocidex/ordereddict"
)

func TestDumpTypeTags(t *testing.T) {
	pt := Define("tag_point", []Field{
		F(UInt8, "x"),
		F(UInt8, "y"),
	}, Options{Padding: 1})
	v := pt.New(Values{"x": 1, "y": 2})

	flat := pt.Dump(v)
	if got, _ := flat.Get("_type"); got != "<tag_point>" {
		t.Errorf("flat tag = %v", got)
	}

	keyed := pt.Dump(v, DumpOptions{TypeTag: TypeTagKey})
	if keys := keyed.Keys(); len(keys) != 1 || keys[0] != "<tag_point>" {
		t.Fatalf("keyed dump keys %v", keyed.Keys())
	}
	inner, _ := keyed.Get("<tag_point>")
	if _, ok := inner.(*ordereddict.Dict); !ok {
		t.Fatalf("keyed dump inner is %T", inner)
	}

	none := pt.Dump(v, DumpOptions{TypeTag: TypeTagNone})
	if none.Len() != 2 {
		t.Errorf("untagged dump has %d keys, want 2", none.Len())
	}
}

func TestDumpResidualAndChainOrder(t *testing.T) {
	base := Define("dump_base", []Field{
		F(UInt16, "length"),
		F(UInt8, "kind"),
	}, Options{
		Size:       SizeFromField(0xffff, "length"),
		Classifier: func(s *Struct) uint64 { return s.Uint("kind") },
		Padding:    1,
	})
	sub := Define("dump_sub", []Field{
		F(UInt8, "flags"),
	}, Options{
		Base:       base,
		ClassifyBy: []uint64{1},
		Padding:    1,
	})
	_ = sub

	v, err := base.Create([]byte{0x00, 0x06, 0x01, 0x07, 0xca, 0xfe})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	d := Dump(v, DumpOptions{IncludeResidual: true}).(*ordereddict.Dict)
	want := []string{"length", "kind", "flags", "_extra", "_type"}
	if !reflect.DeepEqual(d.Keys(), want) {
		t.Fatalf("dump keys %v, want %v", d.Keys(), want)
	}
	if got, _ := d.Get("_type"); got != "<dump_sub>" {
		t.Errorf("_type = %v, most derived type expected", got)
	}

	// without the option residual bytes stay out
	d2 := Dump(v).(*ordereddict.Dict)
	if _, ok := d2.Get("_extra"); ok {
		t.Error("_extra present without IncludeResidual")
	}
}

func TestDumpUserFieldsComeLast(t *testing.T) {
	pt := Define("late_point", []Field{
		F(UInt8, "x"),
		F(UInt8, "y"),
	}, Options{Padding: 1})
	v := pt.New()
	v.Set("note", []byte("tmp"))
	v.Set("x", uint64(5))

	d := pt.Dump(v, DumpOptions{TypeTag: TypeTagNone, ToString: true})
	want := []string{"x", "y", "note"}
	if !reflect.DeepEqual(d.Keys(), want) {
		t.Fatalf("dump keys %v, want %v", d.Keys(), want)
	}
	if got, _ := d.Get("note"); got != "tmp" {
		t.Errorf("note = %v, want the string form", got)
	}
}

func TestDumpListFormatter(t *testing.T) {
	color := DefineEnum("rgb", UInt8, false, map[string]uint64{
		"RED":   1,
		"GREEN": 2,
		"BLUE":  3,
	})
	pal := Define("palette", []Field{
		F(ArrayOf(color, 3), "colors"),
	}, Options{Padding: 1})

	v, err := pal.Create([]byte{1, 3, 9})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	d := pal.Dump(v, DumpOptions{TypeTag: TypeTagNone})
	got, _ := d.Get("colors")
	want := []any{"RED", "BLUE", uint64(9)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("colors dumped as %v, want %v", got, want)
	}

	raw := pal.Dump(v, DumpOptions{Raw: true, TypeTag: TypeTagNone})
	rawGot, _ := raw.Get("colors")
	if !reflect.DeepEqual(rawGot, []any{uint64(1), uint64(3), uint64(9)}) {
		t.Errorf("raw colors dumped as %v", rawGot)
	}
}

func TestDumpFormatterFailureIsSwallowed(t *testing.T) {
	boom := stderrors.New("boom")
	d := Define("fragile", []Field{
		F(UInt8, "v"),
	}, Options{
		Padding: 1,
		Formatter: func(*ordereddict.Dict) (*ordereddict.Dict, error) {
			return nil, boom
		},
	})

	v := d.New(Values{"v": uint64(3)})
	out := d.Dump(v, DumpOptions{TypeTag: TypeTagNone})
	if out == nil {
		t.Fatal("dump dropped the value")
	}
	if got, _ := out.Get("v"); got != uint64(3) {
		t.Errorf("v = %v (%T), want the unformatted value", got, got)
	}
}

func TestDumpWholeRecordFormatter(t *testing.T) {
	d := Define("summed", []Field{
		F(UInt8, "a"),
		F(UInt8, "b"),
	}, Options{
		Padding: 1,
		Formatter: func(m *ordereddict.Dict) (*ordereddict.Dict, error) {
			av, _ := m.Get("a")
			bv, _ := m.Get("b")
			au, _ := asUint64(av)
			bu, _ := asUint64(bv)
			m.Set("sum", au+bu)
			return m, nil
		},
	})

	v, err := d.Create([]byte{2, 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	out := d.Dump(v, DumpOptions{TypeTag: TypeTagNone})
	if got, _ := out.Get("sum"); got != uint64(5) {
		t.Errorf("sum = %v, want 5", got)
	}
	raw := d.Dump(v, DumpOptions{Raw: true, TypeTag: TypeTagNone})
	if _, ok := raw.Get("sum"); ok {
		t.Error("raw dump ran the record formatter")
	}
}

func TestDumpNonRecordValues(t *testing.T) {
	if got := Dump([]uint64{1, 2}); !reflect.DeepEqual(got, []any{uint64(1), uint64(2)}) {
		t.Errorf("Dump([]uint64) = %v", got)
	}
	if got := Dump([]byte{0xff}, DumpOptions{ToString: true}); got != `"\xff"` {
		t.Errorf("Dump(invalid utf8) = %v", got)
	}
	if got := Dump([]byte("ok"), DumpOptions{ToString: true}); got != "ok" {
		t.Errorf("Dump(utf8) = %v", got)
	}
	if got := Dump(nil); got != nil {
		t.Errorf("Dump(nil) = %v", got)
	}
}
