package transfer

import (
	stderrors "errors"
	"testing"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema"
)

func pointType() *schema.StructDef {
	return schema.Define("transfer_point", []schema.Field{
		schema.F(schema.UInt16, "x"),
		schema.F(schema.UInt16, "y"),
	}, schema.Options{Padding: 1})
}

func TestMarshalRoundTrip(t *testing.T) {
	pt := pointType()
	reg := NewRegistry()
	if err := reg.Register(pt); err != nil {
		t.Fatalf("Register: %v", err)
	}

	frame, err := Marshal(pt.New(schema.Values{"x": 3, "y": 9}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	v, err := reg.Unmarshal(frame)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.TypeOf() != pt {
		t.Errorf("decoded type %v, want transfer_point", v.TypeOf())
	}
	if v.Uint("x") != 3 || v.Uint("y") != 9 {
		t.Errorf("decoded x=%d y=%d", v.Uint("x"), v.Uint("y"))
	}
}

func TestMarshalSubtypeKeepsTerminalName(t *testing.T) {
	hdr := schema.Define("transfer_hdr", []schema.Field{
		schema.F(schema.UInt8, "kind"),
	}, schema.Options{
		Padding:    1,
		Classifier: func(s *schema.Struct) uint64 { return s.Uint("kind") },
	})
	ping := schema.Define("transfer_ping", []schema.Field{
		schema.F(schema.UInt32, "seq"),
	}, schema.Options{
		Padding:    1,
		Base:       hdr,
		ClassifyBy: []uint64{1},
		Init:       schema.PackValue(1, "kind"),
	})

	reg := NewRegistry()
	if err := reg.Register(ping); err != nil {
		t.Fatalf("Register: %v", err)
	}

	frame, err := Marshal(ping.New(schema.Values{"seq": 7}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	v, err := reg.Unmarshal(frame)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.TypeOf() != ping {
		t.Errorf("decoded type %v, want transfer_ping", v.TypeOf())
	}
	if v.Uint("seq") != 7 || v.Uint("kind") != 1 {
		t.Errorf("decoded seq=%d kind=%d", v.Uint("seq"), v.Uint("kind"))
	}
}

func TestMarshalCompressesLargePayloads(t *testing.T) {
	blob := schema.Define("transfer_blob", []schema.Field{
		schema.F(schema.Bytes(4096), "data"),
	}, schema.Options{Padding: 1})

	frame, err := Marshal(blob.New())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var env envelope
	if err := decMode.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Flags&flagZstd == 0 {
		t.Error("4 KiB of zeros did not take the compressed path")
	}
	if env.Size != 4096 {
		t.Errorf("declared size %d, want 4096", env.Size)
	}
	if len(env.Payload) >= 4096 {
		t.Errorf("compressed payload is %d bytes", len(env.Payload))
	}

	reg := NewRegistry()
	if err := reg.Register(blob); err != nil {
		t.Fatalf("Register: %v", err)
	}
	v, err := reg.Unmarshal(frame)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := v.Bytes("data"); len(got) != 0 {
		t.Errorf("zero block decoded to %d bytes", len(got))
	}
}

func TestMarshalSkipsCompressionWhenLarger(t *testing.T) {
	pt := pointType()
	frame, err := Marshal(pt.New(schema.Values{"x": 0x1234, "y": 0x5678}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var env envelope
	if err := decMode.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Flags&flagZstd != 0 {
		t.Error("4-byte payload took the compressed path")
	}
	if len(env.Payload) != 4 {
		t.Errorf("payload is % x", env.Payload)
	}
}

func TestUnmarshalRejectsTamperedPayload(t *testing.T) {
	pt := pointType()
	reg := NewRegistry()
	if err := reg.Register(pt); err != nil {
		t.Fatalf("Register: %v", err)
	}
	frame, err := Marshal(pt.New(schema.Values{"x": 1, "y": 2}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var env envelope
	if err := decMode.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	env.Payload[0] ^= 0xff
	tampered, err := encMode.Marshal(&env)
	if err != nil {
		t.Fatalf("re-encode envelope: %v", err)
	}

	_, err = reg.Unmarshal(tampered)
	if !errors.IsBadFormat(err) {
		t.Errorf("tampered payload gave %v, want a bad_format error", err)
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	pt := pointType()
	frame, err := Marshal(pt.New())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, err = NewRegistry().Unmarshal(frame)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindBadDefinition {
		t.Errorf("unknown type gave %v, want a bad_definition error", err)
	}
	if e != nil && e.Type != "transfer_point" {
		t.Errorf("error names type %q", e.Type)
	}
}

func TestUnmarshalGarbageFrame(t *testing.T) {
	_, err := NewRegistry().Unmarshal([]byte{0xff, 0x00, 0x13})
	if !errors.IsBadFormat(err) {
		t.Errorf("garbage frame gave %v, want a bad_format error", err)
	}
}

func TestRegistryRejectsConflicts(t *testing.T) {
	reg := NewRegistry()
	pt := pointType()
	if err := reg.Register(pt); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(pt); err != nil {
		t.Errorf("re-registering the same type: %v", err)
	}

	other := schema.Define("transfer_point", []schema.Field{
		schema.F(schema.UInt32, "x"),
	}, schema.Options{Padding: 1})
	if err := reg.Register(other); err == nil {
		t.Error("conflicting registration succeeded")
	}

	names := reg.Names()
	if len(names) != 1 || names[0] != "transfer_point" {
		t.Errorf("Names() = %v", names)
	}
}
