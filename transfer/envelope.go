package transfer

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema"
)

// envelope is the CBOR frame a value travels in. The payload holds the
// value's serialized bytes, the digest the BLAKE3-256 of those bytes before
// any compression, so a corrupted or truncated payload is caught before the
// receiver tries to decode it.
type envelope struct {
	Type    string `cbor:"type"`
	Flags   uint8  `cbor:"flags"`
	Size    uint64 `cbor:"size"`
	Digest  []byte `cbor:"digest"`
	Payload []byte `cbor:"payload"`
}

// flagZstd marks a zstd-compressed payload. Size then holds the
// uncompressed byte count.
const flagZstd uint8 = 1 << 0

// encMode is the CBOR encoder configured with Core Deterministic Encoding
// (RFC 8949 §4.2), so the same value always frames to identical bytes.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields, so envelope
// extensions stay forward compatible.
var decMode cbor.DecMode

// zstdEncoder and zstdDecoder are reused across calls; both are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("transfer: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("transfer: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transfer: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("transfer: zstd decoder initialization failed: " + err.Error())
	}
}

// Marshal frames a value for cross-process transfer. The value's type must
// carry a declared name; the receiver resolves that name through its own
// registry. The payload is zstd-compressed when that actually shrinks it.
func Marshal(v *schema.Struct) ([]byte, error) {
	t := v.TypeOf()
	name := t.Name()
	if name == "" {
		return nil, errors.New(errors.PhasePack, errors.KindBadValue).
			Detail("anonymous values cannot travel in envelopes").
			Build()
	}
	payload, err := v.ToBytes()
	if err != nil {
		return nil, err
	}
	digest := blake3.Sum256(payload)

	env := envelope{
		Type:    name,
		Size:    uint64(len(payload)),
		Digest:  digest[:],
		Payload: payload,
	}
	if compressed := zstdEncoder.EncodeAll(payload, nil); len(compressed) < len(payload) {
		env.Flags |= flagZstd
		env.Payload = compressed
	}

	frame, err := encMode.Marshal(&env)
	if err != nil {
		return nil, errors.Wrap(errors.PhasePack, errors.KindBadValue, err, "envelope encoding failed")
	}
	Logger().Debug("value framed",
		zap.String("type", name),
		zap.Int("payload", len(payload)),
		zap.Int("frame", len(frame)),
		zap.Bool("compressed", env.Flags&flagZstd != 0))
	return frame, nil
}

// Unmarshal opens an envelope against the process-wide registry.
func Unmarshal(frame []byte) (*schema.Struct, error) {
	return defaultRegistry.Unmarshal(frame)
}

// Unmarshal opens an envelope: it resolves the named type, undoes the
// payload compression, verifies the digest and decodes the value.
func (r *Registry) Unmarshal(frame []byte) (*schema.Struct, error) {
	var env envelope
	if err := decMode.Unmarshal(frame, &env); err != nil {
		return nil, errors.Wrap(errors.PhaseCreate, errors.KindBadFormat, err, "envelope is not valid CBOR")
	}
	t, ok := r.Lookup(env.Type)
	if !ok {
		return nil, errors.New(errors.PhaseCreate, errors.KindBadDefinition).
			Type(env.Type).
			Detail("type is not registered").
			Build()
	}

	payload := env.Payload
	if env.Flags&flagZstd != 0 {
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, env.Size))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseCreate, errors.KindBadFormat, err, "payload decompression failed")
		}
		payload = out
	}
	if uint64(len(payload)) != env.Size {
		return nil, errors.BadLen(errors.PhaseCreate, env.Type,
			"payload is %d bytes, envelope declares %d", len(payload), env.Size)
	}
	digest := blake3.Sum256(payload)
	if !bytes.Equal(digest[:], env.Digest) {
		return nil, errors.BadFormat(errors.PhaseCreate, env.Type, "payload digest mismatch")
	}

	v, err := t.Create(payload)
	if err != nil {
		return nil, err
	}
	Logger().Debug("value opened",
		zap.String("type", env.Type),
		zap.Int("payload", len(payload)))
	return v, nil
}
