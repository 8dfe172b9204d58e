// Package errors provides structured error types for the structwire library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: schema type name, field
// path, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseParse, errors.KindBadLen).
//		Type("lldp_tlv").
//		Path("header", "length").
//		Detail("size %d exceeds limit %d", 512, 511).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BadFormat(errors.PhaseCreate, "uint32", "need exactly 4 bytes, have %d", n)
//	err := errors.Definition("color", "bitfield needs 4 bytes, base holds 2")
//
// ErrNeedMore is the retry signal for stream parsing: it means the input
// buffer ends before the record does, never that the data is corrupt. Check
// it with IsNeedMore or errors.Is.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
