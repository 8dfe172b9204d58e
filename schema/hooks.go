package schema

import (
	"github.com/structwire/structwire/errors"
)

// SizeFromField returns a Size hook reading the record's total size from the
// field at path. Sizes beyond limit fail with a bad_len error, guarding
// against unbounded allocation from a corrupt length field.
func SizeFromField(limit int, path ...string) SizeFunc {
	return func(s *Struct) (int, error) {
		v, ok := s.GetPath(path...)
		if !ok {
			return 0, errors.FieldMissing(errors.PhaseParse, path[:len(path)-1], path[len(path)-1])
		}
		n, ok := asUint64(v)
		if !ok {
			return 0, errors.BadValue(errors.PhaseParse, path, v, "size field must be an integer, got %T", v)
		}
		if limit >= 0 && n > uint64(limit) {
			return 0, errors.BadLen(errors.PhaseParse, "", "struct size %d exceeds the limit of %d", n, limit)
		}
		return int(n), nil
	}
}

// PackPaddedSize returns a Prepack hook storing the record's padded size into
// the field at path, the reverse of a SizeFromField hook returning padded
// sizes.
func PackPaddedSize(path ...string) PrepackFunc {
	return func(s *Struct) error {
		s.SetPath(uint64(s.PaddedSize()), path...)
		return nil
	}
}

// PackRealSize returns a Prepack hook storing the record's size without
// trailing padding into the field at path.
func PackRealSize(path ...string) PrepackFunc {
	return func(s *Struct) error {
		s.SetPath(uint64(s.RealSize()), path...)
		return nil
	}
}

// PackValue returns an Init hook storing a fixed value into the field at
// path, typically the classify value identifying a subtype.
func PackValue(v any, path ...string) InitFunc {
	return func(s *Struct) {
		s.SetPath(v, path...)
	}
}

// PackExpr returns a Prepack hook storing the result of fn into the field at
// path, e.g. an element count computed from an array field.
func PackExpr(fn func(*Struct) any, path ...string) PrepackFunc {
	return func(s *Struct) error {
		s.SetPath(fn(s), path...)
		return nil
	}
}
