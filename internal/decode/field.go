package decode

import "github.com/danferreira/gannounce/internal/bencode"

// Field is one row of a structure's descriptor table.
type Field struct {
	Key      string
	Required bool

	assign func(dict *bencode.Value) error
}

// Required describes a member that must be present. The decoded value is
// stored in dst.
func Required[T any](key string, dst *T, dec Decoder[T]) Field {
	return Field{
		Key:      key,
		Required: true,
		assign: func(dict *bencode.Value) error {
			out, err := Get(dict, key, dec)
			if err != nil {
				return err
			}
			*dst = out
			return nil
		},
	}
}

// Optional describes a member that may be absent. dst is left nil when
// the key is missing.
func Optional[T any](key string, dst **T, dec Decoder[T]) Field {
	return Field{
		Key: key,
		assign: func(dict *bencode.Value) error {
			out, err := Lookup(dict, key, dec)
			if err != nil {
				return err
			}
			*dst = out
			return nil
		},
	}
}

// Struct applies fields to dict in table order and stops at the first
// failure. Callers decode into a scratch value and keep it only when
// Struct succeeds.
func Struct(dict *bencode.Value, fields ...Field) error {
	if _, err := Dict(dict); err != nil {
		return err
	}

	for _, f := range fields {
		if err := f.assign(dict); err != nil {
			return err
		}
	}

	return nil
}
