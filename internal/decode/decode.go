// Package decode converts bencode value trees into typed values.
//
// Dict members are read either as required (absence is ErrMissingField)
// or optional (absence yields nil). In both modes a member that is present
// but has the wrong shape is an error. Structures are described by a table
// of Field descriptors and decoded all-or-nothing by Struct.
package decode

import (
	"fmt"

	"github.com/danferreira/gannounce/internal/bencode"
)

// Decoder converts one node into T.
type Decoder[T any] func(v *bencode.Value) (T, error)

// Parse runs the bencode parser and maps its failures to ErrParse.
func Parse(data []byte) (*bencode.Value, error) {
	v, err := bencode.Parse(data)
	if err != nil {
		return nil, &Error{Kind: ErrParse, Err: err}
	}

	return v, nil
}

func Int64(v *bencode.Value) (int64, error) {
	if v == nil || v.Kind != bencode.Integer {
		return 0, mismatch(ErrNotANumber, v)
	}

	return v.Int, nil
}

func String(v *bencode.Value) (string, error) {
	if v == nil || v.Kind != bencode.ByteString {
		return "", mismatch(ErrNotAString, v)
	}

	return string(v.Bytes), nil
}

func Bytes(v *bencode.Value) ([]byte, error) {
	if v == nil || v.Kind != bencode.ByteString {
		return nil, mismatch(ErrNotAString, v)
	}

	return v.Bytes, nil
}

// Dict accepts any dict node and returns it unchanged.
func Dict(v *bencode.Value) (*bencode.Value, error) {
	if v == nil || v.Kind != bencode.Dict {
		return nil, mismatch(ErrNotADict, v)
	}

	return v, nil
}

// List decodes a list node element by element.
func List[T any](elem Decoder[T]) Decoder[[]T] {
	return func(v *bencode.Value) ([]T, error) {
		if v == nil || v.Kind != bencode.List {
			return nil, mismatch(ErrNotAList, v)
		}

		out := make([]T, 0, len(v.Items))
		for i, item := range v.Items {
			x, err := elem(item)
			if err != nil {
				return nil, At(fmt.Sprintf("[%d]", i), err)
			}
			out = append(out, x)
		}

		return out, nil
	}
}

// Get reads a required member of dict.
func Get[T any](dict *bencode.Value, key string, dec Decoder[T]) (T, error) {
	var zero T

	if _, err := Dict(dict); err != nil {
		return zero, err
	}

	v, ok := dict.Lookup(key)
	if !ok {
		return zero, &Error{Field: key, Kind: ErrMissingField}
	}

	out, err := dec(v)
	if err != nil {
		return zero, At(key, err)
	}

	return out, nil
}

// Lookup reads an optional member of dict. It returns nil when key is
// absent and an error when key is present but does not decode.
func Lookup[T any](dict *bencode.Value, key string, dec Decoder[T]) (*T, error) {
	if _, err := Dict(dict); err != nil {
		return nil, err
	}

	v, ok := dict.Lookup(key)
	if !ok {
		return nil, nil
	}

	out, err := dec(v)
	if err != nil {
		return nil, At(key, err)
	}

	return &out, nil
}
