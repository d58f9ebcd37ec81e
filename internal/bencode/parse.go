package bencode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	zb "github.com/zeebo/bencode"
)

var (
	ErrEmpty        = errors.New("empty document")
	ErrTrailingData = errors.New("trailing data after value")
	ErrDuplicateKey = errors.New("duplicate dict key")
	ErrKeyNotString = errors.New("dict key is not a byte string")
	ErrUnknownType  = errors.New("unknown value type")
)

// SyntaxError reports malformed input and where it was found.
type SyntaxError struct {
	Offset int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bencode: syntax error at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

type span struct {
	offset int
	raw    []byte
}

// Parse decodes a complete document. The input must hold exactly one
// value; the returned tree aliases data.
func Parse(data []byte) (*Value, error) {
	if len(data) == 0 {
		return nil, &SyntaxError{Offset: 0, Err: ErrEmpty}
	}

	dec := zb.NewDecoder(bytes.NewReader(data))

	var raw zb.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, &SyntaxError{Offset: 0, Err: err}
	}

	if len(raw) != len(data) {
		return nil, &SyntaxError{Offset: len(raw), Err: ErrTrailingData}
	}

	return parse(span{offset: 0, raw: data})
}

func parse(s span) (*Value, error) {
	v := &Value{Offset: s.offset, Raw: s.raw}

	switch c := s.raw[0]; {
	case c == 'i':
		v.Kind = Integer
		if err := zb.DecodeBytes(s.raw, &v.Int); err != nil {
			return nil, &SyntaxError{Offset: s.offset, Err: err}
		}

	case '0' <= c && c <= '9':
		var str string
		if err := zb.DecodeBytes(s.raw, &str); err != nil {
			return nil, &SyntaxError{Offset: s.offset, Err: err}
		}
		v.Kind = ByteString
		v.Bytes = []byte(str)

	case c == 'l':
		v.Kind = List
		children, err := split(s.raw[1:len(s.raw)-1], s.offset+1)
		if err != nil {
			return nil, err
		}

		v.Items = make([]*Value, 0, len(children))
		for _, child := range children {
			item, err := parse(child)
			if err != nil {
				return nil, err
			}
			v.Items = append(v.Items, item)
		}

	case c == 'd':
		v.Kind = Dict
		children, err := split(s.raw[1:len(s.raw)-1], s.offset+1)
		if err != nil {
			return nil, err
		}

		if len(children)%2 != 0 {
			return nil, &SyntaxError{Offset: s.offset, Err: io.ErrUnexpectedEOF}
		}

		v.Entries = make([]Entry, 0, len(children)/2)
		seen := make(map[string]struct{}, len(children)/2)
		for i := 0; i < len(children); i += 2 {
			key, err := parse(children[i])
			if err != nil {
				return nil, err
			}
			if key.Kind != ByteString {
				return nil, &SyntaxError{Offset: key.Offset, Err: ErrKeyNotString}
			}

			k := string(key.Bytes)
			if _, dup := seen[k]; dup {
				return nil, &SyntaxError{Offset: key.Offset, Err: fmt.Errorf("%w: %q", ErrDuplicateKey, k)}
			}
			seen[k] = struct{}{}

			val, err := parse(children[i+1])
			if err != nil {
				return nil, err
			}
			v.Entries = append(v.Entries, Entry{Key: k, Value: val})
		}

	default:
		return nil, &SyntaxError{Offset: s.offset, Err: ErrUnknownType}
	}

	return v, nil
}

// split cuts the body of a list or dict into the spans of its members.
func split(body []byte, base int) ([]span, error) {
	dec := zb.NewDecoder(bytes.NewReader(body))

	var spans []span
	for off := 0; off < len(body); {
		var raw zb.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &SyntaxError{Offset: base + off, Err: err}
		}
		if len(raw) == 0 {
			return nil, &SyntaxError{Offset: base + off, Err: io.ErrUnexpectedEOF}
		}

		spans = append(spans, span{offset: base + off, raw: body[off : off+len(raw)]})
		off += len(raw)
	}

	return spans, nil
}
