// Package bencode turns a bencoded document into a tree of values that
// remember where they came from. Every node keeps the exact bytes that
// encoded it, so callers can hash a sub-document without re-encoding it.
package bencode

import "fmt"

type Kind uint8

const (
	Integer Kind = iota + 1
	ByteString
	List
	Dict
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case ByteString:
		return "byte string"
	case List:
		return "list"
	case Dict:
		return "dict"
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one node of a parsed document. Only the fields matching Kind
// are set.
type Value struct {
	Kind    Kind
	Int     int64
	Bytes   []byte
	Items   []*Value
	Entries []Entry

	// Offset is the position of the node in the source document and Raw
	// is the source slice [Offset, Offset+len(Raw)). Raw aliases the
	// caller's buffer.
	Offset int
	Raw    []byte
}

// Entry is a dict member. Entries keep the order they had in the source.
type Entry struct {
	Key   string
	Value *Value
}

// Lookup returns the value stored under key in a dict node.
func (v *Value) Lookup(key string) (*Value, bool) {
	if v == nil || v.Kind != Dict {
		return nil, false
	}

	for _, e := range v.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}

	return nil, false
}

// Has reports whether a dict node carries key.
func (v *Value) Has(key string) bool {
	_, ok := v.Lookup(key)
	return ok
}

// Keys lists the dict keys in source order.
func (v *Value) Keys() []string {
	if v == nil || v.Kind != Dict {
		return nil
	}

	keys := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		keys = append(keys, e.Key)
	}

	return keys
}
