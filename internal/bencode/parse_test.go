package bencode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const singleFileDoc = "d8:announce19:http://tracker.test4:infod6:lengthi11e4:name8:file.txt12:piece lengthi16384e6:pieces20:AAAAAAAAAAAAAAAAAAAAee"

func TestParseSingleFileDocument(t *testing.T) {
	v, err := Parse([]byte(singleFileDoc))
	require.NoError(t, err)

	assert.Equal(t, Dict, v.Kind)
	assert.Equal(t, []string{"announce", "info"}, v.Keys())

	announce, ok := v.Lookup("announce")
	require.True(t, ok)
	assert.Equal(t, ByteString, announce.Kind)
	assert.Equal(t, "http://tracker.test", string(announce.Bytes))

	info, ok := v.Lookup("info")
	require.True(t, ok)
	assert.Equal(t, Dict, info.Kind)

	start := strings.Index(singleFileDoc, "d6:length")
	assert.Equal(t, start, info.Offset)
	assert.Equal(t, singleFileDoc[start:len(singleFileDoc)-1], string(info.Raw))

	length, ok := info.Lookup("length")
	require.True(t, ok)
	assert.Equal(t, Integer, length.Kind)
	assert.Equal(t, int64(11), length.Int)
	assert.Equal(t, "i11e", string(length.Raw))
}

func TestParseKeepsSourceKeyOrder(t *testing.T) {
	v, err := Parse([]byte("d1:zi1e1:ai2e1:mi3ee"))
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, v.Keys())
}

func TestParseList(t *testing.T) {
	v, err := Parse([]byte("l4:spami-42eli1eedee"))
	require.NoError(t, err)

	require.Equal(t, List, v.Kind)
	require.Len(t, v.Items, 4)
	assert.Equal(t, "spam", string(v.Items[0].Bytes))
	assert.Equal(t, int64(-42), v.Items[1].Int)
	assert.Equal(t, List, v.Items[2].Kind)
	assert.Equal(t, "li1ee", string(v.Items[2].Raw))
	assert.Equal(t, 12, v.Items[2].Offset)
	assert.Equal(t, Dict, v.Items[3].Kind)
	assert.Empty(t, v.Items[3].Entries)
}

func TestParseBinaryString(t *testing.T) {
	v, err := Parse([]byte("3:\x00\xff\x10"))
	require.NoError(t, err)

	assert.Equal(t, []byte{0x00, 0xff, 0x10}, v.Bytes)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{name: "empty", input: "", err: ErrEmpty},
		{name: "trailing data", input: "i1ei2e", err: ErrTrailingData},
		{name: "duplicate key", input: "d1:ai1e1:ai2ee", err: ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))

			var syntaxErr *SyntaxError
			require.ErrorAs(t, err, &syntaxErr)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{"x", "i12", "5:abc", "l1:a", "d1:ai1e"} {
		_, err := Parse([]byte(input))

		var syntaxErr *SyntaxError
		assert.ErrorAs(t, err, &syntaxErr, "input %q", input)
	}
}

func TestLookupOnNonDict(t *testing.T) {
	v, err := Parse([]byte("i7e"))
	require.NoError(t, err)

	_, ok := v.Lookup("x")
	assert.False(t, ok)
	assert.False(t, v.Has("x"))
	assert.Nil(t, v.Keys())
}
