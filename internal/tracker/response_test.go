package tracker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danferreira/gannounce/internal/decode"
	"github.com/danferreira/gannounce/internal/peer"
)

func TestDecodeResponseInterval(t *testing.T) {
	res, err := DecodeResponse([]byte("d8:intervali1800ee"))
	require.NoError(t, err)

	assert.Equal(t, int64(1800), res.Interval)
	assert.Nil(t, res.Complete)
	assert.Nil(t, res.Incomplete)
	assert.Nil(t, res.Peers)
	assert.Equal(t, "interval=1800s peers=0", res.String())
}

func TestDecodeResponseFailure(t *testing.T) {
	res, err := DecodeResponse([]byte("d14:failure reason13:torrent bannede"))
	assert.Nil(t, res)

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "torrent banned", failure.Reason)
	assert.Equal(t, "tracker failure: torrent banned", err.Error())
}

func TestDecodeResponseFailureSkipsInterval(t *testing.T) {
	// interval is malformed but must not be read
	_, err := DecodeResponse([]byte("d14:failure reason2:no8:interval3:abce"))

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "no", failure.Reason)
}

func TestDecodeResponseOptionalFields(t *testing.T) {
	doc := "d8:completei9e10:incompletei3e8:intervali900e12:min intervali60e10:tracker id3:abc15:warning message4:slowe"

	res, err := DecodeResponse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, int64(900), res.Interval)
	assert.Equal(t, int64(60), *res.MinInterval)
	assert.Equal(t, "abc", *res.TrackerID)
	assert.Equal(t, "slow", *res.WarningMessage)
	assert.Equal(t, int64(9), *res.Complete)
	assert.Equal(t, int64(3), *res.Incomplete)
}

func TestDecodeResponseDictPeers(t *testing.T) {
	doc := "d8:intervali60e5:peersld2:ip8:10.0.0.17:peer id20:-XX0001-aaaaaaaaaaaa4:porti51413eed2:ip3:::14:porti1eeee"

	res, err := DecodeResponse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []peer.Peer{
		{Addr: "10.0.0.1:51413", ID: []byte("-XX0001-aaaaaaaaaaaa")},
		{Addr: "[::1]:1"},
	}, res.Peers)
}

func TestDecodeResponseErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		kind  error
		field string
	}{
		{"missing interval", "d8:completei1ee", decode.ErrMissingField, "interval"},
		{"interval not a number", "d8:interval2:60e", decode.ErrNotANumber, "interval"},
		{"zero interval", "d8:intervali0ee", decode.ErrInvalidValue, "interval"},
		{"interval overflows a duration", "d8:intervali10000000000ee", decode.ErrInvalidValue, "interval"},
		{"failure reason not a string", "d14:failure reasoni1e8:intervali60ee", decode.ErrNotAString, "failure reason"},
		{"optional field malformed", "d8:intervali60e8:complete3:lote", decode.ErrNotANumber, "complete"},
		{"compact peers truncated", "d8:intervali60e5:peers5:abcdee", decode.ErrInvalidValue, "peers"},
		{"peers wrong type", "d8:intervali60e5:peersi1ee", decode.ErrNotAString, "peers"},
		{"peer without port", "d8:intervali60e5:peersld2:ip1:xeee", decode.ErrMissingField, "peers[0].port"},
		{"peer port out of range", "d8:intervali60e5:peersld2:ip1:x4:porti70000eeee", decode.ErrInvalidValue, "peers[0].port"},
		{"not a dict", "li1ee", decode.ErrNotADict, ""},
		{"not bencode", "oops", decode.ErrParse, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DecodeResponse([]byte(tt.doc))
			assert.Nil(t, res)
			require.ErrorIs(t, err, tt.kind)

			if tt.field != "" {
				var de *decode.Error
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.field, de.Field)
			}
		})
	}
}

func TestDecodeResponseLongestInterval(t *testing.T) {
	res, err := DecodeResponse([]byte(fmt.Sprintf("d8:intervali%dee", MaxInterval)))
	require.NoError(t, err)
	assert.Equal(t, MaxInterval, res.Interval)
}
