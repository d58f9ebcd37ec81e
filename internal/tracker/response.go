package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/danferreira/gannounce/internal/bencode"
	"github.com/danferreira/gannounce/internal/decode"
	"github.com/danferreira/gannounce/internal/peer"
)

// MaxInterval is the longest re-announce interval, in seconds, that still
// fits a time.Duration.
const MaxInterval = int64(math.MaxInt64 / int64(time.Second))

// Response is a successful announce reply. Interval is in seconds.
type Response struct {
	Interval       int64
	MinInterval    *int64
	TrackerID      *string
	WarningMessage *string
	Complete       *int64
	Incomplete     *int64
	Peers          []peer.Peer
}

// FailureError is returned when the tracker explicitly rejects a request.
type FailureError struct {
	Reason string
}

func (e *FailureError) Error() string {
	return "tracker failure: " + e.Reason
}

// TransportError wraps network failures, timeouts and non-200 replies.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "tracker transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return (errors.As(e.Err, &ne) && ne.Timeout()) || errors.Is(e.Err, context.DeadlineExceeded)
}

// DecodeResponse decodes a tracker reply. A "failure reason" member wins
// over everything else and yields *FailureError.
func DecodeResponse(data []byte) (*Response, error) {
	root, err := decode.Parse(data)
	if err != nil {
		return nil, err
	}

	reason, err := decode.Lookup(root, "failure reason", decode.String)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		return nil, &FailureError{Reason: *reason}
	}

	var (
		r     Response
		peers *[]peer.Peer
	)

	err = decode.Struct(root,
		decode.Required("interval", &r.Interval, decode.Int64),
		decode.Optional("min interval", &r.MinInterval, decode.Int64),
		decode.Optional("tracker id", &r.TrackerID, decode.String),
		decode.Optional("warning message", &r.WarningMessage, decode.String),
		decode.Optional("complete", &r.Complete, decode.Int64),
		decode.Optional("incomplete", &r.Incomplete, decode.Int64),
		decode.Optional("peers", &peers, decodePeers),
	)
	if err != nil {
		return nil, err
	}

	if r.Interval <= 0 || r.Interval > MaxInterval {
		return nil, decode.Invalid("interval", "must be in 1..%d, got %d", MaxInterval, r.Interval)
	}

	if peers != nil {
		r.Peers = *peers
	}

	return &r, nil
}

// decodePeers accepts both the compact string form and the list of
// dictionaries form.
func decodePeers(v *bencode.Value) ([]peer.Peer, error) {
	switch v.Kind {
	case bencode.ByteString:
		if len(v.Bytes)%peer.CompactSize != 0 {
			return nil, decode.Errorf(decode.ErrInvalidValue, "compact peer list length %d is not a multiple of %d", len(v.Bytes), peer.CompactSize)
		}

		peers := make([]peer.Peer, 0, len(v.Bytes)/peer.CompactSize)
		for chunk := range slices.Chunk(v.Bytes, peer.CompactSize) {
			p, err := peer.Unmarshal(chunk)
			if err != nil {
				return nil, err
			}
			peers = append(peers, p)
		}

		return peers, nil

	case bencode.List:
		return decode.List(decodePeer)(v)
	}

	return nil, decode.Errorf(decode.ErrNotAString, "peers: got %s", v.Kind)
}

func decodePeer(v *bencode.Value) (peer.Peer, error) {
	var (
		ip   string
		port int64
		id   *[]byte
	)

	err := decode.Struct(v,
		decode.Required("ip", &ip, decode.String),
		decode.Required("port", &port, decode.Int64),
		decode.Optional("peer id", &id, decode.Bytes),
	)
	if err != nil {
		return peer.Peer{}, err
	}

	if port < 0 || port > 65535 {
		return peer.Peer{}, decode.Invalid("port", "out of range: %d", port)
	}

	p := peer.Peer{Addr: net.JoinHostPort(ip, strconv.FormatInt(port, 10))}
	if id != nil {
		p.ID = *id
	}

	return p, nil
}

func (r *Response) String() string {
	return fmt.Sprintf("interval=%ds peers=%d", r.Interval, len(r.Peers))
}
