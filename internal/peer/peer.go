package peer

import (
	"encoding/binary"
	"errors"
	"net"
	"strconv"
)

// CompactSize is the length of one IPv4 entry of a compact peer list.
const CompactSize = 6

var ErrInvalidCompact = errors.New("invalid compact peer address")

type Peer struct {
	Addr string
	// ID is only known when the tracker answered with a dictionary
	// peer list without no_peer_id.
	ID []byte
}

// Unmarshal decodes one compact entry: 4 bytes of IPv4 address followed
// by a big-endian port.
func Unmarshal(buf []byte) (Peer, error) {
	if len(buf) != CompactSize {
		return Peer{}, ErrInvalidCompact
	}

	ip := net.IP(buf[:4])
	port := binary.BigEndian.Uint16(buf[4:])

	return Peer{
		Addr: net.JoinHostPort(ip.String(), strconv.Itoa(int(port))),
	}, nil
}
