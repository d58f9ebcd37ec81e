package peer

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

const DefaultPrefix = "-GA0001-"

type PeerID = [20]byte

// NewPeerID returns prefix followed by random printable characters. Keep
// the result for the whole session.
func NewPeerID(prefix string) (PeerID, error) {
	var id PeerID
	if err := checkPrefix(prefix); err != nil {
		return id, err
	}

	tail := make([]byte, (len(id)-len(prefix)+1)/2)
	if _, err := rand.Read(tail); err != nil {
		return id, fmt.Errorf("failed to read random peer id: %w", err)
	}

	fill(&id, prefix, tail)

	return id, nil
}

// PeerIDFromSeed derives a peer id from a persistent seed, so a client
// keeps its identity across restarts.
func PeerIDFromSeed(prefix string, seed []byte) (PeerID, error) {
	var id PeerID
	if err := checkPrefix(prefix); err != nil {
		return id, err
	}

	sum := sha1.Sum(seed)
	fill(&id, prefix, sum[:])

	return id, nil
}

func checkPrefix(prefix string) error {
	if len(prefix) >= len(PeerID{}) {
		return fmt.Errorf("peer id prefix %q too long", prefix)
	}

	return nil
}

// fill writes prefix and then the hex form of tail, cut to 20 bytes.
func fill(id *PeerID, prefix string, tail []byte) {
	n := copy(id[:], prefix)
	copy(id[n:], hex.EncodeToString(tail))
}
