package metadata

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/danferreira/gannounce/internal/bencode"
)

// Hash is the SHA-1 info-hash that identifies a torrent to trackers and
// peers.
type Hash [sha1.Size]byte

// HashInfo digests the source bytes of the info value, never a
// re-encoding of the decoded Info.
func HashInfo(info *bencode.Value) Hash {
	return Hash(sha1.Sum(info.Raw))
}

// String returns the hex form used for display. Trackers get the raw
// bytes.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
