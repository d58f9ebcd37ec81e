package torrent

import (
	"time"

	"github.com/danferreira/gannounce/internal/metadata"
	"github.com/danferreira/gannounce/internal/state"
)

// Info is what is known about a torrent after its latest announce.
// Seeders and Leechers stay nil until a tracker reports them.
type Info struct {
	Name     string
	Hash     metadata.Hash
	Announce string
	Size     int64
	Status   state.Status
	Peers    int
	Running  bool

	Seeders  *int64
	Leechers *int64
	Interval time.Duration
	Warning  string

	Err error
}
