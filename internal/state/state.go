// Package state keeps the transfer counters a client reports to its
// tracker.
package state

import (
	"sync"

	"github.com/danferreira/gannounce/internal/metadata"
)

type Status uint8

const (
	Queued Status = iota
	Started
	Completed
	Stopped
)

func (s Status) String() string {
	switch s {
	case Queued:
		return "Queued"
	case Started:
		return "Started"
	case Completed:
		return "Completed"
	case Stopped:
		return "Stopped"
	}

	return ""
}

type Stats struct {
	Downloaded int64
	Uploaded   int64
	Left       int64
}

// State holds the counters of one torrent session. Left is always derived
// from the total content length, not from the piece length.
type State struct {
	mu sync.RWMutex

	status Status
	peers  int
	size   int64

	downloaded int64
	uploaded   int64
}

func NewState(m *metadata.MetaInfo) *State {
	return &State{size: m.Info.TotalLength()}
}

func (s *State) AddDownloaded(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.downloaded += n
	if s.downloaded >= s.size && s.status == Started {
		s.status = Completed
	}
}

func (s *State) AddUploaded(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploaded += n
}

func (s *State) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	left := s.size - s.downloaded
	if left < 0 {
		left = 0
	}

	return Stats{
		Downloaded: s.downloaded,
		Uploaded:   s.uploaded,
		Left:       left,
	}
}

func (s *State) Size() int64 {
	return s.size
}

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = status
}

func (s *State) Peers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.peers
}

func (s *State) SetPeers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.peers = n
}
