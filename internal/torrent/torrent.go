package torrent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danferreira/gannounce/internal/metadata"
	"github.com/danferreira/gannounce/internal/peer"
	"github.com/danferreira/gannounce/internal/state"
	"github.com/danferreira/gannounce/internal/tracker"
)

var ErrRunning = errors.New("torrent already running")

// Torrent is one torrent kept registered with its tracker.
type Torrent struct {
	Metadata *metadata.MetaInfo
	State    *state.State
	Pool     *peer.Pool

	trackerManager *tracker.Manager

	mu      sync.Mutex
	last    *tracker.Response
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewTorrent(m *metadata.MetaInfo, a tracker.Announcer, retry time.Duration) *Torrent {
	t := &Torrent{
		Metadata:       m,
		State:          state.NewState(m),
		Pool:           peer.NewPool(0),
		trackerManager: tracker.NewManager(a, retry),
	}
	t.trackerManager.OnAnnounce(t.record)

	return t
}

// Start runs the announce loop in the background until Stop is called or
// ctx is done.
func (t *Torrent) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go func() {
		defer close(done)
		t.trackerManager.Run(ctx, t.State.Snapshot, t.Pool)
	}()

	return nil
}

// Stop ends the announce loop and waits for the "stopped" announce.
func (t *Torrent) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (t *Torrent) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Torrent) record(event tracker.Event, res *tracker.Response, err error) {
	t.mu.Lock()
	t.lastErr = err
	if err == nil {
		t.last = res
	}
	t.mu.Unlock()

	if err != nil {
		return
	}

	t.State.SetPeers(t.Pool.Seen())

	switch event {
	case tracker.EventStarted:
		t.State.SetStatus(state.Started)
	case tracker.EventCompleted:
		t.State.SetStatus(state.Completed)
	case tracker.EventStopped:
		t.State.SetStatus(state.Stopped)
	}
}

// Info returns a snapshot for display.
func (t *Torrent) Info() Info {
	t.mu.Lock()
	last, lastErr := t.last, t.lastErr
	t.mu.Unlock()

	info := Info{
		Name:     t.Metadata.Info.Name,
		Hash:     t.Metadata.Hash,
		Announce: t.Metadata.Announce,
		Size:     t.State.Size(),
		Status:   t.State.Status(),
		Peers:    t.State.Peers(),
		Running:  t.Running(),
		Err:      lastErr,
	}

	if last != nil {
		info.Seeders = last.Complete
		info.Leechers = last.Incomplete
		info.Interval = time.Duration(last.Interval) * time.Second
		if last.WarningMessage != nil {
			info.Warning = *last.WarningMessage
		}
	}

	return info
}
