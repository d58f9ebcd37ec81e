package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danferreira/gannounce/internal/peer"
	"github.com/danferreira/gannounce/internal/state"
)

type Announcer interface {
	Announce(ctx context.Context, req Request) (*Response, error)
}

// Manager keeps a session registered with its tracker. It owns the retry
// policy that Tracker leaves to its caller, and it is the only goroutine
// announcing for the session, so requests never overlap.
type Manager struct {
	tracker Announcer
	retry   time.Duration

	onAnnounce func(Event, *Response, error)
}

func NewManager(a Announcer, retry time.Duration) *Manager {
	return &Manager{
		tracker: a,
		retry:   retry,
	}
}

// OnAnnounce registers fn to be called after every announce attempt, with
// either the response or the error. It must be set before Run.
func (m *Manager) OnAnnounce(fn func(Event, *Response, error)) {
	m.onAnnounce = fn
}

// Run announces "started", re-announces at the interval the tracker asks
// for and sends "stopped" once ctx is done. "completed" is sent once when
// a session that started incomplete reaches zero bytes left. Discovered
// peers are pushed into pool.
func (m *Manager) Run(ctx context.Context, snapshotFn func() state.Stats, pool *peer.Pool) {
	zap.L().Info("Starting announce worker")

	currentEvent := EventStarted
	wasIncomplete := snapshotFn().Left > 0
	completed := false

	for {
		snap := snapshotFn()

		event := currentEvent
		if event == EventUpdated && wasIncomplete && !completed && snap.Left == 0 {
			event = EventCompleted
		}

		interval, err := m.SendAnnouncement(ctx, event, snap, pool)
		if err != nil {
			zap.L().Error("Error on tracker announce, retrying",
				zap.Duration("retry_in", m.retry),
				zap.Error(err),
			)
			interval = m.retry
		} else {
			currentEvent = EventUpdated
			if event == EventCompleted {
				completed = true
			}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.retry)
			_, err := m.SendAnnouncement(stopCtx, EventStopped, snapshotFn(), pool)
			cancel()
			if err != nil {
				zap.L().Error("Error on sending stop event to tracker", zap.Error(err))
			}
			return
		}
	}
}

// SendAnnouncement performs one announce and returns how long to wait
// before the next one.
func (m *Manager) SendAnnouncement(ctx context.Context, event Event, snap state.Stats, pool *peer.Pool) (time.Duration, error) {
	res, err := m.tracker.Announce(ctx, Request{
		Event:      event,
		Uploaded:   snap.Uploaded,
		Downloaded: snap.Downloaded,
		Left:       snap.Left,
	})
	if err != nil {
		m.notify(event, nil, err)
		return 0, err
	}

	added := pool.PushMany(res.Peers)
	zap.L().Info("Successfully announced to tracker",
		zap.String("event", string(event)),
		zap.Int("peers", len(res.Peers)),
		zap.Int("new_peers", added),
	)
	m.notify(event, res, nil)

	return time.Duration(min(max(res.Interval, 0), MaxInterval)) * time.Second, nil
}

func (m *Manager) notify(event Event, res *Response, err error) {
	if m.onAnnounce != nil {
		m.onAnnounce(event, res, err)
	}
}
