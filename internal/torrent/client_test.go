package torrent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackpal/bencode-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danferreira/gannounce/internal/config"
	"github.com/danferreira/gannounce/internal/metadata"
	"github.com/danferreira/gannounce/internal/peer"
	"github.com/danferreira/gannounce/internal/state"
	"github.com/danferreira/gannounce/internal/tracker"
)

type MockAnnouncer struct {
	mu     sync.Mutex
	events []tracker.Event
	res    *tracker.Response
	err    error
}

func (m *MockAnnouncer) Announce(ctx context.Context, req tracker.Request) (*tracker.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, req.Event)
	return m.res, m.err
}

func (m *MockAnnouncer) Events() []tracker.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tracker.Event(nil), m.events...)
}

type MockAnnouncerFactory struct {
	NewAnnouncerFunc func(m *metadata.MetaInfo) (tracker.Announcer, error)
}

func (f MockAnnouncerFactory) NewAnnouncer(m *metadata.MetaInfo) (tracker.Announcer, error) {
	if f.NewAnnouncerFunc != nil {
		return f.NewAnnouncerFunc(m)
	}
	return &MockAnnouncer{res: &tracker.Response{Interval: 60}}, nil
}

func TestMain(m *testing.M) {
	zap.ReplaceGlobals(zap.NewNop())

	os.Exit(m.Run())
}

func writeTorrent(t *testing.T, name string) string {
	t.Helper()

	var buf bytes.Buffer
	err := bencode.Marshal(&buf, map[string]interface{}{
		"announce": "http://tracker.test/announce",
		"info": map[string]interface{}{
			"name":         name,
			"length":       1024,
			"piece length": 16384,
			"pieces":       "aaaaaaaaaaaaaaaaaaaa",
		},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name+".torrent")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

func TestNewClient(t *testing.T) {
	cfg := config.Default()
	cfg.PeerIDSeed = "seed"

	client, err := NewClient(cfg)
	require.NoError(t, err)

	f, ok := client.factory.(DefaultAnnouncerFactory)
	require.True(t, ok)
	assert.Equal(t, "-GA0001-", string(f.PeerID[:8]))
	assert.Equal(t, cfg.RetryInterval, client.retry)
}

func TestAddFile(t *testing.T) {
	client := NewClientWithDeps(MockAnnouncerFactory{}, time.Second)

	_, err := client.AddFile("invalid.torrent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse torrent file invalid.torrent")

	path := writeTorrent(t, "file.txt")

	tr, err := client.AddFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file.txt", tr.Metadata.Info.Name)
	assert.Equal(t, int64(1024), tr.State.Snapshot().Left)
	assert.Len(t, client.torrents, 1)

	_, err = client.AddFile(path)
	assert.ErrorIs(t, err, ErrAlreadyAdded)
	assert.Len(t, client.torrents, 1)
}

func TestAddFactoryError(t *testing.T) {
	client := NewClientWithDeps(MockAnnouncerFactory{
		NewAnnouncerFunc: func(m *metadata.MetaInfo) (tracker.Announcer, error) {
			return nil, errors.New("no tracker")
		},
	}, time.Second)

	_, err := client.AddFile(writeTorrent(t, "file.txt"))
	assert.ErrorContains(t, err, "no tracker")
	assert.Empty(t, client.Torrents())
}

func TestStartAndStopTorrent(t *testing.T) {
	seeders := int64(7)
	ma := &MockAnnouncer{res: &tracker.Response{
		Interval: 60,
		Complete: &seeders,
		Peers:    []peer.Peer{{Addr: "10.0.0.1:6881"}},
	}}
	client := NewClientWithDeps(MockAnnouncerFactory{
		NewAnnouncerFunc: func(m *metadata.MetaInfo) (tracker.Announcer, error) {
			return ma, nil
		},
	}, time.Second)

	tr, err := client.AddFile(writeTorrent(t, "file.txt"))
	require.NoError(t, err)

	err = client.StartTorrent(metadata.Hash{})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, client.StartTorrent(tr.Metadata.Hash))
	assert.ErrorIs(t, client.StartTorrent(tr.Metadata.Hash), ErrRunning)

	assert.Eventually(t, func() bool {
		return tr.State.Status() == state.Started
	}, time.Second, 10*time.Millisecond)

	info := tr.Info()
	assert.Equal(t, "file.txt", info.Name)
	assert.Equal(t, 1, info.Peers)
	require.NotNil(t, info.Seeders)
	assert.Equal(t, int64(7), *info.Seeders)
	assert.Nil(t, info.Leechers)
	assert.Equal(t, time.Minute, info.Interval)

	require.NoError(t, client.StopTorrent(tr.Metadata.Hash))
	assert.False(t, tr.Running())
	assert.False(t, tr.Info().Running)
	assert.Equal(t, state.Stopped, tr.State.Status())
	assert.Equal(t, []tracker.Event{tracker.EventStarted, tracker.EventStopped}, ma.Events())

	require.NoError(t, client.StartTorrent(tr.Metadata.Hash))
	assert.Eventually(t, func() bool {
		return tr.State.Status() == state.Started
	}, time.Second, 10*time.Millisecond)
}

func TestCloseStopsEveryTorrent(t *testing.T) {
	var announcers []*MockAnnouncer
	client := NewClientWithDeps(MockAnnouncerFactory{
		NewAnnouncerFunc: func(m *metadata.MetaInfo) (tracker.Announcer, error) {
			ma := &MockAnnouncer{res: &tracker.Response{Interval: 60}}
			announcers = append(announcers, ma)
			return ma, nil
		},
	}, time.Second)

	for _, name := range []string{"a", "b"} {
		tr, err := client.AddFile(writeTorrent(t, name))
		require.NoError(t, err)
		require.NoError(t, client.StartTorrent(tr.Metadata.Hash))
	}

	names := []string{}
	for _, tr := range client.Torrents() {
		names = append(names, tr.Metadata.Info.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	assert.Eventually(t, func() bool {
		return len(announcers[0].Events()) == 1 && len(announcers[1].Events()) == 1
	}, time.Second, 10*time.Millisecond)

	client.Close()

	for _, ma := range announcers {
		assert.Equal(t, []tracker.Event{tracker.EventStarted, tracker.EventStopped}, ma.Events())
	}
}

func TestAnnounceErrorIsRecorded(t *testing.T) {
	ma := &MockAnnouncer{err: &tracker.FailureError{Reason: "unregistered torrent"}}
	client := NewClientWithDeps(MockAnnouncerFactory{
		NewAnnouncerFunc: func(m *metadata.MetaInfo) (tracker.Announcer, error) {
			return ma, nil
		},
	}, time.Hour)

	tr, err := client.AddFile(writeTorrent(t, "file.txt"))
	require.NoError(t, err)
	require.NoError(t, client.StartTorrent(tr.Metadata.Hash))

	assert.Eventually(t, func() bool {
		return tr.Info().Err != nil
	}, time.Second, 10*time.Millisecond)

	var failure *tracker.FailureError
	require.ErrorAs(t, tr.Info().Err, &failure)
	assert.Equal(t, state.Queued, tr.State.Status())

	client.Close()
}
