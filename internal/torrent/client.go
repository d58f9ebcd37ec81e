package torrent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danferreira/gannounce/internal/config"
	"github.com/danferreira/gannounce/internal/metadata"
	"github.com/danferreira/gannounce/internal/peer"
	"github.com/danferreira/gannounce/internal/tracker"
)

var (
	ErrNotFound     = errors.New("torrent not found")
	ErrAlreadyAdded = errors.New("torrent already added")
)

type AnnouncerFactory interface {
	NewAnnouncer(m *metadata.MetaInfo) (tracker.Announcer, error)
}

// DefaultAnnouncerFactory announces over HTTP with one peer id shared by
// every torrent of the client.
type DefaultAnnouncerFactory struct {
	PeerID peer.PeerID
	Config config.Config
}

func (d DefaultAnnouncerFactory) NewAnnouncer(m *metadata.MetaInfo) (tracker.Announcer, error) {
	return tracker.NewTracker(m, d.PeerID, d.Config.ListenPort,
		tracker.WithTimeout(d.Config.Timeout),
		tracker.WithCompact(d.Config.Compact),
		tracker.WithNoPeerID(d.Config.NoPeerID),
	), nil
}

// Client keeps several torrents announced at once.
type Client struct {
	mu sync.RWMutex

	factory AnnouncerFactory
	retry   time.Duration

	torrents map[metadata.Hash]*Torrent
	order    []metadata.Hash

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(cfg config.Config) (*Client, error) {
	peerID, err := cfg.PeerID()
	if err != nil {
		return nil, fmt.Errorf("failed to create peer id: %w", err)
	}

	return NewClientWithDeps(DefaultAnnouncerFactory{PeerID: peerID, Config: cfg}, cfg.RetryInterval), nil
}

func NewClientWithDeps(factory AnnouncerFactory, retry time.Duration) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		factory:  factory,
		retry:    retry,
		torrents: make(map[metadata.Hash]*Torrent),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Client) AddFile(path string) (*Torrent, error) {
	m, err := metadata.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse torrent file %s: %w", path, err)
	}

	t, err := c.Add(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Add registers m. Torrents are identified by info hash.
func (c *Client) Add(m *metadata.MetaInfo) (*Torrent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.torrents[m.Hash]; ok {
		return nil, ErrAlreadyAdded
	}

	a, err := c.factory.NewAnnouncer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create announcer: %w", err)
	}

	t := NewTorrent(m, a, c.retry)
	c.torrents[m.Hash] = t
	c.order = append(c.order, m.Hash)

	zap.L().Info("Torrent added",
		zap.String("name", m.Info.Name),
		zap.Stringer("info_hash", m.Hash),
	)

	return t, nil
}

func (c *Client) get(infoHash metadata.Hash) (*Torrent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.torrents[infoHash]
	if !ok {
		return nil, ErrNotFound
	}

	return t, nil
}

func (c *Client) StartTorrent(infoHash metadata.Hash) error {
	t, err := c.get(infoHash)
	if err != nil {
		return err
	}

	return t.Start(c.ctx)
}

// StopTorrent ends the announce loop of a torrent. The torrent stays
// registered and can be started again.
func (c *Client) StopTorrent(infoHash metadata.Hash) error {
	t, err := c.get(infoHash)
	if err != nil {
		return err
	}

	t.Stop()

	return nil
}

// Torrents lists the registered torrents in the order they were added.
func (c *Client) Torrents() []*Torrent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]*Torrent, 0, len(c.order))
	for _, h := range c.order {
		list = append(list, c.torrents[h])
	}

	return list
}

// Close stops every running torrent and waits for their final announces.
func (c *Client) Close() {
	c.cancel()

	var wg sync.WaitGroup
	for _, t := range c.Torrents() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.Stop()
		}()
	}
	wg.Wait()
}
