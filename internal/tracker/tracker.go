package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danferreira/gannounce/internal/metadata"
	"github.com/danferreira/gannounce/internal/peer"
)

type Event string

const (
	EventStarted   Event = "started"
	EventCompleted Event = "completed"
	EventStopped   Event = "stopped"
	EventUpdated   Event = ""
)

// maxResponseSize bounds the body read from a tracker.
const maxResponseSize = 4 << 20

// Request carries the session counters reported by one announce.
type Request struct {
	Event      Event
	Uploaded   int64
	Downloaded int64
	Left       int64
}

type Tracker struct {
	metadata *metadata.MetaInfo
	peerID   peer.PeerID
	port     int
	compact  bool
	noPeerID bool
	client   *http.Client
}

type Option func(*Tracker)

func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.client.Timeout = d }
}

func WithCompact(compact bool) Option {
	return func(t *Tracker) { t.compact = compact }
}

func WithNoPeerID(noPeerID bool) Option {
	return func(t *Tracker) { t.noPeerID = noPeerID }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Tracker) { t.client = c }
}

func NewTracker(m *metadata.MetaInfo, peerID peer.PeerID, listenPort int, opts ...Option) *Tracker {
	tr := &Tracker{metadata: m, peerID: peerID, port: listenPort, compact: true}
	myDialer := net.Dialer{}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return myDialer.DialContext(ctx, "tcp4", addr)
	}

	tr.client = &http.Client{Timeout: 15 * time.Second, Transport: transport}

	for _, opt := range opts {
		opt(tr)
	}

	return tr
}

// Announce performs one request to the tracker. It never retries; a
// rejected request is reported as *FailureError and a network problem as
// *TransportError.
func (t *Tracker) Announce(ctx context.Context, req Request) (*Response, error) {
	logger := zap.L().With(
		zap.Stringer("info_hash", t.metadata.Hash),
		zap.String("event", string(req.Event)),
	)

	announceURL, err := t.AnnounceURL(req)
	if err != nil {
		return nil, err
	}

	logger.Info("Sending announcement to tracker", zap.String("tracker", t.metadata.Announce))

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, announceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(r)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("tracker HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	res, err := DecodeResponse(body)
	if err != nil {
		var failure *FailureError
		if errors.As(err, &failure) {
			logger.Warn("Tracker rejected announce", zap.String("reason", failure.Reason))
		} else {
			logger.Error("Invalid tracker response", zap.Error(err))
		}
		return nil, err
	}

	if res.WarningMessage != nil {
		logger.Warn("Tracker warning", zap.String("message", *res.WarningMessage))
	}

	logger.Debug("Tracker answered",
		zap.Int64("interval", res.Interval),
		zap.Int("peers", len(res.Peers)),
	)

	return res, nil
}

// AnnounceURL builds the request URL. Parameters already present in the
// metainfo's announce URL are kept and win over generated ones of the same
// name.
func (t *Tracker) AnnounceURL(req Request) (string, error) {
	if req.Uploaded < 0 || req.Downloaded < 0 || req.Left < 0 {
		return "", fmt.Errorf("negative counters in announce request: %+v", req)
	}

	u, err := t.metadata.AnnounceURL()
	if err != nil {
		return "", fmt.Errorf("invalid announce URL: %w", err)
	}

	embedded, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid announce URL query: %w", err)
	}

	params := []param{
		{"info_hash", t.metadata.Hash[:]},
		{"peer_id", t.peerID[:]},
		{"port", strconv.AppendInt(nil, int64(t.port), 10)},
		{"uploaded", strconv.AppendInt(nil, req.Uploaded, 10)},
		{"downloaded", strconv.AppendInt(nil, req.Downloaded, 10)},
		{"left", strconv.AppendInt(nil, req.Left, 10)},
		{"compact", boolParam(t.compact)},
		{"no_peer_id", boolParam(t.noPeerID)},
	}

	if req.Event != EventUpdated {
		params = append(params, param{"event", []byte(req.Event)})
	}

	var q strings.Builder
	q.WriteString(u.RawQuery)

	for _, p := range params {
		if embedded.Has(p.key) {
			continue
		}
		if q.Len() > 0 {
			q.WriteByte('&')
		}
		q.WriteString(p.key)
		q.WriteByte('=')
		q.WriteString(escape(p.value))
	}

	dst := *u
	dst.RawQuery = q.String()

	return dst.String(), nil
}

type param struct {
	key   string
	value []byte
}

func boolParam(b bool) []byte {
	if b {
		return []byte("1")
	}

	return []byte("0")
}

// escape percent-encodes every byte outside the unreserved set, so binary
// values such as the info-hash travel as their raw bytes.
func escape(b []byte) string {
	const hex = "0123456789ABCDEF"

	var sb strings.Builder
	sb.Grow(len(b) * 3)

	for _, c := range b {
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}

	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}

	return false
}
