package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/danferreira/gannounce/internal/config"
	"github.com/danferreira/gannounce/internal/metadata"
	"github.com/danferreira/gannounce/internal/state"
	"github.com/danferreira/gannounce/internal/torrent"
	"github.com/danferreira/gannounce/internal/tracker"
)

const usage = `usage: gannounce [flags] <command> <torrent-file>...

commands:
  info      print the decoded metainfo
  announce  perform one announce and print the tracker answer
  watch     keep one or more torrents announced until interrupted

flags:
`

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"port":         "listen_port",
	"timeout":      "timeout",
	"retry":        "retry_interval",
	"compact":      "compact",
	"no-peer-id":   "no_peer_id",
	"peer-id-seed": "peer_id_seed",
	"log-level":    "log_level",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Environ(), os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args, environ []string, stdout io.Writer) error {
	defaults := config.Default()

	fs := flag.NewFlagSet("gannounce", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.Int("port", defaults.ListenPort, "port announced for incoming peer connections")
	fs.Duration("timeout", defaults.Timeout, "limit for a whole announce")
	fs.Duration("retry", defaults.RetryInterval, "wait after a failed announce (watch)")
	fs.Bool("compact", defaults.Compact, "ask for the compact peer list")
	fs.Bool("no-peer-id", defaults.NoPeerID, "ask the tracker to omit peer ids")
	fs.String("peer-id-seed", defaults.PeerIDSeed, "derive the peer id from this seed instead of at random")
	fs.String("log-level", defaults.LogLevel, "debug, info, warn or error")
	event := fs.String("event", string(tracker.EventStarted), "announce event: started, stopped, completed or empty")

	if err := fs.Parse(args); err != nil {
		return err
	}

	overrides := make(map[string]any)
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})

	cfg, err := config.Load(config.Merge(config.FromEnv(environ), overrides))
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zap.ReplaceGlobals(logger)()
	defer logger.Sync()

	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("expected a command and a torrent file, got %d arguments", fs.NArg())
	}

	command, paths := fs.Arg(0), fs.Args()[1:]

	switch command {
	case "info", "announce":
		if len(paths) != 1 {
			return fmt.Errorf("%s takes exactly one torrent file", command)
		}

		m, err := metadata.Parse(paths[0])
		if err != nil {
			return fmt.Errorf("failed to parse torrent file %s: %w", paths[0], err)
		}

		if command == "info" {
			return printInfo(stdout, m)
		}

		e, err := parseEvent(*event)
		if err != nil {
			return err
		}
		return announce(ctx, stdout, cfg, m, e)

	case "watch":
		return watch(ctx, stdout, cfg, paths)
	}

	return fmt.Errorf("unknown command %q", command)
}

func parseEvent(s string) (tracker.Event, error) {
	switch e := tracker.Event(s); e {
	case tracker.EventStarted, tracker.EventStopped, tracker.EventCompleted, tracker.EventUpdated:
		return e, nil
	}

	return "", fmt.Errorf("unknown event %q", s)
}

func printInfo(w io.Writer, m *metadata.MetaInfo) error {
	fmt.Fprintf(w, "Tracker URL: %s\n", m.Announce)
	fmt.Fprintf(w, "Name: %s\n", m.Info.Name)
	fmt.Fprintf(w, "Length: %d\n", m.Info.TotalLength())
	fmt.Fprintf(w, "Info Hash: %s\n", m.Hash)
	fmt.Fprintf(w, "Piece Length: %d\n", m.Info.PieceLength)
	fmt.Fprintf(w, "Private: %t\n", m.Info.IsPrivate())

	if m.CreatedBy != nil {
		fmt.Fprintf(w, "Created By: %s\n", *m.CreatedBy)
	}
	if m.CreationDate != nil {
		fmt.Fprintf(w, "Creation Date: %s\n", time.Unix(*m.CreationDate, 0).UTC().Format(time.RFC3339))
	}
	if m.Comment != nil {
		fmt.Fprintf(w, "Comment: %s\n", *m.Comment)
	}
	if m.Encoding != nil {
		fmt.Fprintf(w, "Encoding: %s\n", *m.Encoding)
	}

	if _, ok := m.Info.Mode.(metadata.MultiFile); ok {
		fmt.Fprintln(w, "Files:")
		for _, f := range m.Info.Files() {
			fmt.Fprintf(w, "%d %s\n", f.Length, m.Info.FilePath("", f))
		}
	}

	fmt.Fprintln(w, "Piece Hashes:")
	for _, h := range m.Info.PieceHashes() {
		fmt.Fprintf(w, "%x\n", h)
	}

	return nil
}

func announce(ctx context.Context, w io.Writer, cfg config.Config, m *metadata.MetaInfo, e tracker.Event) error {
	peerID, err := cfg.PeerID()
	if err != nil {
		return err
	}

	tr, err := torrent.DefaultAnnouncerFactory{PeerID: peerID, Config: cfg}.NewAnnouncer(m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	snap := state.NewState(m).Snapshot()
	res, err := tr.Announce(ctx, tracker.Request{
		Event:      e,
		Uploaded:   snap.Uploaded,
		Downloaded: snap.Downloaded,
		Left:       snap.Left,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Interval: %d\n", res.Interval)
	if res.Complete != nil {
		fmt.Fprintf(w, "Seeders: %d\n", *res.Complete)
	}
	if res.Incomplete != nil {
		fmt.Fprintf(w, "Leechers: %d\n", *res.Incomplete)
	}
	for _, p := range res.Peers {
		fmt.Fprintln(w, p.Addr)
	}

	return nil
}

func watch(ctx context.Context, w io.Writer, cfg config.Config, paths []string) error {
	client, err := torrent.NewClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, path := range paths {
		t, err := client.AddFile(path)
		if err != nil {
			return err
		}

		if err := client.StartTorrent(t.Metadata.Hash); err != nil {
			return err
		}
	}

	<-ctx.Done()
	client.Close()

	for _, t := range client.Torrents() {
		fmt.Fprintf(w, "%s: %d peers discovered\n", t.Metadata.Info.Name, t.Pool.Seen())
		for p, ok := t.Pool.Pop(); ok; p, ok = t.Pool.Pop() {
			fmt.Fprintf(w, "  %s\n", p.Addr)
		}
	}

	return nil
}
