package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/itemcache/internal/catalog"
	"github.com/calvinalkan/itemcache/internal/memmanifest"
	"github.com/calvinalkan/itemcache/internal/segio"
	"github.com/calvinalkan/itemcache/pkg/itemcache"
)

func cmdRepl(out, errOut io.Writer, args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(errOut)

	dataDir := fs.String("data-dir", "", "directory backing a durable catalog/segment store (in-memory if unset)")
	configPath := fs.String("config", "", "path to a HuJSON config file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "icache: %v\n", err)

		return 1
	}

	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	sess, cleanup, err := newSession(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "icache: %v\n", err)

		return 1
	}

	defer cleanup()

	return sess.runREPL(out, errOut)
}

// session wires a Cache to either a durable catalog/segment store or a
// purely in-memory manifest, depending on whether a data directory was
// configured.
type session struct {
	cache *itemcache.Cache
	mem   *memmanifest.Manifest // non-nil when running in-memory

	cat   *catalog.Catalog // non-nil when durable
	store *segio.SegmentStore
}

func newSession(cfg config) (*session, func(), error) {
	if cfg.DataDir == "" {
		mem := memmanifest.New()
		counters := &itemcache.AtomicCounters{}
		c := itemcache.New(itemcache.Options{
			Manifest:   mem,
			Segments:   mem,
			MaxKeySize: cfg.MaxKeySize,
			Counters:   counters,
		})

		return &session{cache: c, mem: mem}, func() {}, nil
	}

	if err := os.MkdirAll(cfg.segmentsPath(), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create segments dir: %w", err)
	}

	ctx := context.Background()

	cat, err := catalog.Open(ctx, cfg.catalogPath())
	if err != nil {
		return nil, nil, err
	}

	store := segio.NewSegmentStore(cfg.segmentsPath(), cat)

	reader := catalogReader{cat: cat}
	counters := &itemcache.AtomicCounters{}

	c := itemcache.New(itemcache.Options{
		Manifest:   reader,
		Segments:   store,
		MaxKeySize: cfg.MaxKeySize,
		Counters:   counters,
	})

	s := &session{cache: c, cat: cat, store: store}

	return s, func() { _ = cat.Close() }, nil
}

func (s *session) runREPL(out, errOut io.Writer) int {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("icache> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return 0
			}

			fmt.Fprintf(errOut, "icache: %v\n", err)

			return 1
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}

		if code, done := s.dispatch(out, errOut, fields); done {
			return code
		}
	}
}

func (s *session) dispatch(out, errOut io.Writer, fields []string) (code int, done bool) {
	ctx := context.Background()

	switch fields[0] {
	case "exit", "quit", "q":
		return 0, true
	case "help":
		printUsage(out)
	case "get":
		if len(fields) != 2 {
			fmt.Fprintln(errOut, "usage: get <key>")

			return 0, false
		}

		it, err := s.cache.Lookup(ctx, []byte(fields[1]))
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)

			return 0, false
		}

		fmt.Fprintf(out, "%s = %q (dirty=%v)\n", it.Key, it.Value, it.Dirty)
	case "put":
		if len(fields) != 3 {
			fmt.Fprintln(errOut, "usage: put <key> <value>")

			return 0, false
		}

		if err := s.cache.Create(ctx, []byte(fields[1]), []byte(fields[2])); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	case "update":
		if len(fields) != 3 {
			fmt.Fprintln(errOut, "usage: update <key> <value>")

			return 0, false
		}

		if err := s.cache.Update(ctx, []byte(fields[1]), []byte(fields[2])); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	case "del":
		if len(fields) != 2 {
			fmt.Fprintln(errOut, "usage: del <key>")

			return 0, false
		}

		if err := s.cache.Delete(ctx, []byte(fields[1])); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	case "dirty":
		fmt.Fprintf(out, "hasDirty=%v\n", s.cache.HasDirty())
	case "ranges":
		rs := s.cache.Ranges()
		if len(rs) == 0 {
			fmt.Fprintln(out, "no coverage yet")
		}

		for _, r := range rs {
			fmt.Fprintf(out, "[%q, %q]\n", r.Start, r.End)
		}
	case "flush":
		if err := s.cache.DirtySeg(ctx); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)

			return 0, false
		}

		if s.store != nil {
			if err := s.store.Finish(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}

		fmt.Fprintln(out, "flushed")
	case "audit":
		if err := itemcache.AuditTree(s.cache); err != nil {
			fmt.Fprintf(out, "audit failed: %v\n", err)
		} else {
			fmt.Fprintln(out, "ok")
		}
	default:
		fmt.Fprintf(errOut, "icache: unknown command %q (try 'help')\n", fields[0])
	}

	return 0, false
}

// catalogReader adapts a [catalog.Catalog] plus the segment files it
// tracks to [itemcache.ManifestReader].
type catalogReader struct {
	cat *catalog.Catalog
}

func (r catalogReader) ReadItems(ctx context.Context, cache *itemcache.Cache, start, end []byte) error {
	segs, err := r.cat.Overlapping(ctx, start, end)
	if err != nil {
		return err
	}

	for _, seg := range segs {
		records, err := segio.Read(seg.Path)
		if err != nil {
			return err
		}

		for _, rec := range records {
			if bytes.Compare(rec.Key, start) < 0 || bytes.Compare(rec.Key, end) > 0 {
				continue
			}

			flags := itemcache.ItemFlags(0)
			if rec.Flags&segio.FlagDeletion != 0 {
				flags = itemcache.FlagDeletion
			}

			if err := cache.AddBatch(rec.Key, rec.Value, flags); err != nil {
				return err
			}
		}
	}

	return cache.InsertBatch(start, end)
}
