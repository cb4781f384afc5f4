package segio

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/calvinalkan/itemcache/internal/catalog"
	"github.com/calvinalkan/itemcache/pkg/itemcache"
)

// MaxSegmentBytes bounds how much key+value data a single segment may
// hold before FitsSingle refuses a flush, forcing the caller to split the
// dirty set across more than one DirtySeg call.
const MaxSegmentBytes = 64 << 20

// SegmentStore adapts a directory of SEG1 files plus a [catalog.Catalog]
// to the [itemcache.SegmentWriter] interface, so a Cache can flush
// directly to durable storage.
type SegmentStore struct {
	dir     string
	cat     *catalog.Catalog
	current *Writer
	id      string
	path    string
	start   []byte
	end     []byte
	count   int
}

// NewSegmentStore returns a SegmentStore rooted at dir, registering
// finished segments in cat.
func NewSegmentStore(dir string, cat *catalog.Catalog) *SegmentStore {
	return &SegmentStore{dir: dir, cat: cat}
}

// FitsSingle implements [itemcache.SegmentWriter].
func (s *SegmentStore) FitsSingle(n int, keyBytes, valBytes uint64) bool {
	return keyBytes+valBytes <= MaxSegmentBytes
}

// FirstItem implements [itemcache.SegmentWriter].
func (s *SegmentStore) FirstItem(key, val []byte, flags itemcache.ItemFlags, n int, keyBytes uint64) {
	s.id = uuid.NewString()
	s.path = filepath.Join(s.dir, s.id+".seg")
	s.current = NewWriter(s.path)
	s.start = append([]byte(nil), key...)
	s.count = 0

	s.AppendItem(key, val, flags)
}

// AppendItem implements [itemcache.SegmentWriter].
func (s *SegmentStore) AppendItem(key, val []byte, flags itemcache.ItemFlags) {
	raw := uint8(0)
	if flags&itemcache.FlagDeletion != 0 {
		raw = FlagDeletion
	}

	s.current.AppendItem(key, val, raw)
	s.end = append([]byte(nil), key...)
	s.count++
}

// Finish closes the in-progress segment, publishes it atomically, and
// registers it with the catalog under the id FirstItem generated for it.
// It is not part of [itemcache.SegmentWriter]; callers invoke it once
// after a [itemcache.Cache.DirtySeg] call returns, since DirtySeg has no
// "segment closed" hook of its own. It is a no-op if no item was ever
// written (DirtySeg found nothing dirty).
func (s *SegmentStore) Finish(ctx context.Context) error {
	if s.current == nil {
		return nil
	}

	if err := s.current.Close(); err != nil {
		return fmt.Errorf("segio: finish segment: %w", err)
	}

	defer func() { s.current = nil }()

	return s.cat.Put(ctx, catalog.Segment{
		ID:    s.id,
		Start: s.start,
		End:   s.end,
		Path:  s.path,
		Items: s.count,
	})
}
