package itemcache_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/itemcache/internal/memmanifest"
	"github.com/calvinalkan/itemcache/pkg/itemcache"
	"github.com/calvinalkan/itemcache/pkg/itemcache/model"
)

// Test_Metamorphic_MatchesReferenceModel drives the real cache and a
// deliberately naive reference model through the same random operation
// sequence and checks after every step that their externally observable
// state agrees. Divergence means a semantic invariant was broken somewhere
// in the index/flush machinery, not just a surface-level API bug.
func Test_Metamorphic_MatchesReferenceModel(t *testing.T) {
	t.Parallel()

	seedCount := 20
	if testing.Short() {
		seedCount = 3
	}

	for i := range seedCount {
		seed := int64(2000 + i)

		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()

			runMetamorphicTrial(t, seed)
		})
	}
}

func runMetamorphicTrial(t *testing.T, seed int64) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	ctx := context.Background()

	mem := memmanifest.New()
	real := itemcache.New(itemcache.Options{Manifest: mem, Segments: mem})
	ref := model.New()

	alphabet := []string{"a", "b", "c", "d", "e"}

	for step := 0; step < 200; step++ {
		key := alphabet[rng.Intn(len(alphabet))]
		val := []byte(fmt.Sprintf("v%d", rng.Intn(1000)))

		switch rng.Intn(6) {
		case 0:
			wantOK := ref.Create(key, val)
			err := real.Create(ctx, []byte(key), val)
			require.Equal(t, wantOK, err == nil, "Create(%q) step %d", key, step)

		case 1:
			wantOK := ref.Update(key, val)
			err := real.Update(ctx, []byte(key), val)
			require.Equal(t, wantOK, err == nil, "Update(%q) step %d", key, step)

		case 2:
			wantOK := ref.Dirty(key)
			err := real.Dirty(ctx, []byte(key))
			require.Equal(t, wantOK, err == nil, "Dirty(%q) step %d", key, step)

		case 3:
			wantOK := ref.Delete(key)
			err := real.Delete(ctx, []byte(key))
			require.Equal(t, wantOK, err == nil, "Delete(%q) step %d", key, step)

		case 4:
			wantEntry, wantFound := ref.Lookup(key)

			it, found, deleted, lookupErr := real.LookupExact([]byte(key), len(wantEntry.Value))
			require.NoError(t, lookupErr, "LookupExact(%q) step %d", key, step)
			require.Equal(t, wantFound, found, "LookupExact(%q) step %d", key, step)

			if wantFound {
				require.Equal(t, wantEntry.Deletion, deleted, "LookupExact(%q) deleted flag step %d", key, step)

				if !wantEntry.Deletion {
					require.Equal(t, wantEntry.Value, it.Value, "LookupExact(%q) value step %d", key, step)
				}
			}

		case 5:
			batchesBefore := len(mem.Flushed())
			wantFlushed := ref.FlushDirty()

			require.NoError(t, real.DirtySeg(ctx))

			batches := mem.Flushed()
			if len(wantFlushed) == 0 {
				require.Len(t, batches, batchesBefore, "unexpected flush batch at step %d", step)
			} else {
				require.Len(t, batches, batchesBefore+1, "expected one new flush batch at step %d", step)
				require.Len(t, batches[len(batches)-1], len(wantFlushed), "flush batch size mismatch step %d", step)
			}
		}

		diff := diffState(ref, real)
		require.Empty(t, diff, "state diverged after step %d (op on %q)", step, key)
	}
}

// diffState compares the model's view of every tracked key against the
// real cache's LookupExact answer for the same key.
func diffState(ref *model.Cache, real *itemcache.Cache) string {
	type observed struct {
		Found    bool
		Deletion bool
		Value    []byte
	}

	want := map[string]observed{}
	got := map[string]observed{}

	for _, e := range ref.Entries() {
		want[e.Key] = observed{Found: true, Deletion: e.Deletion, Value: e.Value}

		it, found, deleted, err := real.LookupExact([]byte(e.Key), len(e.Value))
		if err != nil {
			got[e.Key] = observed{Found: found, Deletion: deleted, Value: []byte(err.Error())}

			continue
		}

		got[e.Key] = observed{Found: found, Deletion: deleted, Value: it.Value}
	}

	return cmp.Diff(want, got)
}
