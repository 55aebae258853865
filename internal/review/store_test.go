package review

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"
)

// memSnapshots keeps encoded snapshots in a map, as Redis would.
type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memSnapshots) Load(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (m *memSnapshots) Store(ctx context.Context, snap *Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[snap.ID] = b
	return nil
}

func (m *memSnapshots) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func TestMemoryStoreWithoutSnapshots(t *testing.T) {
	st := NewMemoryStore(nil, nil)
	ctx := context.Background()

	s, err := st.Create(ctx, "cog1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := st.Get(ctx, s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := st.Delete(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(ctx, s.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestEvictSkipsBusySessions(t *testing.T) {
	st := NewMemoryStore(nil, nil)
	ctx := context.Background()

	busy, _ := st.Create(ctx, "cog1")
	idle, _ := st.Create(ctx, "cog2")
	busy.Lock()
	defer busy.Unlock()

	if n := st.Evict(0); n != 1 {
		t.Fatalf("evicted %d sessions, want 1", n)
	}
	if got, err := st.Get(ctx, busy.ID); err != nil || got != busy {
		t.Errorf("busy session: %v, %v", got, err)
	}
	if _, err := st.Get(ctx, idle.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("idle session: err = %v", err)
	}
}

func TestSessionRestoredFromSnapshot(t *testing.T) {
	snaps := &memSnapshots{}
	st := NewMemoryStore(snaps, nil)
	ctx := context.Background()

	fb := &fakeBackend{listing: testListing()}
	c := NewController(fb, st, nil, DefaultConfig(), nil)

	s, err := st.Create(ctx, "cog1")
	if err != nil {
		t.Fatal(err)
	}
	startValidation(t, c, s)
	if err := c.Mark(ctx, s, MarkGood); err != nil {
		t.Fatal(err)
	}
	if err := c.TranslateEnd(ctx, s, "p2", orb.Point{31, 41}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ToggleGroup(ctx, s, "L1", false); err != nil {
		t.Fatal(err)
	}

	if n := st.Evict(0); n != 1 {
		t.Fatalf("evicted %d sessions, want 1", n)
	}

	r, err := st.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r == s {
		t.Fatal("session was not rebuilt")
	}
	if currentID(r) != "p2" || r.Marker.Pass() != 1 || r.Marker.Completed() != 1 {
		t.Fatalf("worklist: current=%s pass=%d completed=%d", currentID(r), r.Marker.Pass(), r.Marker.Completed())
	}
	if r.Button.State() != StateReset || r.Progress != s.Progress {
		t.Errorf("state=%s progress=%+v", r.Button.State(), r.Progress)
	}
	if cur := r.Current(); !orb.Equal(cur.Feature.Geometry, orb.Point{31, 41}) || !orb.Equal(cur.OriginalCoordinates, orb.Point{30, 40}) {
		t.Errorf("positions: moved=%v original=%v", cur.Feature.Geometry, cur.OriginalCoordinates)
	}
	if l, ok := r.Overlays.Layer("L1"); !ok || l.Visible {
		t.Error("hidden layer not restored")
	}
	if item, err := r.Overlays.Feature("g1", "p2"); err != nil || !orb.Equal(item.Geometry, orb.Point{31, 41}) {
		t.Errorf("overlay = %+v, %v", item, err)
	}

	// The restored session keeps working.
	if err := c.Misc(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := c.Mark(ctx, r, MarkGood); err != nil {
		t.Fatal(err)
	}
	if currentID(r) != "p3" {
		t.Errorf("current = %s, want p3", currentID(r))
	}
}
