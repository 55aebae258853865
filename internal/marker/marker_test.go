package marker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-polymer/internal/feature"
)

func worklist(n int, complete ...int) []*feature.Marked {
	items := make([]*feature.Marked, n)
	for i := range items {
		items[i] = feature.NewMarked(&feature.Feature{
			FeatureID: fmt.Sprintf("f%d", i),
			LegendID:  "a",
			Geometry:  orb.Point{float64(i), float64(i)},
		})
	}
	for _, i := range complete {
		items[i].IsComplete = true
	}
	return items
}

func TestNilMarker(t *testing.T) {
	var m *Marker

	if r := m.Current(); r.OK() || !errors.Is(r.Err(), ErrUndefined) {
		t.Errorf("Current() on nil = %v", r.Err())
	}
	if r := m.Next(true); r.OK() {
		t.Error("Next() on nil should fail")
	}
	if m.Requeue() {
		t.Error("Requeue() on nil should be false")
	}
	if m.Len() != 0 || m.Remaining() != 0 {
		t.Error("nil marker should be empty")
	}
}

func TestCurrentBeforeStart(t *testing.T) {
	m := New(worklist(2))
	if r := m.Current(); r.OK() || !errors.Is(r.Err(), ErrOutOfRange) {
		t.Fatalf("Current() before Next = %v", r.Err())
	}
}

func TestNextVisitsEachIncompleteOnce(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		complete []int
		want     []string
	}{
		{"all incomplete", 3, nil, []string{"f0", "f1", "f2"}},
		{"middle complete", 3, []int{1}, []string{"f0", "f2"}},
		{"first and last complete", 4, []int{0, 3}, []string{"f1", "f2"}},
		{"all complete", 2, []int{0, 1}, nil},
		{"empty", 0, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(worklist(tt.n, tt.complete...))

			var got []string
			for i := 0; i <= tt.n; i++ {
				r := m.Next(true)
				if !r.OK() {
					t.Fatalf("Next() failed: %v", r.Err())
				}
				if r.Value() == nil {
					break
				}
				got = append(got, r.Value().Feature.FeatureID)
			}

			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Fatalf("visited %v, want %v", got, tt.want)
			}

			r := m.Next(true)
			if !r.OK() || r.Value() != nil {
				t.Fatal("Next() after the sweep should stay at the end")
			}
		})
	}
}

func TestNextWithoutAdvance(t *testing.T) {
	m := New(worklist(3))

	first := m.Next(false).Value()
	if first == nil || first.Feature.FeatureID != "f0" {
		t.Fatalf("first Next(false) = %v", first)
	}

	again := m.Next(false).Value()
	if again != first {
		t.Fatal("Next(false) moved off an incomplete feature")
	}

	first.IsComplete = true
	next := m.Next(false).Value()
	if next == nil || next.Feature.FeatureID != "f1" {
		t.Fatalf("Next(false) after completion = %v", next)
	}
}

func TestRequeueRevisitsSkipped(t *testing.T) {
	m := New(worklist(3))

	// f0 good, f1 skipped, f2 bad
	for _, complete := range []bool{true, false, true} {
		item := m.Next(true).Value()
		item.IsComplete = complete
	}
	if r := m.Next(true); r.Value() != nil {
		t.Fatal("sweep should be over")
	}

	if !m.Requeue() {
		t.Fatal("Requeue() with a skipped feature should start a new pass")
	}
	if m.Pass() != 2 {
		t.Errorf("Pass() = %d", m.Pass())
	}

	item := m.Next(true).Value()
	if item == nil || item.Feature.FeatureID != "f1" {
		t.Fatalf("requeued feature = %v", item)
	}
	item.IsComplete = true

	if r := m.Next(true); r.Value() != nil {
		t.Fatal("second sweep should end after f1")
	}
	if m.Requeue() {
		t.Fatal("Requeue() with nothing left should be false")
	}
	if m.Completed() != 3 || m.Remaining() != 0 {
		t.Errorf("completed=%d remaining=%d", m.Completed(), m.Remaining())
	}
}

func TestFind(t *testing.T) {
	m := New(worklist(3))
	if r := m.Find("f2"); !r.OK() || r.Value().Feature.FeatureID != "f2" {
		t.Fatalf("Find(f2) = %v", r.Err())
	}
	if r := m.Find("nope"); r.OK() {
		t.Fatal("Find(nope) should fail")
	}
}

func TestRestoreClamps(t *testing.T) {
	m := Restore(worklist(2), 9, 0)
	if m.Cursor() != 2 || m.Pass() != 1 {
		t.Fatalf("cursor=%d pass=%d", m.Cursor(), m.Pass())
	}
}
