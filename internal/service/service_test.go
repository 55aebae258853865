package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSourceList(t *testing.T) {
	dir := t.TempDir()
	svc := NewSourceService(dir)

	files, err := svc.List()
	if err != nil || len(files) != 0 {
		t.Fatalf("missing dir: %v %v", files, err)
	}

	touch(t, svc.SourcesDir(), "a.geojson", 10)
	touch(t, svc.SourcesDir(), "b.csv", 10)
	files, err = svc.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "a.geojson" || files[0].Size != "10 B" {
		t.Fatalf("files = %+v", files)
	}

	if _, err := svc.Path("a.geojson"); err != nil {
		t.Errorf("Path: %v", err)
	}
	for _, bad := range []string{"", "../a.geojson", ".env"} {
		if _, err := svc.Path(bad); err == nil {
			t.Errorf("Path(%q) accepted", bad)
		}
	}
}

func TestCogList(t *testing.T) {
	dir := t.TempDir()
	svc := NewCogService(dir)

	touch(t, svc.CogsDir(), "B.tif", 2048)
	touch(t, svc.CogsDir(), "A.cog.tif", 1)
	touch(t, svc.CogsDir(), "notes.txt", 1)

	files, err := svc.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].ID != "A" || files[1].ID != "B" {
		t.Fatalf("files = %+v", files)
	}
	if files[1].Size != "2.0 KB" || files[0].URL != "/cogs/A.cog.tif" {
		t.Errorf("file = %+v", files[1])
	}
	if _, ok := svc.Find("B"); !ok {
		t.Error("Find(B) failed")
	}
}

func TestEventBusFilter(t *testing.T) {
	bus := NewEventBus()
	all := bus.Subscribe()
	one := bus.SubscribeFunc(func(e Event) bool { return e.ID == "s1" })
	defer bus.Unsubscribe(all)
	defer bus.Unsubscribe(one)

	bus.Publish(Event{Resource: "sessions", Action: "mark", ID: "s2"})
	bus.Publish(Event{Resource: "sessions", Action: "mark", ID: "s1"})

	if e := <-all; e.ID != "s2" {
		t.Errorf("first event = %+v", e)
	}
	select {
	case e := <-one:
		if e.ID != "s1" {
			t.Errorf("filtered event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}
