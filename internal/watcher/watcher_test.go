package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type recorder struct {
	ch chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 64)}
}

func (r *recorder) record(ev Event) {
	r.ch <- ev
}

func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return Event{}
	}
}

// waitFor consumes events until one matches kind and path.
func (r *recorder) waitFor(t *testing.T, kind Kind, path string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind && ev.Path == path {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s %s", kind, path)
		}
	}
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(wait):
	}
}

func startWatcher(t *testing.T, roots ...string) *recorder {
	t.Helper()
	rec := newRecorder()
	w, err := New(Config{Roots: roots, DebounceDelay: 100 * time.Millisecond, OnEvent: rec.record})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Start() error = %v", err)
		}
	})
	<-w.Ready()
	return rec
}

func TestWatcher_ReportsAddAndChange(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.md")
	if err := os.WriteFile(existing, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := startWatcher(t, root)

	created := filepath.Join(root, "new.md")
	if err := os.WriteFile(created, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := rec.next(t)
	if ev.Kind != Added || ev.Path != created {
		t.Errorf("event = %+v, want added %s", ev, created)
	}

	if err := os.WriteFile(existing, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, Changed, existing)
}

func TestWatcher_NestedAndNewDirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "commands"), 0o755); err != nil {
		t.Fatal(err)
	}
	rec := startWatcher(t, root)

	nested := filepath.Join(root, "commands", "deploy.md")
	if err := os.WriteFile(nested, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ev := rec.next(t); ev.Path != nested || ev.Kind != Added {
		t.Errorf("event = %+v, want added %s", ev, nested)
	}

	dir := filepath.Join(root, "agents")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	inNew := filepath.Join(dir, "helper.md")
	if err := os.WriteFile(inNew, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, Added, inNew)
}

func TestWatcher_IgnoresHidden(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	rec := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".swp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.none(t, 200*time.Millisecond)
}

func TestWatcher_DebounceCoalesces(t *testing.T) {
	w, err := New(Config{DebounceDelay: time.Second, OnEvent: func(Event) {}})
	if err != nil {
		t.Fatal(err)
	}

	w.schedule("/a", Added)
	w.schedule("/a", Changed)
	w.schedule("/b", Changed)
	w.schedule("/b", Changed)

	if got := w.due(time.Now()); len(got) != 0 {
		t.Fatalf("due() before delay = %v, want none", got)
	}
	got := w.due(time.Now().Add(2 * time.Second))
	want := []Event{{Kind: Added, Path: "/a"}, {Kind: Changed, Path: "/b"}}
	if len(got) != len(want) {
		t.Fatalf("due() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("due()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if again := w.due(time.Now().Add(time.Hour)); len(again) != 0 {
		t.Errorf("due() delivered %v twice", again)
	}
}

func TestExistingRoots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got := ExistingRoots(dir, filepath.Join(dir, "missing"), file, dir+"/")
	if len(got) != 1 || got[0] != dir {
		t.Errorf("ExistingRoots() = %v, want [%s]", got, dir)
	}
}

func TestStart_NoRoots(t *testing.T) {
	w, err := New(Config{Roots: []string{filepath.Join(t.TempDir(), "nope")}, OnEvent: func(Event) {}})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-w.Ready():
	default:
		t.Error("Ready() not closed")
	}
}

func TestNew_RequiresCallback(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}
