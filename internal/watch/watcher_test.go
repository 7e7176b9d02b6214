package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestRelevantFiltersByPathAndOp(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "deaths.csv")
	w := New([]string{input}, func(context.Context) error { return nil })

	cases := []struct {
		evt  fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: input, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: input, Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: input, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: filepath.Join(dir, "other.csv"), Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := w.relevant(tc.evt); got != tc.want {
			t.Fatalf("%v: expected %v, got %v", tc.evt, tc.want, got)
		}
	}
}

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "deaths.csv")
	if err := os.WriteFile(input, []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fired := make(chan struct{}, 4)
	w := New([]string{input}, func(context.Context) error {
		fired <- struct{}{}
		return nil
	})
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := os.WriteFile(input, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("expected rerun after input write")
	}
}
