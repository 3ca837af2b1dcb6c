package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/atlas/internal/chart"
	"github.com/starford/atlas/internal/storage"
)

// watcherTestEnv sets up a charts dir, storage, builder and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *chart.Builder, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store, chart.NewBuilder(store, nil, quietLogger()), testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewChartIndexed(t *testing.T) {
	root, store, b, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, b, store, quietLogger(), func(kind, slug string) {
		mu.Lock()
		events = append(events, kind+":"+slug)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "index.txt"), []byte("% Home"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("")
		return cs != ""
	}, "new chart not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:" {
				return true
			}
		}
		return false
	}, "expected created callback for root chart")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root, store, b, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, b, store, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(root, "deep")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "index.txt"), []byte("% Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("deep/")
		return cs != ""
	}, "chart in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, store, b, db := watcherTestEnv(t)

	writeFile(t, root, "del/index.txt", "% Delete Me")
	if err := Sync(db, b, store, quietLogger(), nil); err != nil {
		t.Fatal(err)
	}

	cs, _ := db.GetChecksum("del/")
	if cs == "" {
		t.Fatal("precondition: chart should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, b, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "del", "index.txt"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del/")
		return cs == ""
	}, "deleted chart still in index")
}

func TestWatcher_DrawingChangeReindexes(t *testing.T) {
	root, store, b, db := watcherTestEnv(t)

	writeFile(t, root, "ops/index.txt", "% Ops\n![f](flow.svg)")
	writeFile(t, root, "ops/flow.svg", `<svg><text>old</text></svg>`)
	if err := Sync(db, b, store, quietLogger(), nil); err != nil {
		t.Fatal(err)
	}
	before, _ := db.GetChecksum("ops/")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, b, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "ops", "flow.svg"), []byte(`<svg><text>new</text></svg>`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("ops/")
		return cs != "" && cs != before
	}, "drawing change did not reindex the chart")
}
