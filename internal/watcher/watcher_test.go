package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects batches delivered by Watch.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, paths)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func TestBatcher_CoalescesBurst(t *testing.T) {
	// Given: a batcher with a short window
	rec := &recorder{}
	b := newBatcher(50*time.Millisecond, rec.record)
	defer b.stop()

	// When: the same paths change repeatedly in a burst
	for i := 0; i < 5; i++ {
		b.add("b.go")
		b.add("a.go")
	}

	// Then: one sorted batch is delivered
	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.batches) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a.go", "b.go"}, rec.batches[0])
}

func TestBatcher_StopDropsPending(t *testing.T) {
	rec := &recorder{}
	b := newBatcher(20*time.Millisecond, rec.record)

	b.add("a.go")
	b.stop()
	b.add("b.go")
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, rec.all())
}

func TestWatch_ReportsChangesAndSkipsIgnored(t *testing.T) {
	// Given: a watched tree with an ignored directory
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("out/\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "out"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, Options{
			DebounceWindow:   30 * time.Millisecond,
			RespectGitignore: true,
			Exclude:          []string{"*.tmp"},
		}, rec.record)
	}()
	time.Sleep(100 * time.Millisecond)

	// When: files change inside and outside the ignored paths
	require.NoError(t, os.WriteFile(filepath.Join(root, "out", "build.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "lib.go"), []byte("package src\n"), 0o644))

	// Then: only the tracked file is reported
	assert.Eventually(t, func() bool {
		for _, p := range rec.all() {
			if p == "src/lib.go" {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
	assert.NotContains(t, rec.all(), "out/build.go")
	assert.NotContains(t, rec.all(), "src/scratch.tmp")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{}, func([]string) {})
	assert.Error(t, err)
}
