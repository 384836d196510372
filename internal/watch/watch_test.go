package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesBurstIntoOneRun(t *testing.T) {
	root := t.TempDir()
	var runs int32
	var mu sync.Mutex
	var seenPaths []string

	w := New(root, 80*time.Millisecond, false, func(ctx context.Context, paths []string) error {
		atomic.AddInt32(&runs, 1)
		mu.Lock()
		seenPaths = append(seenPaths, paths...)
		mu.Unlock()
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestWatcher_RerunRequestedWhileRunning(t *testing.T) {
	root := t.TempDir()
	var runs int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	w := New(root, 20*time.Millisecond, false, func(ctx context.Context, paths []string) error {
		n := atomic.AddInt32(&runs, 1)
		if n == 1 {
			started <- struct{}{}
			<-release
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = w.Start(ctx) }()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	<-started

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("y"), 0o644))
	time.Sleep(60 * time.Millisecond)
	close(release)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
}
