package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestChangeNotifiesListener(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewInterval(ctx, 20*time.Millisecond)
	defer w.Close()
	w.AddWatch(path)

	var count atomic.Int32
	w.Listen(func() { count.Add(1) })

	time.Sleep(30 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("b"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(80 * time.Millisecond)

	if got := count.Load(); got == 0 {
		t.Errorf("expected at least one aggregate change event, got %d", got)
	}
}
