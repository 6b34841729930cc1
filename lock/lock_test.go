package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestLocalExcludesConcurrentHolders(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	_, release := l.Lock(ctx, "k")
	defer release()

	tctx, trelease := l.TryLock(ctx, "k")
	defer trelease()
	if tctx.Err() == nil {
		t.Fatal("expected TryLock to fail while another holder has the lock")
	}
}

func TestLocalReleaseUnblocksWaiter(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	_, release := l.Lock(ctx, "k")

	done := make(chan struct{})
	go func() {
		_, r := l.Lock(ctx, "k")
		r()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock after release")
	}
}

func TestPIDFileLockExcludesConcurrentHolders(t *testing.T) {
	dir := t.TempDir()
	p := NewPIDFileLock(dir, false)
	ctx := context.Background()

	_, release, err := p.Lock(ctx, "metadata")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if _, _, err := p.TryLock(ctx, "metadata"); err == nil {
		t.Fatal("expected TryLock to fail while held")
	}
}

func TestPIDFileLockCompatModeSharesOneFile(t *testing.T) {
	dir := t.TempDir()
	p := NewPIDFileLock(dir, true)
	if got, want := p.path("metadata"), filepath.Join(dir, "lock"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := p.path("rpmdb"), filepath.Join(dir, "lock"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPIDFileLockReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	p := NewPIDFileLock(dir, false)
	ctx := context.Background()

	_, release, err := p.Lock(ctx, "cache")
	if err != nil {
		t.Fatal(err)
	}
	release()

	_, release2, err := p.TryLock(ctx, "cache")
	if err != nil {
		t.Fatalf("expected reacquire after release to succeed: %v", err)
	}
	release2()
}

func TestManagerLockBoth(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, false)
	ctx := context.Background()

	_, release, err := m.Lock(ctx, KindMetadata)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if _, _, err := m.TryLock(ctx, KindMetadata); err == nil {
		t.Fatal("expected contended TryLock to fail")
	}
}
