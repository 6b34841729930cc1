package download

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/checksum"
)

func digestOf(t *testing.T, data string) checksum.Digest {
	t.Helper()
	sum := sha256.Sum256([]byte(data))
	d, err := checksum.Parse("sha256:" + hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestFileFullVerifiesChecksum(t *testing.T) {
	const body = "metadata payload"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	d := New(time.Second, true)
	dst := filepath.Join(t.TempDir(), "payload")
	if err := d.FileFull(context.Background(), srv.URL+"/payload", dst, 0, "", digestOf(t, body), nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Errorf("unexpected body %q", got)
	}
}

func TestFileFullChecksumMismatchLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	d := New(time.Second, true)
	dst := filepath.Join(t.TempDir(), "payload")
	err := d.FileFull(context.Background(), srv.URL+"/payload", dst, 0, "", digestOf(t, "expected"), nil)
	if !errors.Is(err, zif.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("a failed fetch must leave the target absent on disk")
	}
}

func TestFileFullSizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("four"))
	}))
	defer srv.Close()

	d := New(time.Second, true)
	dst := filepath.Join(t.TempDir(), "payload")
	err := d.FileFull(context.Background(), srv.URL+"/payload", dst, 99, "", checksum.Digest{}, nil)
	if !errors.Is(err, zif.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("a failed fetch must leave the target absent on disk")
	}
}

func TestFileFullOffline(t *testing.T) {
	d := New(time.Second, false)
	dst := filepath.Join(t.TempDir(), "payload")
	err := d.FileFull(context.Background(), "http://example.invalid/x", dst, 0, "", checksum.Digest{}, nil)
	if !errors.Is(err, zif.ErrOffline) {
		t.Errorf("expected ErrOffline, got %v", err)
	}
}

func TestFileFullLocalCopyWorksOffline(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	const body = "cached bytes"
	if err := os.WriteFile(src, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	d := New(time.Second, false) // network=false: local copies still work
	dst := filepath.Join(t.TempDir(), "dst")
	if err := d.FileFull(context.Background(), src, dst, 0, "", digestOf(t, body), nil); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != body {
		t.Errorf("unexpected copy %q", got)
	}
}

func TestLocationFullBadMirrorRecovery(t *testing.T) {
	const body = "repomd contents"
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("corrupted mirror payload")) // 200, wrong bytes
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer good.Close()

	d := New(time.Second, true)
	d.LocationAddArray([]string{bad.URL, good.URL})

	dst := filepath.Join(t.TempDir(), "repomd.xml")
	if err := d.LocationFull(context.Background(), "repodata/repomd.xml", dst, 0, "", digestOf(t, body), nil); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Errorf("unexpected contents %q", got)
	}
	if n := d.LocationSize(); n != 1 {
		t.Errorf("failing mirror should have been removed from the pool, size = %d", n)
	}
}

func TestLocationFullExhaustsPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(time.Second, true)
	d.LocationAddArray([]string{srv.URL + "/a", srv.URL + "/b"})
	dst := filepath.Join(t.TempDir(), "x")
	err := d.LocationFull(context.Background(), "file", dst, 0, "", checksum.Digest{}, nil)
	if !errors.Is(err, zif.ErrFailedToDownload) {
		t.Fatalf("expected ErrFailedToDownload, got %v", err)
	}
	if n := d.LocationSize(); n != 0 {
		t.Errorf("every failing mirror should be removed, size = %d", n)
	}
}

func TestLocationFullEmptyPool(t *testing.T) {
	d := New(time.Second, true)
	err := d.LocationFull(context.Background(), "file", filepath.Join(t.TempDir(), "x"), 0, "", checksum.Digest{}, nil)
	if !errors.Is(err, zif.ErrNoLocations) {
		t.Errorf("expected ErrNoLocations, got %v", err)
	}
}

func TestRateLimitedFetchSucceeds(t *testing.T) {
	const body = "throttled payload"
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(body))
	}))
	defer srv.Close()

	d := New(time.Second, true)
	d.SetRateLimit(1000) // High enough that the test doesn't sleep.
	for i := 0; i < 3; i++ {
		dst := filepath.Join(t.TempDir(), "payload")
		if err := d.FileFull(context.Background(), srv.URL+"/payload", dst, 0, "", digestOf(t, body), nil); err != nil {
			t.Fatal(err)
		}
	}
	if hits != 3 {
		t.Errorf("expected 3 server hits, got %d", hits)
	}
	// Zero clears the throttle.
	d.SetRateLimit(0)
	dst := filepath.Join(t.TempDir(), "payload")
	if err := d.FileFull(context.Background(), srv.URL+"/payload", dst, 0, "", digestOf(t, body), nil); err != nil {
		t.Fatal(err)
	}
}

func TestLocationPoolOperations(t *testing.T) {
	d := New(time.Second, true)
	d.LocationAddURI("http://a.example/")
	d.LocationAddArray([]string{"http://b.example/", "http://c.example/"})
	if n := d.LocationSize(); n != 3 {
		t.Fatalf("size = %d, want 3", n)
	}
	d.LocationRemoveURI("http://b.example/")
	if n := d.LocationSize(); n != 2 {
		t.Fatalf("size after remove = %d, want 2", n)
	}
	d.LocationClear()
	if n := d.LocationSize(); n != 0 {
		t.Fatalf("size after clear = %d, want 0", n)
	}
}

func TestDecompressForGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "primary.xml.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	const body = "<metadata/>"
	zw.Write([]byte(body))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := DecompressFor(path)
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dir, "primary.xml") {
		t.Errorf("unexpected output path %q", out)
	}
	got, _ := os.ReadFile(out)
	if string(got) != body {
		t.Errorf("unexpected decompressed contents %q", got)
	}
}

func TestDecompressForPassthrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.xml")
	os.WriteFile(path, []byte("x"), 0o644)
	out, err := DecompressFor(path)
	if err != nil {
		t.Fatal(err)
	}
	if out != path {
		t.Errorf("uncompressed input should pass through, got %q", out)
	}
}
