// Package download implements the engine's fetch primitive: proxy
// configuration, cancellation, progress reporting, content-type/size/
// checksum verification, and a location pool of equivalent base URIs with a
// selection policy that removes URIs that fail.
//
// The location pool tries URIs sequentially (removing ones that fail)
// rather than racing them concurrently: a metadata fetch wants every mirror
// to get exactly one chance, not a thundering herd.
package download

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quay/zlog"
	"golang.org/x/time/rate"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/checksum"
	"github.com/zifproj/zif/internal/httputil"
	"github.com/zifproj/zif/progress"
)

// Policy selects how [Download.LocationFull] picks among the location pool.
type Policy int

// Recognized location-pool selection policies.
const (
	Ordered Policy = iota
	Random
)

// Download is a fetch primitive owned by one caller (typically one
// [storeremote.Store]); it is not safe to share across goroutines without
// external synchronization. A new Download is cheap to construct per
// caller.
type Download struct {
	client *http.Client

	mu       sync.Mutex
	uris     []string
	policy   Policy
	cancelFn context.CancelFunc

	network bool // false mirrors the "network=false" config key: Offline.

	// reqRate throttles HTTP fetches; nil means unthrottled. Local-file
	// copies are never throttled.
	reqRate *rate.Limiter

	attempts prometheus.Counter
}

// New returns a ready-to-use Download. network=false makes every network
// fetch fail with [zif.ErrOffline]; local-file ("/..."-prefixed) fetches are
// unaffected, so a warm cache still resolves offline.
func New(timeout time.Duration, network bool) *Download {
	return &Download{
		client:  &http.Client{Timeout: timeout},
		network: network,
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zif_download_attempts_total",
			Help: "Total number of download attempts made by this process.",
		}),
	}
}

// SetRateLimit throttles HTTP fetches to at most "limit" requests per
// second, with a burst of one. A limit <= 0 removes any throttle.
func (d *Download) SetRateLimit(limit float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit <= 0 {
		d.reqRate = nil
		return
	}
	d.reqRate = rate.NewLimiter(rate.Limit(limit), 1)
}

// SetProxy configures the underlying client's proxy. Must precede any fetch.
func (d *Download) SetProxy(rawuri string) error {
	if rawuri == "" {
		if t, ok := d.client.Transport.(*http.Transport); ok {
			t.Proxy = nil
		}
		return nil
	}
	u, err := url.Parse(rawuri)
	if err != nil {
		return &zif.Error{Op: "Download.SetProxy", Kind: zif.ErrMalformed, Inner: err}
	}
	d.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	return nil
}

// Cancel aborts the in-flight request, if any.
func (d *Download) Cancel() {
	d.mu.Lock()
	cancel := d.cancelFn
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// verifyOpts bundles FileFull/LocationFull's optional verification
// parameters.
type verifyOpts struct {
	size         int64 // 0 means unchecked.
	contentType  string
	checksum     checksum.Digest // Zero value means unchecked.
}

// FileFull fetches uri to targetPath, reporting progress via state and
// verifying size/content-type/checksum when provided. A uri beginning with
// "/" is a local path and is copied rather than fetched over HTTP.
func (d *Download) FileFull(ctx context.Context, uri, targetPath string, size int64, contentType string, sum checksum.Digest, state *progress.Node) error {
	if state != nil {
		state.SetSteps(1, 1)
	}
	opts := verifyOpts{size: size, contentType: contentType, checksum: sum}

	var err error
	if strings.HasPrefix(uri, "/") {
		err = d.copyLocal(ctx, uri, targetPath, opts)
	} else {
		if !d.network {
			return &zif.Error{Op: "Download.FileFull", Kind: zif.ErrOffline, Message: "network disabled"}
		}
		err = d.fetch(ctx, uri, targetPath, opts)
	}
	if state != nil && err == nil {
		state.Done()
		state.Done()
	}
	return err
}

func (d *Download) copyLocal(ctx context.Context, src, dst string, opts verifyOpts) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return &zif.Error{Op: "Download.copyLocal", Kind: zif.ErrTransport, Inner: err}
	}
	defer in.Close()
	return d.writeVerified(ctx, in, dst, opts)
}

func (d *Download) fetch(ctx context.Context, uri, dst string, opts verifyOpts) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancelFn = cancel
	limiter := d.reqRate
	d.mu.Unlock()
	defer cancel()
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return &zif.Error{Op: "Download.fetch", Kind: zif.ErrCancelled, Inner: err}
		}
	}
	if d.attempts != nil {
		d.attempts.Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return &zif.Error{Op: "Download.fetch", Kind: zif.ErrTransport, Inner: err}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &zif.Error{Op: "Download.fetch", Kind: zif.ErrCancelled, Inner: ctx.Err()}
		}
		return &zif.Error{Op: "Download.fetch", Kind: zif.ErrTransport, Inner: err}
	}
	defer resp.Body.Close()
	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return &zif.Error{Op: "Download.fetch", Kind: zif.ErrTransport, Inner: err}
	}
	if opts.contentType != "" {
		if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, opts.contentType) {
			return &zif.Error{Op: "Download.fetch", Kind: zif.ErrContentTypeMismatch,
				Message: fmt.Sprintf("got %q, wanted %q", ct, opts.contentType)}
		}
	}
	if opts.size > 0 && resp.ContentLength > 0 && resp.ContentLength != opts.size {
		return &zif.Error{Op: "Download.fetch", Kind: zif.ErrSizeMismatch,
			Message: fmt.Sprintf("got %d, wanted %d", resp.ContentLength, opts.size)}
	}
	return d.writeVerified(ctx, resp.Body, dst, opts)
}

// writeVerified streams r to a temp file beside dst, verifies size/checksum,
// and renames into place -- so a failed verification never leaves a partial
// file at dst (every failure leaves the target file absent on disk).
func (d *Download) writeVerified(ctx context.Context, r io.Reader, dst string, opts verifyOpts) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrInternal, Inner: err}
	}
	// A unique suffix keeps two callers racing on the same dst from
	// trampling each other's partial file; the rename at the end is atomic.
	tmp := dst + "." + uuid.NewString() + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrInternal, Inner: err}
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(tmp)
		}
	}()

	var h io.Writer = f
	var hasher io.Writer
	if !opts.checksum.IsZero() {
		hasher = opts.checksum.Hash()
		h = io.MultiWriter(f, hasher)
	}
	n, err := io.Copy(h, r)
	if err != nil {
		if ctx.Err() != nil {
			return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrCancelled, Inner: ctx.Err()}
		}
		return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrTransport, Inner: err}
	}
	if opts.size > 0 && n != opts.size {
		return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrSizeMismatch,
			Message: fmt.Sprintf("wrote %d bytes, wanted %d", n, opts.size)}
	}
	if hasher != nil {
		got := hasher.(interface{ Sum([]byte) []byte }).Sum(nil)
		want := opts.checksum.Checksum()
		if string(got) != string(want) {
			return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrChecksumMismatch}
		}
	}
	if err := f.Close(); err != nil {
		return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrInternal, Inner: err}
	}
	if err := os.Rename(tmp, dst); err != nil {
		return &zif.Error{Op: "Download.writeVerified", Kind: zif.ErrInternal, Inner: err}
	}
	return nil
}

// LocationAddURI appends uri to the location pool.
func (d *Download) LocationAddURI(uri string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uris = append(d.uris, uri)
}

// LocationAddArray appends every uri in uris to the location pool.
func (d *Download) LocationAddArray(uris []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uris = append(d.uris, uris...)
}

// LocationRemoveURI removes uri from the location pool, if present.
func (d *Download) LocationRemoveURI(uri string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, u := range d.uris {
		if u == uri {
			d.uris = append(d.uris[:i], d.uris[i+1:]...)
			return
		}
	}
}

// LocationClear empties the location pool.
func (d *Download) LocationClear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uris = nil
}

// LocationSize reports the current size of the location pool.
func (d *Download) LocationSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.uris)
}

// LocationSetPolicy sets the selection policy used by [Download.LocationFull].
func (d *Download) LocationSetPolicy(p Policy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.policy = p
}

// URILister is the narrow capability [Download.LocationAddMD] needs from a
// metalink/mirrorlist [metadata.Handle]: the list of URIs it resolves to.
type URILister interface {
	GetURIs(ctx context.Context) ([]string, error)
}

// LocationAddMD resolves md (a metalink or mirrorlist [metadata.Handle]) into
// URIs and adds them to the pool.
func (d *Download) LocationAddMD(ctx context.Context, md URILister) error {
	uris, err := md.GetURIs(ctx)
	if err != nil {
		return err
	}
	d.LocationAddArray(uris)
	return nil
}

// pickOrder returns the pool's current contents in the order LocationFull
// should try them, without mutating the pool.
func (d *Download) pickOrder() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := append([]string(nil), d.uris...)
	if d.policy == Random {
		for i := len(out) - 1; i > 0; i-- {
			jBig, _ := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
			j := int(jBig.Int64())
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// LocationFull tries each URI in the location pool (per [Policy]), joined
// with relativePath, until one fetch succeeds or the pool is exhausted. A
// URI whose fetch fails is removed from the pool. Terminates after at most
// len(pool) attempts.
func (d *Download) LocationFull(ctx context.Context, relativePath, targetPath string, size int64, contentType string, sum checksum.Digest, state *progress.Node) error {
	order := d.pickOrder()
	if len(order) == 0 {
		return &zif.Error{Op: "Download.LocationFull", Kind: zif.ErrNoLocations}
	}
	if state != nil {
		weights := make([]float64, len(order))
		for i := range weights {
			weights[i] = 1
		}
		state.SetSteps(weights...)
	}

	var lastErr error
	for _, base := range order {
		if err := ctx.Err(); err != nil {
			return &zif.Error{Op: "Download.LocationFull", Kind: zif.ErrCancelled, Inner: err}
		}
		uri := joinLocation(base, relativePath)
		err := d.FileFull(ctx, uri, targetPath, size, contentType, sum, nil)
		if state != nil {
			state.Done()
		}
		if err == nil {
			return nil
		}
		zlog.Debug(ctx).Err(err).Str("uri", uri).Msg("location attempt failed, removing from pool")
		d.LocationRemoveURI(base)
		lastErr = err
	}
	return &zif.Error{Op: "Download.LocationFull", Kind: zif.ErrFailedToDownload, Inner: lastErr}
}

func joinLocation(base, relative string) string {
	if strings.HasPrefix(base, "/") {
		return filepath.Join(base, relative)
	}
	b := strings.TrimSuffix(base, "/")
	return b + "/" + strings.TrimPrefix(relative, "/")
}
