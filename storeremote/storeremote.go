// Package storeremote implements [store.Store] over one repository:
// parsing its .repo section, fetching and validating its repomd.xml and the
// metadata artifacts it lists, and answering search/resolution queries by
// delegating to the loaded [metadata.Handle]s. This is the architectural
// centerpiece of the engine.
package storeremote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quay/zlog"
	"gopkg.in/ini.v1"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/checksum"
	"github.com/zifproj/zif/config"
	"github.com/zifproj/zif/download"
	"github.com/zifproj/zif/lock"
	"github.com/zifproj/zif/metadata"
	"github.com/zifproj/zif/progress"
	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/rpmver"
	"github.com/zifproj/zif/store"
	"github.com/zifproj/zif/storelocal"
)

var _ store.Store = (*Store)(nil)

// State is the metadata lifecycle state machine.
type State int32

// Recognized states, in load order.
const (
	Unloaded State = iota
	RepomdPresent
	HandlesBound
	Ready
)

// Store is one remote repository.
//
// A Store must not be copied after first use. Construct with [New].
type Store struct {
	id          string
	displayName string
	repoFile    string
	cacheDir    string

	enabled     atomic.Bool
	baseurls    []string
	mirrorlist  string
	metalink    string
	mediaID     string
	pubkey      string
	gpgcheck    bool
	metadataExp time.Duration
	retries     int

	cfg   *config.Configuration
	local *storelocal.Store
	locks *lock.Manager

	mu      sync.Mutex
	state   atomic.Int32
	handles map[metadata.Kind]*metadata.Handle
	dl      *download.Download
}

// Options configures [New]. Only ID, CacheDir, and the section-derived
// fields are required; everything else has sane defaults.
type Options struct {
	ID          string
	DisplayName string
	RepoFile    string
	CacheDir    string
	BaseURLs    []string
	Mirrorlist  string
	Metalink    string
	MediaID     string
	Pubkey      string
	GPGCheck    bool
	Enabled     bool
	MetadataExp time.Duration
	Retries     int
	// Throttle caps HTTP fetches at this many requests per second;
	// 0 means unthrottled (the "throttle" config key).
	Throttle int
	Network  bool
	Timeout  time.Duration
}

// New constructs a Store for one repository section. It does not fetch
// anything; metadata loading is explicit and lazy via [Store.LoadMetadata].
func New(opts Options, cfg *config.Configuration, local *storelocal.Store) *Store {
	// Compatibility quirk: if metalink is absent but mirrorlist looks like a
	// metalink URL, treat it as one. If both baseurl and metalink are set,
	// ignore metalink.
	metalink := opts.Metalink
	mirrorlist := opts.Mirrorlist
	if metalink == "" && strings.Contains(mirrorlist, "metalink?") {
		metalink, mirrorlist = mirrorlist, ""
	}
	if len(opts.BaseURLs) > 0 {
		metalink = ""
	}

	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.MetadataExp <= 0 {
		opts.MetadataExp = 6 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join("/var/cache/zif", opts.ID)
	} else {
		opts.CacheDir = filepath.Join(opts.CacheDir, opts.ID)
	}

	s := &Store{
		id: opts.ID, displayName: opts.DisplayName, repoFile: opts.RepoFile,
		baseurls: opts.BaseURLs, mirrorlist: mirrorlist, metalink: metalink,
		mediaID: opts.MediaID, pubkey: opts.Pubkey, gpgcheck: opts.GPGCheck,
		metadataExp: opts.MetadataExp, retries: opts.Retries,
		cfg: cfg, local: local,
		handles: make(map[metadata.Kind]*metadata.Handle),
		dl:      download.New(opts.Timeout, opts.Network),
	}
	s.enabled.Store(opts.Enabled)
	s.cacheDir = opts.CacheDir
	if opts.Throttle > 0 {
		s.dl.SetRateLimit(float64(opts.Throttle))
	}
	return s
}

// SetLocks installs the cross-process lock manager Refresh and Clean
// acquire metadata-write under. A Store without one skips cross-process
// locking (useful under test).
func (s *Store) SetLocks(m *lock.Manager) { s.locks = m }

// IsDevel reports whether this repository carries development artifacts,
// by its id's suffix (-debuginfo, -debug, -development, -source).
func (s *Store) IsDevel() bool {
	for _, suf := range []string{"-debuginfo", "-debug", "-development", "-source"} {
		if strings.HasSuffix(s.id, suf) {
			return true
		}
	}
	return false
}

// PersistEnabled flips the enabled flag and writes it back into this
// repository's section of its .repo file, under the repo lock, so the
// change survives the process.
func (s *Store) PersistEnabled(ctx context.Context, enabled bool) error {
	if s.repoFile == "" {
		return &zif.Error{Op: "storeremote.PersistEnabled", Kind: zif.ErrNoSupport,
			Message: "store was not constructed from a repo file"}
	}
	if s.locks != nil {
		_, release, err := s.locks.Lock(ctx, lock.KindRepo)
		if err != nil {
			return err
		}
		defer release()
	}
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, s.repoFile)
	if err != nil {
		return &zif.Error{Op: "storeremote.PersistEnabled", Kind: zif.ErrMalformed, Inner: err}
	}
	v := "0"
	if enabled {
		v = "1"
	}
	f.Section(s.id).Key("enabled").SetValue(v)
	if err := f.SaveTo(s.repoFile); err != nil {
		return &zif.Error{Op: "storeremote.PersistEnabled", Kind: zif.ErrPermission, Inner: err}
	}
	s.enabled.Store(enabled)
	return nil
}

func (s *Store) ID() string          { return s.id }
func (s *Store) DisplayName() string { return s.displayName }
func (s *Store) Enabled() bool       { return s.enabled.Load() }
func (s *Store) SetEnabled(v bool)   { s.enabled.Store(v) }
func (s *Store) Loaded() bool        { return State(s.state.Load()) == Ready }

// Load implements [store.Store]: the lightweight, non-fetching half of
// construction. By the time New returns, Load has nothing left to do beyond
// validating that an enabled repo names at least one metadata source.
func (s *Store) Load(ctx context.Context) error {
	if s.enabled.Load() && len(s.baseurls) == 0 && s.mirrorlist == "" && s.metalink == "" && s.mediaID == "" {
		return &zif.Error{Op: "storeremote.Load", Kind: zif.ErrMalformed,
			Message: fmt.Sprintf("repo %q is enabled but has no baseurl/mirrorlist/metalink/mediaid", s.id)}
	}
	return nil
}

// Clean implements [store.Store]: removes every Handle's on-disk files, any
// cached package payloads, and repomd.xml, and resets the state machine to
// Unloaded.
func (s *Store) Clean(ctx context.Context) error {
	if s.locks != nil {
		_, release, err := s.locks.Lock(ctx, lock.KindMetadata+lock.Kind("-"+s.id))
		if err != nil {
			return err
		}
		defer release()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.handles {
		h.Clean()
	}
	s.handles = make(map[metadata.Kind]*metadata.Handle)
	s.removePackages()
	os.Remove(filepath.Join(s.cacheDir, "repomd.xml"))
	s.state.Store(int32(Unloaded))
	return nil
}

// removePackages deletes every cached .rpm under the repo's packages
// directory. Non-rpm files are left alone.
func (s *Store) removePackages() {
	dir := filepath.Join(s.cacheDir, "packages")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".rpm") {
			continue
		}
		os.Remove(filepath.Join(dir, e.Name()))
	}
}

// LoadMetadata makes the repository queryable: fetching repomd.xml
// (directly, or via mirrorlist/metalink) and parsing it into Handles, with a
// bounded retry budget that evicts the cached repomd.xml and starts over when
// it is malformed. The handles' checksums are not verified here; [Store.Refresh]
// checks each handle.
func (s *Store) LoadMetadata(ctx context.Context, state *progress.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if State(s.state.Load()) == Ready {
		return nil
	}
	const planned = 3
	done := 0
	step := func() {
		if state != nil && done < planned {
			state.Done()
			done++
		}
	}
	if state != nil {
		state.SetSteps(1, 1, 1)
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &zif.Error{Op: "storeremote.LoadMetadata", Kind: zif.ErrCancelled, Inner: err}
		}
		if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
			return &zif.Error{Op: "storeremote.LoadMetadata", Kind: zif.ErrInternal, Inner: err}
		}
		if err := s.fetchRepomd(ctx); err != nil {
			lastErr = err
			continue
		}
		s.state.Store(int32(RepomdPresent))
		step()

		handles, err := s.bindHandles(ctx)
		if err != nil {
			// Malformed repomd consumes one retry slot: evict and go again.
			lastErr = err
			os.Remove(filepath.Join(s.cacheDir, "repomd.xml"))
			s.state.Store(int32(Unloaded))
			continue
		}
		s.handles = handles
		s.state.Store(int32(HandlesBound))
		step()
		s.state.Store(int32(Ready))
		step()
		metadataLoads.WithLabelValues(s.id, "ok").Inc()
		return nil
	}
	metadataLoads.WithLabelValues(s.id, "error").Inc()
	return &zif.Error{Op: "storeremote.LoadMetadata", Kind: zif.ErrRecoverable, Inner: lastErr}
}

func (s *Store) fetchRepomd(ctx context.Context) error {
	dst := filepath.Join(s.cacheDir, "repomd.xml")
	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	s.dl.LocationClear()
	switch {
	case len(s.baseurls) > 0:
		s.dl.LocationAddArray(s.baseurls)
	case s.mirrorlist != "":
		if err := s.seedFromList(ctx, s.mirrorlist, metadata.KindMirrorlist); err != nil {
			return err
		}
	case s.metalink != "":
		if err := s.seedFromList(ctx, s.metalink, metadata.KindMetalink); err != nil {
			return err
		}
	case s.mediaID != "":
		mounts := discoverMedia(s.mediaID)
		if len(mounts) == 0 {
			return &zif.Error{Op: "storeremote.fetchRepomd", Kind: zif.ErrNoLocations,
				Message: fmt.Sprintf("no mounted media matches id %q", s.mediaID)}
		}
		s.dl.LocationAddArray(mounts)
	default:
		return &zif.Error{Op: "storeremote.fetchRepomd", Kind: zif.ErrNoLocations}
	}
	return s.dl.LocationFull(ctx, "repodata/repomd.xml", dst, 0, "", checksum.Digest{}, nil)
}

// mediaMountRoots are the directories scanned for mounted installation
// media when a repository is configured with a mediaid.
var mediaMountRoots = []string{"/media", "/run/media", "/mnt"}

// discoverMedia returns every mount point whose .discinfo first line equals
// mediaID, making it a valid local base URI for this repository. A
// .discinfo with fewer than four lines (timestamp, description, arch, disc
// numbers) is not install media and never matches.
func discoverMedia(mediaID string) []string {
	var out []string
	for _, root := range mediaMountRoots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			mount := filepath.Join(root, e.Name())
			b, err := os.ReadFile(filepath.Join(mount, ".discinfo"))
			if err != nil {
				continue
			}
			lines := strings.Split(string(b), "\n")
			if len(lines) < 4 {
				continue
			}
			if strings.TrimSpace(lines[0]) == mediaID {
				out = append(out, mount)
			}
		}
	}
	return out
}

// seedFromList downloads "uri" (a mirrorlist or metalink document) into the
// cache directory, parses it into URIs, and seeds the download pool with
// them.
func (s *Store) seedFromList(ctx context.Context, uri string, kind metadata.Kind) error {
	name := "mirrorlist.txt"
	if kind == metadata.KindMetalink {
		name = "metalink.xml"
	}
	dst := filepath.Join(s.cacheDir, name)
	if err := s.dl.FileFull(ctx, uri, dst, 0, "", checksum.Digest{}, nil); err != nil {
		return err
	}
	h := &metadata.Handle{Kind: kind, ID: s.id, CacheDir: s.cacheDir, Filename: name}
	uris, err := h.GetURIs(ctx)
	if err != nil {
		return err
	}
	s.dl.LocationAddArray(uris)
	return nil
}

func (s *Store) bindHandles(ctx context.Context) (map[metadata.Kind]*metadata.Handle, error) {
	f, err := os.Open(filepath.Join(s.cacheDir, "repomd.xml"))
	if err != nil {
		return nil, &zif.Error{Op: "storeremote.bindHandles", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	rm, err := metadata.ParseRepomd(f)
	if err != nil {
		return nil, err
	}
	handles, extraBases, err := rm.Handles(s.id, s.cacheDir, s.metadataExp)
	if err != nil {
		return nil, err
	}
	if len(extraBases) > 0 {
		s.dl.LocationAddArray(extraBases)
	}
	return handles, nil
}

// Refresh implements [store.Store]: fetches a new repomd.xml, rebinds
// handles, then for each handle whose uncompressed checksum check fails (or
// unconditionally, if force), downloads+verifies+decompresses the
// compressed artifact. When a _db variant of a kind has been refreshed,
// its xml sibling is skipped; the sqlite form answers every query the xml
// form does.
func (s *Store) Refresh(ctx context.Context, force bool, state *progress.Node) error {
	if s.locks != nil {
		// Keyed by repo id so independent repos refresh in parallel.
		_, release, err := s.locks.Lock(ctx, lock.KindMetadata+lock.Kind("-"+s.id))
		if err != nil {
			return err
		}
		defer release()
	}
	s.state.Store(int32(Unloaded))
	if err := s.LoadMetadata(ctx, state); err != nil {
		return err
	}

	s.mu.Lock()
	handles := make([]*metadata.Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	refreshedSQL := make(map[string]bool)
	order := []metadata.Kind{
		metadata.KindPrimarySQL, metadata.KindPrimaryXML,
		metadata.KindFilelistsSQL, metadata.KindFilelistsXML,
		metadata.KindOtherSQL, metadata.KindOtherXML,
	}
	byKind := make(map[metadata.Kind]*metadata.Handle, len(handles))
	for _, h := range handles {
		byKind[h.Kind] = h
	}
	paired := make(map[metadata.Kind]bool, len(order))
	for _, k := range order {
		paired[k] = true
	}
	for _, k := range order {
		h, ok := byKind[k]
		if !ok {
			continue
		}
		base := strings.TrimSuffix(string(k), "_db")
		if strings.HasSuffix(string(k), "_db") {
			refreshedSQL[base] = false
		} else if refreshedSQL[base] {
			continue // _sql sibling already refreshed this kind.
		}
		if !force {
			if err := h.CheckUncompressed(ctx); err == nil {
				continue
			}
		}
		if err := s.refreshOne(ctx, h); err != nil {
			return err
		}
		if strings.HasSuffix(string(k), "_db") {
			refreshedSQL[base] = true
		}
	}
	// Non-primary/filelists/other kinds (comps, updateinfo, prestodelta,
	// pkgtags) have no _sql/_xml pairing and refresh unconditionally on
	// staleness.
	for _, h := range handles {
		if paired[h.Kind] {
			continue
		}
		if !force {
			if err := h.CheckUncompressed(ctx); err == nil {
				continue
			}
		}
		if err := s.refreshOne(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) refreshOne(ctx context.Context, h *metadata.Handle) error {
	dst := h.RawPath()
	if err := s.dl.LocationFull(ctx, h.Info.Location, dst, 0, "", h.Info.Checksum, nil); err != nil {
		return err
	}
	if err := h.Check(ctx); err != nil {
		return err
	}
	out, err := download.DecompressFor(dst)
	if err != nil {
		return err
	}
	if out != dst {
		os.Remove(dst)
	}
	return nil
}

// ensureLoaded is the common prelude search operations use.
func (s *Store) ensureLoaded(ctx context.Context) error {
	if !s.enabled.Load() {
		return &zif.Error{Op: "storeremote", Kind: zif.ErrNotEnabled, Message: s.id}
	}
	return s.LoadMetadata(ctx, nil)
}

func (s *Store) primary(ctx context.Context) (*metadata.Handle, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[metadata.KindPrimarySQL]; ok {
		return h, nil
	}
	if h, ok := s.handles[metadata.KindPrimaryXML]; ok {
		return h, nil
	}
	return nil, &zif.Error{Op: "storeremote.primary", Kind: zif.ErrNoData}
}

func (s *Store) filelists(ctx context.Context) (*metadata.Handle, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[metadata.KindFilelistsSQL]; ok {
		return h, nil
	}
	if h, ok := s.handles[metadata.KindFilelistsXML]; ok {
		return h, nil
	}
	return nil, &zif.Error{Op: "storeremote.filelists", Kind: zif.ErrNoData}
}

// SearchName implements [store.Store].
func (s *Store) SearchName(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.SearchName(ctx, patterns)
}

// SearchDetails implements [store.Store].
func (s *Store) SearchDetails(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.SearchDetails(ctx, patterns)
}

// SearchGroup implements [store.Store].
func (s *Store) SearchGroup(ctx context.Context, group string) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.SearchGroup(ctx, group)
}

// SearchFile implements [store.Store].
func (s *Store) SearchFile(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	h, err := s.filelists(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := h.SearchFile(ctx, patterns)
	if err != nil {
		return nil, err
	}
	ph, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*rpmpkg.Package, 0, len(ids))
	for _, id := range ids {
		p, err := ph.SearchPkgID(ctx, id)
		if err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchCategory implements [store.Store]: translate the
// category id to package names via comps, then resolve each name first
// against StoreLocal (preferring the installed version), and only if
// absent against this repository. Missing packages are skipped, not
// errored.
func (s *Store) SearchCategory(ctx context.Context, catID string) ([]*rpmpkg.Package, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	comps, ok := s.handles[metadata.KindComps]
	s.mu.Unlock()
	if !ok {
		return nil, &zif.Error{Op: "storeremote.SearchCategory", Kind: zif.ErrNoData}
	}
	names, err := comps.GetPackagesForGroup(ctx, catID)
	if err != nil {
		return nil, err
	}
	ph, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, name := range names {
		if s.local != nil {
			if installed, err := s.local.Resolve(ctx, []string{name}); err == nil && len(installed) > 0 {
				out = append(out, installed[0])
				continue
			}
		}
		if pkgs, err := ph.ResolveFull(ctx, []string{name}, metadata.UseName); err == nil && len(pkgs) > 0 {
			out = append(out, pkgs[0])
		}
	}
	return out, nil
}

// Resolve implements [store.Store].
func (s *Store) Resolve(ctx context.Context, names []string) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.ResolveFull(ctx, names, metadata.UseName)
}

// FindPackage implements [store.Store].
func (s *Store) FindPackage(ctx context.Context, pkgid string) (*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.SearchPkgID(ctx, pkgid)
}

// GetPackages implements [store.Store].
func (s *Store) GetPackages(ctx context.Context) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.GetPackages(ctx)
}

// GetCategories implements [store.Store].
func (s *Store) GetCategories(ctx context.Context) ([]metadata.Category, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	comps, ok := s.handles[metadata.KindComps]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return comps.GetCategories(ctx)
}

// WhatProvides implements [store.Store], additionally consulting filelists
// for file-provide Depends (name starting with "/", flag Any) and merging
// the two result sets.
func (s *Store) WhatProvides(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	out, err := h.WhatProvides(ctx, wants)
	if err != nil {
		return nil, err
	}
	fl, err := s.filelists(ctx)
	if err != nil {
		return out, nil // Filelists absence doesn't invalidate name-provides results.
	}
	ids, err := fl.WhatProvidesFile(ctx, wants)
	if err != nil || len(ids) == 0 {
		return out, nil
	}
	seen := make(map[string]bool, len(out))
	for _, p := range out {
		seen[p.PkgID] = true
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if p, err := h.SearchPkgID(ctx, id); err == nil {
			out = append(out, p)
			seen[id] = true
		}
	}
	return out, nil
}

// GetFiles returns the file list p owns, per this repository's filelists
// metadata. Packages parsed from primary.xml already carry their files;
// the sqlite primary schema doesn't, so filelists is the authority here.
func (s *Store) GetFiles(ctx context.Context, p *rpmpkg.Package) ([]string, error) {
	if len(p.Files) > 0 {
		return p.Files, nil
	}
	fl, err := s.filelists(ctx)
	if err != nil {
		return nil, err
	}
	return fl.GetFiles(ctx, p)
}

// GetRequires re-queries p's Requires from primary metadata.
func (s *Store) GetRequires(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.GetRequires(ctx, p)
}

// GetProvides re-queries p's Provides from primary metadata.
func (s *Store) GetProvides(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.GetProvides(ctx, p)
}

// GetObsoletes re-queries p's Obsoletes from primary metadata.
func (s *Store) GetObsoletes(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.GetObsoletes(ctx, p)
}

// GetConflicts re-queries p's Conflicts from primary metadata.
func (s *Store) GetConflicts(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.GetConflicts(ctx, p)
}

// FindDelta returns the delta RPM that rebuilds newID's package from oldID's
// installed one, when this repository publishes prestodelta metadata.
func (s *Store) FindDelta(ctx context.Context, newID, oldID string) (*metadata.Delta, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	pd, ok := s.handles[metadata.KindPrestodelta]
	s.mu.Unlock()
	if !ok {
		return nil, &zif.Error{Op: "storeremote.FindDelta", Kind: zif.ErrNoSupport,
			Message: "repo publishes no prestodelta metadata"}
	}
	return pd.SearchForPackage(ctx, newID, oldID)
}

// WhatRequires implements [store.Store].
func (s *Store) WhatRequires(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.WhatRequires(ctx, wants)
}

// WhatObsoletes implements [store.Store].
func (s *Store) WhatObsoletes(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.WhatObsoletes(ctx, wants)
}

// WhatConflicts implements [store.Store].
func (s *Store) WhatConflicts(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	h, err := s.primary(ctx)
	if err != nil {
		return nil, err
	}
	return h.WhatConflicts(ctx, wants)
}

// DownloadFull implements [rpmpkg.Downloader]: fetches relativePath (a
// package's location_href) into targetDir, retrying the whole load/fetch
// sequence on failure up to the retry budget. An empty targetDir stores
// the payload under the repo cache's packages directory.
func (s *Store) DownloadFull(ctx context.Context, relativePath, targetDir string) (string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}
	if targetDir == "" {
		targetDir = filepath.Join(s.cacheDir, "packages")
	}
	dst := filepath.Join(targetDir, filepath.Base(relativePath))
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		err := s.dl.LocationFull(ctx, relativePath, dst, 0, "", checksum.Digest{}, nil)
		if err == nil {
			return dst, nil
		}
		lastErr = err
		zlog.Debug(ctx).Err(err).Str("repo", s.id).Msg("download_full attempt failed, reloading metadata")
		os.Remove(filepath.Join(s.cacheDir, "repomd.xml"))
		s.state.Store(int32(Unloaded))
		if err := s.LoadMetadata(ctx, nil); err != nil {
			lastErr = err
			continue
		}
	}
	return "", &zif.Error{Op: "storeremote.DownloadFull", Kind: zif.ErrFailedToDownload, Inner: lastErr}
}

// GetUpdateDetail loads metadata and queries updateinfo for the advisories
// referencing packageID. When this repo publishes no update notices, a
// placeholder Update is fabricated so the changelog fallback below still
// runs (repos like fedora publish changelogs but not advisories). It then
// finds the package in primary, fetches its changelog from other-db,
// resolves the newest installed same-name-same-arch package, and attaches
// changelog entries at or after the installed EVR.
func (s *Store) GetUpdateDetail(ctx context.Context, packageID string) ([]metadata.Update, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ui, hasUI := s.handles[metadata.KindUpdateinfo]
	other, hasOther := s.handles[metadata.KindOtherSQL]
	s.mu.Unlock()

	var updates []metadata.Update
	if hasUI {
		var err error
		updates, err = ui.GetDetailForPackage(ctx, packageID)
		if err != nil {
			return nil, err
		}
	}
	if len(updates) == 0 {
		// No update notices published: fabricate a placeholder so the
		// changelog fallback still fires.
		updates = []metadata.Update{{ID: packageID, Title: "unknown update", Source: s.id}}
	}

	if !hasOther {
		return updates, nil
	}
	ph, err := s.primary(ctx)
	if err != nil {
		return updates, nil
	}
	pkg, err := ph.SearchPkgID(ctx, packageID)
	if err != nil {
		return updates, nil
	}
	changelog, err := other.GetChangelog(ctx, packageID)
	if err != nil {
		return updates, nil
	}

	// Newest installed same-name-same-arch package, for trimming the
	// changelog to entries at or after what's on the system.
	var installed *rpmpkg.Package
	if s.local != nil {
		if got, err := s.local.Resolve(ctx, []string{pkg.Name()}); err == nil {
			for _, p := range got {
				if p.Arch() != pkg.Arch() {
					continue
				}
				if installed == nil || rpmver.Compare(&p.Version, &installed.Version) > 0 {
					installed = p
				}
			}
		}
	}
	var installedEVR rpmver.Version
	if installed != nil {
		installedEVR = installed.Version
		installedEVR.Name = nil
		installedEVR.Architecture = nil
	}
	for i := range updates {
		for _, c := range changelog {
			if installed != nil {
				if evr, ok := changesetEVR(c); ok && rpmver.Compare(&evr, &installedEVR) < 0 {
					continue
				}
			}
			updates[i].Changelog = append(updates[i].Changelog, c)
		}
	}
	return updates, nil
}

// changesetEVR extracts the "version-release" an rpm changelog author line
// conventionally ends with ("Jane Doe <jd@example.com> - 1.2-3"), so the
// entry can be ordered against an installed EVR. Entries without the
// convention are not comparable and are kept by the caller.
func changesetEVR(c metadata.Changeset) (rpmver.Version, bool) {
	i := strings.LastIndex(c.Author, " - ")
	if i == -1 {
		return rpmver.Version{}, false
	}
	v, err := rpmver.Parse(strings.TrimSpace(c.Author[i+3:]))
	if err != nil {
		return rpmver.Version{}, false
	}
	// Compare EVR only; the installed Version carries name/arch which would
	// dominate the comparison.
	v.Name = nil
	v.Architecture = nil
	return v, true
}
