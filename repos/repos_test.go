package repos

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zifproj/zif/config"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T, reposDir string) *config.Configuration {
	t.Helper()
	cfg := config.New()
	for k, v := range map[string]string{
		"reposdir":   reposDir,
		"cachedir":   t.TempDir(),
		"releasever": "16",
		"basearch":   "i386",
		"network":    "false",
	} {
		if err := cfg.SetString(k, v); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func TestLoadSortsStoresByID(t *testing.T) {
	dir := t.TempDir()
	// File names sort opposite to their section ids, so a directory-order
	// enumeration would come out backwards.
	writeFile(t, filepath.Join(dir, "a.repo"), "[zeta]\nname=Zeta\nbaseurl=http://example/zeta/\n")
	writeFile(t, filepath.Join(dir, "b.repo"), "[alpha]\nname=Alpha\nbaseurl=http://example/alpha/\n")

	r := New(testConfig(t, dir), nil, nil, nil)
	stores, err := r.GetStores(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range stores {
		ids = append(ids, s.ID())
	}
	if diff := cmp.Diff([]string{"alpha", "zeta"}, ids); diff != "" {
		t.Errorf("unexpected store order (-want +got):\n%s", diff)
	}
}

func TestGetStoresEnabledFiltersDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "f.repo"),
		"[on]\nname=On\nbaseurl=http://example/on/\n\n"+
			"[off]\nname=Off\nenabled=no\nbaseurl=http://example/off/\n")

	r := New(testConfig(t, dir), nil, nil, nil)
	enabled, err := r.GetStoresEnabled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 1 || enabled[0].ID() != "on" {
		t.Errorf("expected only the enabled store, got %d stores", len(enabled))
	}
}

func TestRepoNameSubstitution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "fedora.repo"),
		"[fedora]\nname=Fedora $releasever - $basearch\nbaseurl=http://example/pub/fedora/$releasever/$basearch/os/\n")

	r := New(testConfig(t, dir), nil, nil, nil)
	s, err := r.GetStore(context.Background(), "fedora")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := s.DisplayName(), "Fedora 16 - i386"; got != want {
		t.Errorf("DisplayName() = %q, want %q", got, want)
	}
}

func TestGetStoreMissing(t *testing.T) {
	dir := t.TempDir()
	r := New(testConfig(t, dir), nil, nil, nil)
	if _, err := r.GetStore(context.Background(), "nope"); err == nil {
		t.Error("expected an error for an unknown store id")
	}
}

func TestParseRepoFileRequiresName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.repo")
	writeFile(t, path, "[broken]\nbaseurl=http://example/\n")
	if _, err := ParseRepoFile(path, testConfig(t, dir)); err == nil {
		t.Error("expected an error for a section with no name key")
	}
}

func TestParseRepoFileSplitsBaseurl(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multi.repo")
	writeFile(t, path, "[multi]\nname=Multi\nbaseurl=http://a.example/;http://b.example/\n")
	sections, err := ParseRepoFile(path, testConfig(t, dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	want := []string{"http://a.example/", "http://b.example/"}
	if diff := cmp.Diff(want, sections[0].BaseURLs); diff != "" {
		t.Errorf("unexpected baseurls (-want +got):\n%s", diff)
	}
}
