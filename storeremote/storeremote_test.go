package storeremote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/ini.v1"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/metadata"
)

func TestNewMirrorlistMetalinkQuirk(t *testing.T) {
	// A mirrorlist URL that is really a metalink request is promoted to
	// metalink when no explicit metalink is configured.
	s := New(Options{
		ID:         "fedora",
		Mirrorlist: "https://mirrors.example/metalink?repo=fedora-16&arch=i386",
		Enabled:    true,
	}, nil, nil)
	if s.mirrorlist != "" {
		t.Errorf("mirrorlist should have been cleared, got %q", s.mirrorlist)
	}
	if s.metalink == "" {
		t.Error("metalink should have been populated from the mirrorlist value")
	}
}

func TestNewBaseurlWinsOverMetalink(t *testing.T) {
	s := New(Options{
		ID:       "fedora",
		BaseURLs: []string{"http://example/pub/fedora/16/i386/os/"},
		Metalink: "https://mirrors.example/metalink?repo=fedora-16",
		Enabled:  true,
	}, nil, nil)
	if s.metalink != "" {
		t.Errorf("metalink should be ignored when baseurl is set, got %q", s.metalink)
	}
}

func TestLoadRejectsSourcelessEnabledRepo(t *testing.T) {
	s := New(Options{ID: "empty", Enabled: true}, nil, nil)
	err := s.Load(context.Background())
	if !errors.Is(err, zif.ErrMalformed) {
		t.Errorf("expected ErrMalformed for a sourceless enabled repo, got %v", err)
	}

	disabled := New(Options{ID: "empty", Enabled: false}, nil, nil)
	if err := disabled.Load(context.Background()); err != nil {
		t.Errorf("a disabled sourceless repo is fine, got %v", err)
	}
}

func TestSearchFailsWhenDisabled(t *testing.T) {
	s := New(Options{ID: "off", BaseURLs: []string{"http://example/"}, Enabled: false}, nil, nil)
	_, err := s.Resolve(context.Background(), []string{"bash"})
	if !errors.Is(err, zif.ErrNotEnabled) {
		t.Errorf("expected ErrNotEnabled, got %v", err)
	}
}

func TestIsDevel(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"fedora", false},
		{"fedora-debuginfo", true},
		{"fedora-debug", true},
		{"fedora-development", true},
		{"fedora-source", true},
	}
	for _, tc := range tests {
		s := New(Options{ID: tc.id, BaseURLs: []string{"http://example/"}}, nil, nil)
		if got := s.IsDevel(); got != tc.want {
			t.Errorf("IsDevel(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestPersistEnabled(t *testing.T) {
	dir := t.TempDir()
	repoFile := filepath.Join(dir, "fedora.repo")
	if err := os.WriteFile(repoFile,
		[]byte("[fedora]\nname=Fedora\nenabled=1\nbaseurl=http://example/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(Options{
		ID: "fedora", RepoFile: repoFile,
		BaseURLs: []string{"http://example/"}, Enabled: true,
	}, nil, nil)
	if err := s.PersistEnabled(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if s.Enabled() {
		t.Error("runtime flag should have flipped")
	}
	f, err := ini.Load(repoFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Section("fedora").Key("enabled").String(); got != "0" {
		t.Errorf("persisted enabled = %q, want %q", got, "0")
	}
	// Everything else survives the rewrite.
	if got := f.Section("fedora").Key("baseurl").String(); got != "http://example/" {
		t.Errorf("baseurl was clobbered: %q", got)
	}
}

func TestChangesetEVR(t *testing.T) {
	tests := []struct {
		author string
		evr    string
		ok     bool
	}{
		{"Jane Doe <jd@example.com> - 1.2-3", "1.2-3", true},
		{"Jane Doe <jd@example.com> - 2:4.0-1", "2:4.0-1", true},
		{"Jane Doe <jd@example.com>", "", false},
		{"Jane Doe <jd@example.com> - not!a!version", "", false},
	}
	for _, tc := range tests {
		v, ok := changesetEVR(metadata.Changeset{Author: tc.author})
		if ok != tc.ok {
			t.Errorf("changesetEVR(%q) ok = %v, want %v", tc.author, ok, tc.ok)
			continue
		}
		if ok && v.EVR() != tc.evr {
			t.Errorf("changesetEVR(%q) = %q, want %q", tc.author, v.EVR(), tc.evr)
		}
	}
}
