package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMain(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "zif.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSetFilenameValidatesSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeMain(t, dir, "[main]\ncachedir=/tmp/x\n")

	c := New()
	if err := c.SetFilename(path); err == nil {
		t.Fatal("expected error for missing config_schema_version")
	}
}

func TestTieredLookup(t *testing.T) {
	dir := t.TempDir()
	path := writeMain(t, dir, "[main]\nconfig_schema_version=1\ncachedir=/from/main\nbasearch=i386\n")

	c := New()
	if err := c.SetFilename(path); err != nil {
		t.Fatal(err)
	}

	if got, err := c.GetString("cachedir"); err != nil || got != "/from/main" {
		t.Fatalf("got %q, %v", got, err)
	}

	if err := c.SetString("cachedir", "/from/runtime"); err != nil {
		t.Fatal(err)
	}
	if got, err := c.GetString("cachedir"); err != nil || got != "/from/runtime" {
		t.Fatalf("got %q, %v", got, err)
	}

	c.Unset("cachedir")
	if got, err := c.GetString("cachedir"); err != nil || got != "/from/main" {
		t.Fatalf("after unset: got %q, %v", got, err)
	}

	if _, err := c.GetString("no-such-key"); err == nil {
		t.Fatal("expected missing-key error")
	}

	if got, err := c.GetString("pidfile"); err != nil || got != "/var/run/zif" {
		t.Fatalf("expected default to apply: got %q, %v", got, err)
	}
}

func TestOverrideConfigFromMainFile(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "override.conf")
	if err := os.WriteFile(override, []byte("[main]\ncachedir=/from/override\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The main file names its own override via $srcdir expansion.
	path := writeMain(t, dir,
		"[main]\nconfig_schema_version=1\ncachedir=/from/main\nsrcdir="+dir+"\noverride_config=$srcdir/override.conf\n")

	c := New()
	if err := c.SetFilename(path); err != nil {
		t.Fatal(err)
	}
	if got, err := c.GetString("cachedir"); err != nil || got != "/from/override" {
		t.Fatalf("override file should win over main: got %q, %v", got, err)
	}
}

func TestOverrideConfigAbsentFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeMain(t, dir,
		"[main]\nconfig_schema_version=1\ncachedir=/from/main\noverride_config="+dir+"/missing.conf\n")

	c := New()
	if err := c.SetFilename(path); err != nil {
		t.Fatalf("a named-but-absent override file is not an error: %v", err)
	}
	if got, _ := c.GetString("cachedir"); got != "/from/main" {
		t.Errorf("got %q, want %q", got, "/from/main")
	}
}

func TestSetStringIdempotence(t *testing.T) {
	c := New()
	if err := c.SetString("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetString("k", "v"); err != nil {
		t.Fatalf("re-setting the same value should be a no-op: %v", err)
	}
	if err := c.SetString("k", "v2"); err == nil {
		t.Fatal("expected error setting a different value over an existing one")
	}
}

func TestExpandSubstitutions(t *testing.T) {
	c := New()
	if err := c.SetString("releasever", "15"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetString("basearch", "i386"); err != nil {
		t.Fatal(err)
	}
	got := c.ExpandSubstitutions("$releasever-$basearch")
	if want := "15-i386"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBooleanFromText(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"YES", true},
		{"yes", true},
		{"true", true},
		{"True", true},
		{"1", true},
		{"no", false},
		{"", false},
		{"garbage", false},
	}
	for _, tc := range cases {
		if got := BooleanFromText(tc.in); got != tc.want {
			t.Errorf("BooleanFromText(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestGetBoolNeverFailsOnBadValue(t *testing.T) {
	c := New()
	if err := c.SetString("flag", "garbage"); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetBool("flag")
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("expected unparseable boolean to coerce to false")
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"5", 5 * time.Second},
		{"5s", 5 * time.Second},
		{"3m", 3 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestGetStrv(t *testing.T) {
	c := New()
	if err := c.SetString("list", "a, b,c"); err != nil {
		t.Fatal(err)
	}
	got, err := c.GetStrv("list")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGetEnum(t *testing.T) {
	c := New()
	if err := c.SetString("policy", "ordered"); err != nil {
		t.Fatal(err)
	}
	type policy int
	const (
		random policy = iota
		ordered
	)
	got, err := GetEnum(c, "policy", map[string]policy{"random": random, "ordered": ordered})
	if err != nil {
		t.Fatal(err)
	}
	if got != ordered {
		t.Errorf("got %v, want ordered", got)
	}

	if _, err := GetEnum(c, "policy-unset", map[string]policy{"random": random}); err == nil {
		t.Fatal("expected missing-key error")
	}
}

func TestBasearchArray(t *testing.T) {
	c := New()
	if err := c.SetString("basearch", "i386"); err != nil {
		t.Fatal(err)
	}
	got := c.BasearchArray()
	want := []string{"i386", "i486", "i586", "i686", "noarch"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReloadReparses(t *testing.T) {
	dir := t.TempDir()
	path := writeMain(t, dir, "[main]\nconfig_schema_version=1\ncachedir=/v1\n")

	c := New()
	if err := c.SetFilename(path); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.GetString("cachedir"); got != "/v1" {
		t.Fatalf("got %q", got)
	}

	writeMain(t, dir, "[main]\nconfig_schema_version=1\ncachedir=/v2\n")
	c.Reload()
	if got, _ := c.GetString("cachedir"); got != "/v2" {
		t.Fatalf("after reload: got %q", got)
	}
}
