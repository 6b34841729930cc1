package rpmpkg

import (
	"testing"

	"github.com/zifproj/zif/rpmver"
)

func pkg(t *testing.T, nevra, source string) *Package {
	t.Helper()
	v, err := rpmver.Parse(nevra)
	if err != nil {
		t.Fatal(err)
	}
	return &Package{Version: v, Source: source, Installed: source == "installed"}
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		nevra, source, want string
	}{
		{"gnome-power-manager-3.2.0-1.fc16.i386", "fedora", "gnome-power-manager;3.2.0-1.fc16;i386;fedora"},
		{"kernel-2:4.0-1.x86_64", "installed", "kernel;2:4.0-1;x86_64;installed"},
	}
	for _, tc := range tests {
		if got := pkg(t, tc.nevra, tc.source).Identity(); got != tc.want {
			t.Errorf("Identity(%q) = %q, want %q", tc.nevra, got, tc.want)
		}
	}
}

func TestCompare(t *testing.T) {
	old := pkg(t, "foo-1.0-1.i386", "installed")
	newer := pkg(t, "foo-1.1-1.i386", "fedora")
	other := pkg(t, "bar-9.9-9.i386", "fedora")

	if cmp, ok := Compare(newer, old); !ok || cmp <= 0 {
		t.Errorf("Compare(newer, old) = %d, %v; want >0, true", cmp, ok)
	}
	if cmp, ok := Compare(old, newer); !ok || cmp >= 0 {
		t.Errorf("Compare(old, newer) = %d, %v; want <0, true", cmp, ok)
	}
	if _, ok := Compare(old, other); ok {
		t.Error("packages with different names must be incomparable")
	}
}

func TestIsDevel(t *testing.T) {
	tests := []struct {
		nevra string
		want  bool
	}{
		{"glibc-devel-2.14-1.i386", true},
		{"kernel-debuginfo-3.1-1.i386", true},
		{"zlib-static-1.2-1.i386", true},
		{"gtk3-libs-3.2-1.i386", true},
		{"bash-5.2-1.i386", false},
	}
	for _, tc := range tests {
		if got := pkg(t, tc.nevra, "x").IsDevel(); got != tc.want {
			t.Errorf("IsDevel(%q) = %v, want %v", tc.nevra, got, tc.want)
		}
	}
}

func TestIsGUI(t *testing.T) {
	p := pkg(t, "gnome-terminal-3.2-1.i386", "x")
	p.Requires = []Depend{{Name: "libgtk-3.so.0"}}
	if !p.IsGUI() {
		t.Error("a gtk-requiring package is a GUI package")
	}
	q := pkg(t, "coreutils-8.12-1.i386", "x")
	q.Requires = []Depend{{Name: "libc.so.6"}}
	if q.IsGUI() {
		t.Error("coreutils is not a GUI package")
	}
}

func TestIsFree(t *testing.T) {
	free := map[string]struct{}{
		"GPLv2": {}, "GPLv3": {}, "MIT": {}, "BSD": {},
	}
	tests := []struct {
		license string
		want    bool
	}{
		{"GPLv2+", true},                      // trailing + stripped
		{"MIT", true},
		{"Proprietary", false},
		{"GPLv2+ and BSD", true},              // every AND group free
		{"GPLv2+ and Proprietary", false},     // one group not free
		{"Proprietary or MIT", true},          // one OR clause free suffices
		{"GPLv2 and (nothing)", false},
		{"", false},
	}
	for _, tc := range tests {
		p := &Package{License: tc.license}
		if got := p.IsFree(free); got != tc.want {
			t.Errorf("IsFree(%q) = %v, want %v", tc.license, got, tc.want)
		}
	}
}

func TestDependString(t *testing.T) {
	d := Depend{Name: "foo", Flag: GreaterEqual, EVR: rpmver.Version{Epoch: "0", Version: "1.0", Release: "1"}}
	if got, want := d.String(), "foo >= 1.0-1"; got != want {
		t.Errorf("Depend.String() = %q, want %q", got, want)
	}
	bare := Depend{Name: "bar"}
	if got := bare.String(); got != "bar" {
		t.Errorf("unversioned Depend.String() = %q, want %q", got, "bar")
	}
}
