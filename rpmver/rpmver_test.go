package rpmver

import (
	"bytes"
	"encoding"
	"fmt"
	"testing"
)

var (
	_ fmt.Stringer             = (*Version)(nil)
	_ encoding.TextMarshaler   = (*Version)(nil)
	_ encoding.TextUnmarshaler = (*Version)(nil)
)

func strp(s string) *string { return &s }

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Version
	}{
		{"1.0-1", Version{Epoch: "0", Version: "1.0", Release: "1"}},
		{"1:1.0-1", Version{Epoch: "1", Version: "1.0", Release: "1"}},
		{"foo-1.0-1", Version{Name: strp("foo"), Epoch: "0", Version: "1.0", Release: "1"}},
		{"foo-1.0-1.x86_64", Version{Name: strp("foo"), Epoch: "0", Version: "1.0", Release: "1", Architecture: strp("x86_64")}},
		{"foo-bar-1.0-1.noarch", Version{Name: strp("foo-bar"), Epoch: "0", Version: "1.0", Release: "1", Architecture: strp("noarch")}},
		{"fonts-filesystem-1:2.0.5-12.fc39.noarch", Version{Name: strp("fonts-filesystem"), Epoch: "1", Version: "2.0.5", Release: "12.fc39", Architecture: strp("noarch")}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("%s: %v", tc.in, err)
			}
			if got.Epoch != tc.want.Epoch || got.Version != tc.want.Version || got.Release != tc.want.Release {
				t.Errorf("got: %+v, want: %+v", got, tc.want)
			}
			if (got.Name == nil) != (tc.want.Name == nil) || (got.Name != nil && *got.Name != *tc.want.Name) {
				t.Errorf("name mismatch: got: %v, want: %v", got.Name, tc.want.Name)
			}
			if (got.Architecture == nil) != (tc.want.Architecture == nil) || (got.Architecture != nil && *got.Architecture != *tc.want.Architecture) {
				t.Errorf("arch mismatch: got: %v, want: %v", got.Architecture, tc.want.Architecture)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("noseparator"); err == nil {
		t.Error("expected error for string missing separators")
	}
}

func TestRpmvercmp(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1.0a", "1.0", 1},
		{"1.0", "1.0a", -1},
		{"1.0a1", "1.0a2", -1},
		{"5.5p1", "5.5p2", -1},
		{"5.5p10", "5.5p1", 1},
		{"10xyz", "10.1xyz", -1},
		{"xyz10", "xyz10.1", -1},
		{"xyz.4", "xyz.4", 0},
		{"xyz.4", "8", -1},
		{"8", "xyz.4", 1},
		{"1~rc1", "1", -1},
		{"1", "1~rc1", 1},
		{"1~rc1", "1~rc1", 0},
		{"1~rc1^git123", "1~rc1^git456", -1},
	}
	for _, tc := range cases {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			if got := rpmvercmp(tc.a, tc.b); got != tc.want {
				t.Errorf("rpmvercmp(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
			if got := rpmvercmp(tc.b, tc.a); got != -tc.want {
				t.Errorf("rpmvercmp(%q, %q) = %d, want %d (anti-symmetry)", tc.b, tc.a, got, -tc.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	av, err := Parse("foo-1.0-1")
	if err != nil {
		t.Fatal(err)
	}
	bv, err := Parse("foo-2.0-1")
	if err != nil {
		t.Fatal(err)
	}
	if Compare(&av, &bv) >= 0 {
		t.Errorf("expected foo-1.0-1 < foo-2.0-1")
	}

	cv, err := Parse("bar-1.0-1")
	if err != nil {
		t.Fatal(err)
	}
	// Different names are incomparable by name ordering; Compare still
	// returns a deterministic (non-panicking) ordering, but callers
	// wanting "comparable iff names equal" must check Name themselves.
	if got := Compare(&av, &cv); got == 0 {
		t.Errorf("expected foo and bar versions to differ")
	}
}

func TestHelpers(t *testing.T) {
	const in = `fonts-filesystem-1:2.0.5-12.fc39.noarch`
	want, err := Parse(in)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("UnmarshalText", func(t *testing.T) {
		var got Version
		if err := got.UnmarshalText([]byte(in)); err != nil {
			t.Error(err)
		}
		if Compare(&got, &want) != 0 {
			t.Errorf("bad UnmarshalText: got: %#v, want: %#v", got, want)
		}
	})
	t.Run("MarshalText", func(t *testing.T) {
		v, err := Parse(in)
		if err != nil {
			t.Fatal(err)
		}
		got, err := v.MarshalText()
		if err != nil {
			t.Error(err)
		}
		if !bytes.Equal(got, []byte(in)) {
			t.Errorf("bad MarshalText: got: %#q, want: %#q", got, in)
		}
	})
	t.Run("IsZero", func(t *testing.T) {
		var z Version
		if !z.IsZero() {
			t.Error("expected zero Version to report IsZero() == true")
		}
		if want.IsZero() {
			t.Error("expected parsed Version to report IsZero() == false")
		}
	})
	t.Run("EVR", func(t *testing.T) {
		if got := want.EVR(); got != "1:2.0.5-12.fc39" {
			t.Errorf("bad EVR: got: %q", got)
		}
	})
	t.Run("Identity", func(t *testing.T) {
		if got, want := want.Identity("installed"), "fonts-filesystem;1:2.0.5-12.fc39;noarch;installed"; got != want {
			t.Errorf("bad Identity: got: %q, want: %q", got, want)
		}
	})
}

func TestEpochBoundary(t *testing.T) {
	// Boundary behavior: no epoch
	// produces "name;ver-rel;arch;src", epoch 2 produces
	// "name;2:ver-rel;arch;src".
	noepoch, err := Parse("name-1.0-1.x86_64")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := noepoch.Identity("src"), "name;1.0-1;x86_64;src"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	withepoch, err := Parse("name-2:1.0-1.x86_64")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := withepoch.Identity("src"), "name;2:1.0-1;x86_64;src"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}
