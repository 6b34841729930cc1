package metadata

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const compsFixture = `<?xml version="1.0" encoding="UTF-8"?>
<comps>
  <group>
    <id>gnome-desktop</id>
    <name>GNOME Desktop Environment</name>
    <description>GNOME is a highly intuitive desktop environment.</description>
    <packagelist>
      <packagereq type="mandatory">gnome-session</packagereq>
      <packagereq type="default">gnome-power-manager</packagereq>
    </packagelist>
  </group>
  <category>
    <id>desktops</id>
    <name>Desktops</name>
    <description>Desktop environments</description>
    <grouplist>
      <groupid>gnome-desktop</groupid>
    </grouplist>
  </category>
</comps>`

func compsHandle(t *testing.T) *Handle {
	t.Helper()
	return writeHandleFile(t, KindComps, "comps.xml", compsFixture)
}

func TestCompsGetCategories(t *testing.T) {
	h := compsHandle(t)
	cats, err := h.GetCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0].CatID != "desktops" || cats[0].Name != "Desktops" {
		t.Errorf("unexpected categories %v", cats)
	}
}

func TestCompsGetGroupsForCategory(t *testing.T) {
	h := compsHandle(t)
	groups, err := h.GetGroupsForCategory(context.Background(), "desktops")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.ParentID != "desktops" || g.CatID != "gnome-desktop" {
		t.Errorf("unexpected group %+v", g)
	}

	if _, err := h.GetGroupsForCategory(context.Background(), "nope"); err == nil {
		t.Error("expected an error for an unknown category")
	}
}

func TestCompsGetPackagesForGroup(t *testing.T) {
	h := compsHandle(t)
	pkgs, err := h.GetPackagesForGroup(context.Background(), "gnome-desktop")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"gnome-session", "gnome-power-manager"}
	if diff := cmp.Diff(want, pkgs); diff != "" {
		t.Errorf("unexpected package list (-want +got):\n%s", diff)
	}
}
