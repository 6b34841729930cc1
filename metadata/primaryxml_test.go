package metadata

import (
	"context"
	"testing"

	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/rpmver"
)

const primaryXMLFixture = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm" packages="2">
<package type="rpm">
  <name>gnome-power-manager</name>
  <arch>i386</arch>
  <version epoch="0" ver="3.2.0" rel="1.fc16"/>
  <checksum type="sha256" pkgid="YES">aaaa1111</checksum>
  <summary>GNOME power management service</summary>
  <description>GNOME Power Manager uses the information and facilities provided by UPower.</description>
  <url>http://projects.gnome.org/gnome-power-manager/</url>
  <size package="4194304"/>
  <location href="Packages/gnome-power-manager-3.2.0-1.fc16.i386.rpm"/>
  <format>
    <rpm:license>GPLv2+</rpm:license>
    <rpm:group>Applications/System</rpm:group>
    <rpm:provides>
      <rpm:entry name="gnome-power-manager" flags="EQ" epoch="0" ver="3.2.0" rel="1.fc16"/>
    </rpm:provides>
    <rpm:requires>
      <rpm:entry name="libgtk-3.so.0"/>
    </rpm:requires>
    <file>/usr/bin/gnome-power-statistics</file>
  </format>
</package>
<package type="rpm">
  <name>bar</name>
  <arch>i386</arch>
  <version epoch="0" ver="2.0" rel="1"/>
  <checksum type="sha256" pkgid="YES">bbbb2222</checksum>
  <summary>bar replaces foo</summary>
  <description/>
  <url/>
  <size package="1024"/>
  <location href="Packages/bar-2.0-1.i386.rpm"/>
  <format>
    <rpm:license>MIT</rpm:license>
    <rpm:group>Applications/System</rpm:group>
    <rpm:obsoletes>
      <rpm:entry name="foo" flags="EQ" epoch="0" ver="1.0" rel="1"/>
    </rpm:obsoletes>
  </format>
</package>
</metadata>`

func primaryXMLHandle(t *testing.T) *Handle {
	t.Helper()
	return writeHandleFile(t, KindPrimaryXML, "primary.xml", primaryXMLFixture)
}

func TestPrimaryXMLGetPackages(t *testing.T) {
	h := primaryXMLHandle(t)
	pkgs, err := h.GetPackages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(pkgs))
	}
	p := pkgs[0]
	if p.Name() != "gnome-power-manager" || p.Arch() != "i386" {
		t.Errorf("unexpected identity %s", p.Identity())
	}
	if p.EVR() != "3.2.0-1.fc16" {
		t.Errorf("unexpected EVR %q", p.EVR())
	}
	if p.PkgID != "aaaa1111" {
		t.Errorf("unexpected pkgid %q", p.PkgID)
	}
	if p.Source != "test" {
		t.Errorf("source should be the owning store's id, got %q", p.Source)
	}
	if p.LocationHref != "Packages/gnome-power-manager-3.2.0-1.fc16.i386.rpm" {
		t.Errorf("unexpected location %q", p.LocationHref)
	}
	if len(p.Files) != 1 || p.Files[0] != "/usr/bin/gnome-power-statistics" {
		t.Errorf("unexpected files %v", p.Files)
	}
	if len(p.Requires) != 1 || p.Requires[0].Name != "libgtk-3.so.0" || p.Requires[0].Flag != rpmpkg.Any {
		t.Errorf("unexpected requires %v", p.Requires)
	}
}

func TestPrimaryXMLResolveFull(t *testing.T) {
	h := primaryXMLHandle(t)
	pkgs, err := h.ResolveFull(context.Background(), []string{"gnome-power-manager"}, UseName)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 || pkgs[0].Name() != "gnome-power-manager" {
		t.Fatalf("unexpected resolve result %v", pkgs)
	}
}

func TestPrimaryXMLSearchPkgID(t *testing.T) {
	h := primaryXMLHandle(t)
	p, err := h.SearchPkgID(context.Background(), "bbbb2222")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "bar" {
		t.Errorf("unexpected package %s", p.Identity())
	}
	if _, err := h.SearchPkgID(context.Background(), "does-not-exist"); err == nil {
		t.Error("expected an error for an unknown pkgid")
	}
}

func TestPrimaryXMLWhatObsoletes(t *testing.T) {
	h := primaryXMLHandle(t)
	wants := []rpmpkg.Depend{{
		Name: "foo", Flag: rpmpkg.Equal,
		EVR: rpmver.Version{Epoch: "0", Version: "1.0", Release: "1"},
	}}
	pkgs, err := h.WhatObsoletes(context.Background(), wants)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 || pkgs[0].Name() != "bar" {
		t.Errorf("expected bar to obsolete foo, got %v", pkgs)
	}
}

func TestPrimaryXMLWhatProvides(t *testing.T) {
	h := primaryXMLHandle(t)
	pkgs, err := h.WhatProvides(context.Background(), []rpmpkg.Depend{{Name: "gnome-power-manager"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 {
		t.Errorf("expected one provider, got %v", pkgs)
	}
}
