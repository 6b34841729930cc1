package metadata

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zifproj/zif"
)

const repomdFixture = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <data type="primary_db">
    <location href="repodata/primary.sqlite.gz"/>
    <checksum type="sha256">50a0e943a4a107171b32bdfbcdf3a1d0d9a7a8ccf44efcb1caabde27343b4a1e</checksum>
    <open-checksum type="sha256">ba6a4fa0b152ec57a963cebccbdbf292d2a699dd0bb82b2229b9d1b54e6a0c05</open-checksum>
    <timestamp>1318498784</timestamp>
  </data>
  <data type="filelists_db">
    <location href="repodata/filelists.sqlite.bz2" xml:base="http://alt.example/repo/"/>
    <checksum type="sha1">5ab54b840a2dcba11b39f6b5473cf2fb5e406ed1</checksum>
    <open-checksum type="sha1">d311872d5cc99bc4a2bbf55b0ed25ec8e557a9ef</open-checksum>
    <timestamp>1318498785</timestamp>
  </data>
</repomd>
`

func TestParseRepomdBindsHandles(t *testing.T) {
	rm, err := ParseRepomd(strings.NewReader(repomdFixture))
	if err != nil {
		t.Fatal(err)
	}
	handles, bases, err := rm.Handles("fedora", "/tmp/cache/fedora", 6*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	p, ok := handles[KindPrimarySQL]
	if !ok {
		t.Fatal("missing primary_db handle")
	}
	if p.FilenameRaw != "primary.sqlite.gz" || p.Filename != "primary.sqlite" {
		t.Errorf("unexpected filenames %q / %q", p.FilenameRaw, p.Filename)
	}
	if p.Info.Checksum.Algorithm() != "sha256" {
		t.Errorf("unexpected checksum algorithm %q", p.Info.Checksum.Algorithm())
	}
	if got := p.Info.Timestamp.Unix(); got != 1318498784 {
		t.Errorf("unexpected timestamp %d", got)
	}
	if p.Info.MaxAge != 6*time.Hour {
		t.Errorf("unexpected max age %v", p.Info.MaxAge)
	}

	fl, ok := handles[KindFilelistsSQL]
	if !ok {
		t.Fatal("missing filelists_db handle")
	}
	if fl.Info.Checksum.Algorithm() != "sha1" {
		t.Errorf("unexpected filelists checksum algorithm %q", fl.Info.Checksum.Algorithm())
	}
	if len(bases) != 1 || bases[0] != "http://alt.example/repo/" {
		t.Errorf("xml:base should land in the extra-URI list, got %v", bases)
	}
}

func TestParseRepomdRequiresPrimary(t *testing.T) {
	const noPrimary = `<repomd><data type="filelists">
		<location href="repodata/filelists.xml.gz"/>
		<checksum type="sha1">5ab54b840a2dcba11b39f6b5473cf2fb5e406ed1</checksum>
		<timestamp>1</timestamp>
	</data></repomd>`
	rm, err := ParseRepomd(strings.NewReader(noPrimary))
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = rm.Handles("x", "/tmp", 0)
	if !errors.Is(err, zif.ErrMalformed) {
		t.Errorf("expected ErrMalformed without primary/primary_db, got %v", err)
	}
}

func TestParseRepomdMalformedXML(t *testing.T) {
	if _, err := ParseRepomd(strings.NewReader("this is not xml")); !errors.Is(err, zif.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}
