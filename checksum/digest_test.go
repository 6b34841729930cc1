package checksum

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	sum := sha256.Sum256([]byte("hello"))
	d, err := New(SHA256, sum[:])
	if err != nil {
		t.Fatal(err)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var got Digest
	if err := got.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if got.String() != d.String() {
		t.Errorf("got: %q, want: %q", got.String(), d.String())
	}
	if !bytes.Equal(got.Checksum(), sum[:]) {
		t.Errorf("checksum mismatch after round trip")
	}
}

func TestHashMatchesAlgorithm(t *testing.T) {
	sum := sha256.Sum256([]byte("world"))
	d := MustParse("sha256:" + hexEncode(sum[:]))
	h := d.Hash()
	h.Write([]byte("world"))
	if !bytes.Equal(h.Sum(nil), sum[:]) {
		t.Errorf("Hash() did not produce the expected algorithm")
	}
}

func TestBadLength(t *testing.T) {
	if _, err := New(SHA256, []byte{0x01}); err == nil {
		t.Error("expected error for short checksum")
	}
}

func TestUnknownAlgorithm(t *testing.T) {
	if _, err := Parse("notreal:ab"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
