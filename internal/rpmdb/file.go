package rpmdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/rpmver"
)

// This file implements a minimal, read-only parser for a standalone .rpm
// file's lead + signature header + main header, used by storedirectory to
// build a [rpmpkg.Package] from a bare .rpm archive without a database
// around it.
//
// The header blob layout is magic, index count, store size, then one
// 16-byte entry per index slot, followed by the data store. The on-disk
// format differs from the in-database blob only by carrying its own 8-byte
// magic+reserved preamble and living after a fixed 96-byte lead and a
// signature header.

const (
	leadSize    = 96
	headerMagic = 0x8eade801

	tagName        = 1000
	tagVersion      = 1001
	tagRelease      = 1002
	tagEpoch        = 1003
	tagSummary      = 1004
	tagDescription  = 1005
	tagSize         = 1009
	tagLicense      = 1014
	tagGroup        = 1016
	tagURL          = 1020
	tagArch         = 1022
	tagProvideName  = 1047
	tagRequireName  = 1049
)

const (
	typeChar        = 1
	typeInt8        = 2
	typeInt16       = 3
	typeInt32       = 4
	typeInt64       = 5
	typeString      = 6
	typeBin         = 7
	typeStringArray = 8
	typeI18NString  = 9
)

type entryInfo struct {
	tag, typ, offset, count int32
}

type header struct {
	entries []entryInfo
	data    []byte
}

// readHeaderBlob reads one header blob (8-byte magic+reserved preamble,
// index count, store size, index, store) starting at the reader's current
// position, leaving the reader just past the blob's store; any 8-byte
// alignment padding after it is not consumed.
func readHeaderBlob(r *bufio.Reader) (*header, error) {
	var preamble [8]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, err
	}
	magic := binary.BigEndian.Uint32(preamble[:4])
	if magic>>8 != headerMagic>>8 {
		return nil, fmt.Errorf("rpmdb: bad header magic %x", magic)
	}
	var counts [8]byte
	if _, err := io.ReadFull(r, counts[:]); err != nil {
		return nil, err
	}
	indexCount := binary.BigEndian.Uint32(counts[:4])
	storeSize := binary.BigEndian.Uint32(counts[4:])

	idx := make([]byte, int(indexCount)*16)
	if _, err := io.ReadFull(r, idx); err != nil {
		return nil, err
	}
	store := make([]byte, storeSize)
	if _, err := io.ReadFull(r, store); err != nil {
		return nil, err
	}

	h := &header{data: store}
	for i := 0; i < int(indexCount); i++ {
		e := idx[i*16 : i*16+16]
		h.entries = append(h.entries, entryInfo{
			tag:    int32(binary.BigEndian.Uint32(e[0:4])),
			typ:    int32(binary.BigEndian.Uint32(e[4:8])),
			offset: int32(binary.BigEndian.Uint32(e[8:12])),
			count:  int32(binary.BigEndian.Uint32(e[12:16])),
		})
	}

	// The whole blob (not counting the lead) is padded to an 8-byte
	// boundary when it's a signature header; callers that don't care skip
	// that padding themselves.
	return h, nil
}

func (h *header) find(tag int32) (entryInfo, bool) {
	for _, e := range h.entries {
		if e.tag == tag {
			return e, true
		}
	}
	return entryInfo{}, false
}

func (h *header) string(tag int32) string {
	e, ok := h.find(tag)
	if !ok || (e.typ != typeString && e.typ != typeI18NString) {
		return ""
	}
	if int(e.offset) >= len(h.data) {
		return ""
	}
	end := e.offset
	for int(end) < len(h.data) && h.data[end] != 0 {
		end++
	}
	return string(h.data[e.offset:end])
}

func (h *header) int32s(tag int32) []int32 {
	e, ok := h.find(tag)
	if !ok || e.typ != typeInt32 {
		return nil
	}
	out := make([]int32, 0, e.count)
	off := int(e.offset)
	for i := 0; i < int(e.count) && off+4 <= len(h.data); i++ {
		out = append(out, int32(binary.BigEndian.Uint32(h.data[off:off+4])))
		off += 4
	}
	return out
}

func (h *header) stringArray(tag int32) []string {
	e, ok := h.find(tag)
	if !ok || (e.typ != typeStringArray && e.typ != typeI18NString) {
		return nil
	}
	var out []string
	off := int(e.offset)
	for i := 0; i < int(e.count) && off < len(h.data); i++ {
		start := off
		for off < len(h.data) && h.data[off] != 0 {
			off++
		}
		out = append(out, string(h.data[start:off]))
		off++ // Skip the NUL.
	}
	return out
}

// ReadHeader parses a standalone .rpm file at path and returns the
// [rpmpkg.Package] its header describes.
func ReadHeader(path string) (*rpmpkg.Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if _, err := br.Discard(leadSize); err != nil {
		return nil, fmt.Errorf("rpmdb: short lead: %w", err)
	}

	sig, err := readHeaderBlob(br)
	if err != nil {
		return nil, fmt.Errorf("rpmdb: signature header: %w", err)
	}
	// The signature header's store is padded to an 8-byte boundary before
	// the main header begins.
	if pad := (8 - (len(sig.data) % 8)) % 8; pad > 0 {
		if _, err := br.Discard(pad); err != nil {
			return nil, fmt.Errorf("rpmdb: signature padding: %w", err)
		}
	}

	h, err := readHeaderBlob(br)
	if err != nil {
		return nil, fmt.Errorf("rpmdb: main header: %w", err)
	}

	name := h.string(tagName)
	arch := h.string(tagArch)
	epoch := "0"
	if e := h.int32s(tagEpoch); len(e) > 0 {
		epoch = fmt.Sprintf("%d", e[0])
	}
	var size uint64
	if s := h.int32s(tagSize); len(s) > 0 {
		size = uint64(s[0])
	}

	return &rpmpkg.Package{
		Version: rpmver.Version{
			Name: &name, Architecture: &arch,
			Epoch: epoch, Version: h.string(tagVersion), Release: h.string(tagRelease),
		},
		Summary:     h.string(tagSummary),
		Description: h.string(tagDescription),
		License:     h.string(tagLicense),
		URL:         h.string(tagURL),
		Group:       rpmpkg.Group(h.string(tagGroup)),
		Size:        size,
		Requires:    namesToDepends(h.stringArray(tagRequireName)),
		Provides:    namesToDepends(h.stringArray(tagProvideName)),
	}, nil
}

func namesToDepends(names []string) []rpmpkg.Depend {
	out := make([]rpmpkg.Depend, 0, len(names))
	for _, n := range names {
		out = append(out, rpmpkg.Depend{Name: n, Flag: rpmpkg.Any})
	}
	return out
}
