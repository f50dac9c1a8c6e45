package wal

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSegmentWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steve.log")

	seg, err := createSegment(path)
	if err != nil {
		t.Fatalf("createSegment: %v", err)
	}
	entries := []RawRecord{
		{Header: []byte("h1"), Content: []byte{0xAA, 0xBB}},
		{Header: []byte("h2"), Content: []byte{}},
		{Header: []byte{}, Content: []byte{0x01, 0x02, 0x03}},
	}
	for _, e := range entries {
		if err := seg.append(e.Header, e.Content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := seg.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadSegment(path)
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d records, got %d", len(entries), len(got))
	}
	for i, want := range entries {
		if !bytes.Equal(got[i].Header, want.Header) {
			t.Fatalf("record %d header mismatch: got %v want %v", i, got[i].Header, want.Header)
		}
		if !bytes.Equal(got[i].Content, want.Content) {
			t.Fatalf("record %d content mismatch: got %v want %v", i, got[i].Content, want.Content)
		}
	}
}

func TestReadSegmentRejectsMissingSignature(t *testing.T) {
	_, err := readSegment(bytes.NewReader([]byte("not a wal segment at all, just junk bytes padding out")))
	if err != errBadSignature {
		t.Fatalf("expected errBadSignature, got %v", err)
	}
}

func TestSegmentAppendRejectsOversizedHeader(t *testing.T) {
	dir := t.TempDir()
	seg, err := createSegment(filepath.Join(dir, "seg.log"))
	if err != nil {
		t.Fatalf("createSegment: %v", err)
	}
	defer seg.close()

	oversized := make([]byte, MaxHeaderBytes+1)
	if err := seg.append(oversized, nil); err != errHeaderTooLarge {
		t.Fatalf("expected errHeaderTooLarge, got %v", err)
	}
}
