package ico_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"icopdf/ico"
	"icopdf/recovery"
)

type icoImage struct {
	width, height byte
	payload       []byte
}

func buildICO(images ...icoImage) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, ico.Dir{Type: 1, Count: uint16(len(images))})

	offset := uint32(ico.DirSize + len(images)*ico.DirEntrySize)
	for _, img := range images {
		e := ico.DirEntry{
			Width:    img.width,
			Height:   img.height,
			Planes:   1,
			BitCount: 32,
			Length:   uint32(len(img.payload)),
			Offset:   offset,
		}
		binary.Write(buf, binary.LittleEndian, e)
		offset += e.Length
	}
	for _, img := range images {
		buf.Write(img.payload)
	}
	return buf.Bytes()
}

func TestParseDirValid(t *testing.T) {
	data := buildICO(
		icoImage{width: 32, height: 32, payload: bytes.Repeat([]byte{0xAA}, 64)},
		icoImage{width: 16, height: 16, payload: bytes.Repeat([]byte{0xBB}, 32)},
	)

	dir, entries, err := ico.ParseDir(data, ico.Config{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if dir.Count != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 entries, got count=%d len=%d", dir.Count, len(entries))
	}
	if entries[0].Width != 32 || entries[1].Width != 16 {
		t.Fatalf("unexpected widths: %d, %d", entries[0].Width, entries[1].Width)
	}
	if entries[0].Offset != 38 { // 6 + 2*16
		t.Fatalf("first image offset: got %d, want 38", entries[0].Offset)
	}
	for i, e := range entries {
		if int64(e.Offset)+int64(e.Length) > int64(len(data)) {
			t.Fatalf("entry %d out of bounds", i)
		}
	}
}

func TestParseDirRejects(t *testing.T) {
	valid := buildICO(icoImage{width: 32, height: 32, payload: make([]byte, 16)})

	cases := []struct {
		name   string
		mutate func(b []byte) []byte
		want   error
	}{
		{"reserved nonzero", func(b []byte) []byte { b[0] = 1; return b }, ico.ErrNotIcon},
		{"cursor type", func(b []byte) []byte { b[2] = 2; return b }, ico.ErrNotIcon},
		{"zero count", func(b []byte) []byte { b[4] = 0; return b }, ico.ErrImageCount},
		{"too many images", func(b []byte) []byte { b[4] = 11; return b }, ico.ErrImageCount},
		{"dangling image", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[ico.DirSize+8:], 0xFFFF)
			return b
		}, ico.ErrDanglingImage},
		{"truncated header", func(b []byte) []byte { return b[:4] }, ico.ErrTruncated},
		{"truncated entries", func(b []byte) []byte { return b[:ico.DirSize+3] }, ico.ErrTruncated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.mutate(append([]byte(nil), valid...))
			_, entries, err := ico.ParseDir(data, ico.Config{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if entries != nil {
				t.Fatalf("expected no entries on failure")
			}
		})
	}
}

func TestParseDirCursorFields(t *testing.T) {
	data := buildICO(icoImage{width: 32, height: 32, payload: make([]byte, 16)})
	// Entry bReserved=7, wPlanes=3: suspicious but valid per default policy.
	data[ico.DirSize+3] = 7
	binary.LittleEndian.PutUint16(data[ico.DirSize+4:], 3)

	if _, _, err := ico.ParseDir(data, ico.Config{}); err != nil {
		t.Fatalf("lenient parse should pass: %v", err)
	}

	_, _, err := ico.ParseDir(data, ico.Config{Recovery: recovery.NewStrictStrategy()})
	if err == nil {
		t.Fatalf("strict parse should fail on cursor-like fields")
	}
}

func TestParseDirReservedByte255Accepted(t *testing.T) {
	data := buildICO(icoImage{width: 16, height: 16, payload: make([]byte, 8)})
	data[ico.DirSize+3] = 255

	if _, _, err := ico.ParseDir(data, ico.Config{Recovery: recovery.NewStrictStrategy()}); err != nil {
		t.Fatalf("bReserved=255 should pass even under strict policy: %v", err)
	}
}
