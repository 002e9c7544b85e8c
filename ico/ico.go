// Package ico parses and validates Windows icon resource (ICO) directories.
//
// http://msdn.microsoft.com/en-us/library/ms997538.aspx
package ico

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"icopdf/observability"
	"icopdf/recovery"
)

const (
	// DirSize is the length of the fixed ICONDIR header.
	DirSize = 6
	// DirEntrySize is the length of one ICONDIRENTRY record.
	DirEntrySize = 16
	// EntryOffsetField is the position of the 4-byte little-endian image
	// offset field inside an ICONDIRENTRY.
	EntryOffsetField = 12

	// MinImages and MaxImages bound the supported image count.
	MinImages = 1
	MaxImages = 10

	resourceIcon = 1
)

var (
	ErrTruncated     = errors.New("ico data truncated")
	ErrNotIcon       = errors.New("not an icon resource")
	ErrImageCount    = errors.New("unsupported image count")
	ErrDanglingImage = errors.New("image data out of bounds")
)

// Dir is the 6-byte ICONDIR header.
type Dir struct {
	Reserved uint16 // must be 0
	Type     uint16 // resource type, 1 for icons
	Count    uint16 // number of images
}

// DirEntry is one 16-byte ICONDIRENTRY record.
type DirEntry struct {
	Width      byte   // width in pixels, 0 means 256
	Height     byte   // height in pixels, 0 means 256
	ColorCount byte   // colors in image, 0 if >=8bpp
	Reserved   byte   // should be 0, some writers emit 255
	Planes     uint16 // color planes, 0 or 1 for icons
	BitCount   uint16 // bits per pixel
	Length     uint32 // bytes of image data
	Offset     uint32 // image data offset from start of file
}

type Config struct {
	Logger   observability.Logger
	Recovery recovery.Strategy
}

// ParseDir reads and validates the icon directory at the head of data,
// where data is the complete source ICO file. Fields that merely hint at
// a cursor (CUR) resource are routed through cfg.Recovery; everything
// else that fails validation is fatal.
func ParseDir(data []byte, cfg Config) (Dir, []DirEntry, error) {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	rec := cfg.Recovery
	if rec == nil {
		rec = recovery.NewLenientStrategy(log)
	}

	if len(data) < DirSize {
		return Dir{}, nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrTruncated, len(data), DirSize)
	}
	dir := Dir{
		Reserved: binary.LittleEndian.Uint16(data[0:2]),
		Type:     binary.LittleEndian.Uint16(data[2:4]),
		Count:    binary.LittleEndian.Uint16(data[4:6]),
	}
	log.Debug("icondir parsed",
		observability.Int("reserved", int(dir.Reserved)),
		observability.Int("type", int(dir.Type)),
		observability.Int("count", int(dir.Count)))

	if dir.Reserved != 0 {
		return Dir{}, nil, fmt.Errorf("%w: idReserved is %d, want 0", ErrNotIcon, dir.Reserved)
	}
	if dir.Type != resourceIcon {
		return Dir{}, nil, fmt.Errorf("%w: idType is %d, want %d", ErrNotIcon, dir.Type, resourceIcon)
	}
	if dir.Count < MinImages || dir.Count > MaxImages {
		return Dir{}, nil, fmt.Errorf("%w: %d images", ErrImageCount, dir.Count)
	}

	need := DirSize + int(dir.Count)*DirEntrySize
	if len(data) < need {
		return Dir{}, nil, fmt.Errorf("%w: %d bytes, want %d for %d entries", ErrTruncated, len(data), need, dir.Count)
	}

	entries := make([]DirEntry, dir.Count)
	if err := binary.Read(bytes.NewReader(data[DirSize:need]), binary.LittleEndian, entries); err != nil {
		return Dir{}, nil, fmt.Errorf("read directory entries: %w", err)
	}

	for i := range entries {
		if err := validateEntry(i, entries[i], int64(len(data)), rec); err != nil {
			return Dir{}, nil, err
		}
	}
	return dir, entries, nil
}

func validateEntry(idx int, e DirEntry, fileSize int64, rec recovery.Strategy) error {
	entryOff := int64(DirSize + idx*DirEntrySize)

	// Width and Height are single bytes; the 0-255 range is enforced by
	// the type itself.

	if e.Reserved != 0 && e.Reserved != 255 {
		anomaly := fmt.Errorf("bReserved should be 0 or 255, is %d", e.Reserved)
		if rec.OnError(anomaly, recovery.Location{ByteOffset: entryOff, ImageIndex: idx, Component: "ico"}) == recovery.ActionFail {
			return fmt.Errorf("image %d: %w", idx, anomaly)
		}
	}
	if e.Planes != 0 && e.Planes != 1 {
		anomaly := fmt.Errorf("unexpected value in wPlanes (%d), is this a CUR file?", e.Planes)
		if rec.OnError(anomaly, recovery.Location{ByteOffset: entryOff, ImageIndex: idx, Component: "ico"}) == recovery.ActionFail {
			return fmt.Errorf("image %d: %w", idx, anomaly)
		}
	}

	if int64(e.Offset)+int64(e.Length) > fileSize {
		return fmt.Errorf("image %d: %w: offset %d + length %d exceeds file size %d",
			idx, ErrDanglingImage, e.Offset, e.Length, fileSize)
	}
	return nil
}
