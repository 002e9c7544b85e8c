package ico

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/png"

	"golang.org/x/image/bmp"
)

// PayloadKind classifies the raw image bytes referenced by a DirEntry.
type PayloadKind int

const (
	KindUnknown PayloadKind = iota
	KindDIB                 // headerless bitmap (BITMAPINFOHEADER + pixel data)
	KindPNG
)

func (k PayloadKind) String() string {
	switch k {
	case KindDIB:
		return "dib"
	case KindPNG:
		return "png"
	default:
		return "unknown"
	}
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

const fileHeaderSize = 14 // BITMAPFILEHEADER

var ErrUnknownPayload = errors.New("unrecognized image payload")

// SniffPayload classifies an icon image payload. Vista-era ICOs embed
// whole PNG files; classic ones embed a headerless DIB whose first dword
// is the info header size.
func SniffPayload(data []byte) PayloadKind {
	if bytes.HasPrefix(data, pngSignature) {
		return KindPNG
	}
	if len(data) >= 4 {
		switch binary.LittleEndian.Uint32(data[0:4]) {
		case 40, 108, 124: // BITMAPINFOHEADER, BITMAPV4HEADER, BITMAPV5HEADER
			return KindDIB
		}
	}
	return KindUnknown
}

// Info describes an inspected icon image payload.
type Info struct {
	Kind   PayloadKind
	Width  int
	Height int
}

// InspectPayload reports format and pixel dimensions of one icon image.
// Diagnostic only: the composer copies payloads verbatim whether or not
// they decode.
func InspectPayload(data []byte) (Info, error) {
	switch SniffPayload(data) {
	case KindPNG:
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Info{}, fmt.Errorf("decode png payload: %w", err)
		}
		return Info{Kind: KindPNG, Width: cfg.Width, Height: cfg.Height}, nil
	case KindDIB:
		cfg, err := bmp.DecodeConfig(bytes.NewReader(wrapDIB(data)))
		if err != nil {
			return Info{}, fmt.Errorf("decode dib payload: %w", err)
		}
		return Info{Kind: KindDIB, Width: cfg.Width, Height: cfg.Height}, nil
	default:
		return Info{}, ErrUnknownPayload
	}
}

// wrapDIB prepends a BITMAPFILEHEADER so the payload reads as a BMP file.
// The DIB height field covers the stacked XOR and AND masks, so it is
// halved to the visible image height.
func wrapDIB(dib []byte) []byte {
	hdrSize := binary.LittleEndian.Uint32(dib[0:4])
	if int(hdrSize) > len(dib) {
		return dib
	}

	body := make([]byte, len(dib))
	copy(body, dib)
	height := int32(binary.LittleEndian.Uint32(body[8:12]))
	binary.LittleEndian.PutUint32(body[8:12], uint32(height/2))

	bitCount := binary.LittleEndian.Uint16(body[14:16])
	var paletteBytes uint32
	if bitCount <= 8 {
		colors := binary.LittleEndian.Uint32(body[32:36]) // biClrUsed
		if colors == 0 {
			colors = 1 << bitCount
		}
		paletteBytes = colors * 4
	}

	out := make([]byte, 0, fileHeaderSize+len(body))
	var fh [fileHeaderSize]byte
	fh[0], fh[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(fh[2:6], uint32(fileHeaderSize+len(body)))
	binary.LittleEndian.PutUint32(fh[10:14], fileHeaderSize+hdrSize+paletteBytes)
	out = append(out, fh[:]...)
	return append(out, body...)
}
