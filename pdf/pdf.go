// Package pdf locates the structural markers this tool needs in a PDF:
// header and trailer magic, object headers, and the end of the last
// object. It deliberately never parses the object graph.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	headerMarker  = "%PDF-"
	trailerMarker = "%%EOF"
	endobjMarker  = "endobj"

	// markerWindow bounds the header/trailer search so arbitrarily large
	// files are never scanned end to end.
	markerWindow = 1024
)

var (
	ErrNoHeader  = errors.New("PDF header (%PDF-) not found in first 1024 bytes")
	ErrNoTrailer = errors.New("PDF trailer (%%EOF) not found in last 1024 bytes")
	ErrNoObjects = errors.New("no object IDs found")
	ErrNoEndobj  = errors.New("no endobj marker found")
)

// CheckMarkers confirms the header magic starts within the first
// markerWindow bytes and the trailer magic within the last markerWindow.
func CheckMarkers(r io.ReaderAt, size int64) error {
	head, err := readRange(r, 0, min64(size, markerWindow+int64(len(headerMarker))-1))
	if err != nil {
		return fmt.Errorf("read header window: %w", err)
	}
	if !bytes.Contains(head, []byte(headerMarker)) {
		return ErrNoHeader
	}

	tailLen := min64(size, markerWindow)
	tail, err := readRange(r, size-tailLen, tailLen)
	if err != nil {
		return fmt.Errorf("read trailer window: %w", err)
	}
	if !bytes.Contains(tail, []byte(trailerMarker)) {
		return ErrNoTrailer
	}
	return nil
}

// ScanObjectIDs collects the object number of every line shaped like
// "<digits> <digits> obj". The scan splits on raw \n bytes: object
// headers are ASCII even when the file body is binary, and a byte-level
// split behaves identically on every platform.
func ScanObjectIDs(r io.ReaderAt, size int64) (map[int]struct{}, error) {
	data, err := readAll(r, size)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	ids := make(map[int]struct{})
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if id, ok := parseObjHeader(line); ok {
			ids[id] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: is this a valid PDF file?", ErrNoObjects)
	}
	return ids, nil
}

// parseObjHeader matches "<digits> <digits> obj" at the start of line and
// returns the first number. Trailing bytes after the keyword are ignored.
func parseObjHeader(line []byte) (int, bool) {
	id, rest, ok := leadingInt(line)
	if !ok || len(rest) == 0 || rest[0] != ' ' {
		return 0, false
	}
	_, rest, ok = leadingInt(rest[1:])
	if !ok || len(rest) == 0 || rest[0] != ' ' {
		return 0, false
	}
	if !bytes.HasPrefix(rest[1:], []byte("obj")) {
		return 0, false
	}
	return id, true
}

func leadingInt(b []byte) (int, []byte, bool) {
	n := 0
	i := 0
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		if n > (1<<31-1)/10 {
			return 0, nil, false
		}
		n = n*10 + int(b[i]-'0')
	}
	if i == 0 {
		return 0, nil, false
	}
	return n, b[i:], true
}

// FindInsertionOffset returns the byte position one past the last endobj
// marker, skipping its trailing newline. New stream objects are spliced
// in there, before the original trailer.
func FindInsertionOffset(r io.ReaderAt, size int64) (int64, error) {
	data, err := readAll(r, size)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	idx := bytes.LastIndex(data, []byte(endobjMarker))
	if idx < 0 {
		return 0, fmt.Errorf("%w: could not determine insertion offset", ErrNoEndobj)
	}
	off := int64(idx+len(endobjMarker)) + 1
	if off > size {
		off = size
	}
	return off, nil
}

func readAll(r io.ReaderAt, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func readRange(r io.ReaderAt, off, n int64) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:got], nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
