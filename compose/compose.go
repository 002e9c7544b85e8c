// Package compose writes the polyglot output: ICO directory up front, the
// source PDF around it, the icon images wrapped in new PDF stream objects,
// and finally the patched ICO offset fields pointing into those streams.
package compose

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"icopdf/ico"
	"icopdf/layout"
	"icopdf/observability"
)

// File is the minimal surface the composer needs from its destination.
// Writes are strictly append-only; WriteAt is used only by the final
// patch pass over the ICO directory. *os.File satisfies it.
type File interface {
	io.Writer
	io.WriterAt
}

var ErrBadPlan = errors.New("invalid layout plan")

// Result reports where each image's raw bytes landed in the output, in
// directory order, plus the total size written.
type Result struct {
	StreamOffsets []int64
	BytesWritten  int64
}

type Config struct {
	Logger observability.Logger
}

// Composer performs the single ordered write pass. Any failed step aborts
// the whole operation; the partial output is left in place for diagnosis.
type Composer interface {
	Compose(icoSrc io.ReaderAt, icoSize int64, pdfSrc io.ReaderAt, pdfSize int64, plan layout.Plan, out File) (Result, error)
}

func NewComposer(cfg Config) Composer {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &composer{log: log}
}

type composer struct {
	log observability.Logger
}

func (c *composer) Compose(icoSrc io.ReaderAt, icoSize int64, pdfSrc io.ReaderAt, pdfSize int64, plan layout.Plan, out File) (Result, error) {
	if len(plan.Entries) == 0 {
		return Result{}, fmt.Errorf("%w: no entries", ErrBadPlan)
	}
	if plan.InsertAt <= 0 || plan.InsertAt > pdfSize {
		return Result{}, fmt.Errorf("%w: insertion offset %d outside PDF of %d bytes", ErrBadPlan, plan.InsertAt, pdfSize)
	}
	for i, e := range plan.Entries {
		if int64(e.Offset)+int64(e.Length) > icoSize {
			return Result{}, fmt.Errorf("%w: image %d outside ICO of %d bytes", ErrBadPlan, i, icoSize)
		}
	}

	o := &output{f: out}

	// Step 1: ICO directory plus entries, verbatim. The offset fields
	// still point into the source file; the patch pass fixes them once
	// the stream positions are known.
	dirLen := int64(ico.DirSize + len(plan.Entries)*ico.DirEntrySize)
	if err := o.copyFrom(icoSrc, 0, dirLen); err != nil {
		return Result{}, fmt.Errorf("write ico directory: %w", err)
	}

	// Step 2: source PDF through the insertion point.
	if err := o.copyFrom(pdfSrc, 0, plan.InsertAt); err != nil {
		return Result{}, fmt.Errorf("write pdf head: %w", err)
	}

	// Step 3: one stream object per image.
	offsets := make([]int64, 0, len(plan.Entries))
	for i, e := range plan.Entries {
		id := plan.FirstID + i
		c.log.Debug("writing image stream",
			observability.Int("id", id),
			observability.Uint32("src_offset", e.Offset),
			observability.Uint32("length", e.Length))

		if err := o.writeString(fmt.Sprintf("%d 0 obj <<\n/Length %d\n>>\nstream\n", id, e.Length)); err != nil {
			return Result{}, fmt.Errorf("write stream object %d: %w", id, err)
		}
		offsets = append(offsets, o.n)
		if err := o.copyFrom(icoSrc, int64(e.Offset), int64(e.Length)); err != nil {
			return Result{}, fmt.Errorf("write image %d data: %w", i, err)
		}
		if err := o.writeString("\nendstream\nendobj\n"); err != nil {
			return Result{}, fmt.Errorf("write stream object %d: %w", id, err)
		}
		c.log.Debug("image data written", observability.Int64("dst_offset", offsets[i]))
	}

	// Step 4: rest of the source PDF, trailer and %%EOF included.
	if err := o.copyFrom(pdfSrc, plan.InsertAt, pdfSize-plan.InsertAt); err != nil {
		return Result{}, fmt.Errorf("write pdf tail: %w", err)
	}

	// Step 5: patch each directory entry's image offset field in place.
	if err := patchOffsets(out, offsets); err != nil {
		return Result{}, err
	}

	return Result{StreamOffsets: offsets, BytesWritten: o.n}, nil
}

// patchOffsets overwrites the 4-byte little-endian image offset field of
// entry i at byte DirSize + i*DirEntrySize + EntryOffsetField.
func patchOffsets(out io.WriterAt, offsets []int64) error {
	var field [4]byte
	for i, off := range offsets {
		if off > math.MaxUint32 {
			return fmt.Errorf("image %d: stream offset %d exceeds 32-bit ICO offset field", i, off)
		}
		binary.LittleEndian.PutUint32(field[:], uint32(off))
		pos := int64(ico.DirSize + i*ico.DirEntrySize + ico.EntryOffsetField)
		if _, err := out.WriteAt(field[:], pos); err != nil {
			return fmt.Errorf("patch image %d offset: %w", i, err)
		}
	}
	return nil
}

// output tracks how many bytes have been appended so stream data
// positions can be recorded without seeking.
type output struct {
	f File
	n int64
}

func (o *output) Write(p []byte) (int, error) {
	n, err := o.f.Write(p)
	o.n += int64(n)
	return n, err
}

func (o *output) writeString(s string) error {
	_, err := io.WriteString(o, s)
	return err
}

func (o *output) copyFrom(src io.ReaderAt, off, n int64) error {
	copied, err := io.Copy(o, io.NewSectionReader(src, off, n))
	if err != nil {
		return err
	}
	if copied != n {
		return fmt.Errorf("short copy: %d of %d bytes", copied, n)
	}
	return nil
}
