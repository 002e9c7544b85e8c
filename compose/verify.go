package compose

import (
	"bytes"
	"fmt"

	"icopdf/ico"
	"icopdf/pdf"
)

// Verify re-checks a finished output against both format contracts: the
// leading bytes must parse as an icon directory whose entries point at
// payloads byte-identical to the source ICO's, and the PDF header and
// trailer markers must still be locatable.
func Verify(outData, icoData []byte, cfg Config) error {
	outDir, outEntries, err := ico.ParseDir(outData, ico.Config{Logger: cfg.Logger})
	if err != nil {
		return fmt.Errorf("output ico directory: %w", err)
	}
	_, srcEntries, err := ico.ParseDir(icoData, ico.Config{Logger: cfg.Logger})
	if err != nil {
		return fmt.Errorf("source ico directory: %w", err)
	}
	if int(outDir.Count) != len(srcEntries) {
		return fmt.Errorf("output has %d images, source has %d", outDir.Count, len(srcEntries))
	}

	for i, out := range outEntries {
		src := srcEntries[i]
		if out.Length != src.Length {
			return fmt.Errorf("image %d: output length %d != source length %d", i, out.Length, src.Length)
		}
		got := outData[out.Offset : uint64(out.Offset)+uint64(out.Length)]
		want := icoData[src.Offset : uint64(src.Offset)+uint64(src.Length)]
		if !bytes.Equal(got, want) {
			return fmt.Errorf("image %d: payload bytes differ between output and source", i)
		}
	}

	if err := pdf.CheckMarkers(bytes.NewReader(outData), int64(len(outData))); err != nil {
		return fmt.Errorf("output pdf markers: %w", err)
	}
	return nil
}
