// Command icopdf combines an ICO file and a PDF file into a single
// polyglot output that both format parsers accept.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"icopdf/compose"
	"icopdf/ico"
	"icopdf/layout"
	"icopdf/observability"
	"icopdf/pdf"
	"icopdf/recovery"
)

type options struct {
	Verbose bool `short:"v" long:"verbose" env:"ICOPDF_VERBOSE" description:"verbose diagnostic output"`
	Check   bool `short:"c" long:"check" env:"ICOPDF_CHECK" description:"re-validate the finished output as both ICO and PDF"`
	Args    struct {
		IcoFile string `positional-arg-name:"ICOFILE" description:"input ico file"`
		PdfFile string `positional-arg-name:"PDFFILE" description:"input pdf file"`
		OutFile string `positional-arg-name:"OUTFILE" description:"output file name"`
	} `positional-args:"yes" required:"3"`
}

func main() {
	_ = godotenv.Load()

	var opts options
	rest, err := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash).Parse()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(rest) != 0 {
		fmt.Fprintln(os.Stderr, "unexpected extra arguments:", strings.Join(rest, " "))
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "icopdf:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	log := observability.NewStderrLogger(opts.Verbose)
	log.Debug("arguments",
		observability.String("ico", opts.Args.IcoFile),
		observability.String("pdf", opts.Args.PdfFile),
		observability.String("out", opts.Args.OutFile))

	// Precondition, checked before any input is opened: never overwrite.
	if _, err := os.Stat(opts.Args.OutFile); err == nil {
		return fmt.Errorf("%s already exists", opts.Args.OutFile)
	}

	icoData, err := os.ReadFile(opts.Args.IcoFile)
	if err != nil {
		return fmt.Errorf("open ico file: %w", err)
	}
	dir, entries, err := ico.ParseDir(icoData, ico.Config{
		Logger:   log,
		Recovery: recovery.NewLenientStrategy(log),
	})
	if err != nil {
		return fmt.Errorf("invalid ico file %s: %w", opts.Args.IcoFile, err)
	}
	log.Debug("ico validated", observability.Int("images", int(dir.Count)))
	if opts.Verbose {
		inspectImages(log, icoData, entries)
	}

	pdfFile, err := os.Open(opts.Args.PdfFile)
	if err != nil {
		return fmt.Errorf("open pdf file: %w", err)
	}
	defer pdfFile.Close()
	st, err := pdfFile.Stat()
	if err != nil {
		return fmt.Errorf("stat pdf file: %w", err)
	}
	pdfSize := st.Size()
	if err := pdf.CheckMarkers(pdfFile, pdfSize); err != nil {
		return fmt.Errorf("invalid pdf file %s: %w", opts.Args.PdfFile, err)
	}

	plan, err := layout.NewPlanner(layout.Config{Logger: log}).Plan(pdfFile, pdfSize, entries)
	if err != nil {
		return err
	}

	// Refuse to clobber: running twice with the same output must fail.
	out, err := os.OpenFile(opts.Args.OutFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists", opts.Args.OutFile)
		}
		return fmt.Errorf("open output file: %w", err)
	}
	defer out.Close()

	res, err := compose.NewComposer(compose.Config{Logger: log}).
		Compose(bytes.NewReader(icoData), int64(len(icoData)), pdfFile, pdfSize, plan, out)
	if err != nil {
		return fmt.Errorf("compose %s (partial output left in place): %w", opts.Args.OutFile, err)
	}
	log.Debug("compose finished",
		observability.Int64("bytes", res.BytesWritten),
		observability.Int("streams", len(res.StreamOffsets)))

	if opts.Check {
		outData, err := os.ReadFile(opts.Args.OutFile)
		if err != nil {
			return fmt.Errorf("reopen output for check: %w", err)
		}
		if err := compose.Verify(outData, icoData, compose.Config{Logger: log}); err != nil {
			return fmt.Errorf("self-check of %s failed: %w", opts.Args.OutFile, err)
		}
		log.Debug("self-check passed")
	}

	fmt.Println("Output file successfully written.")
	return nil
}

// inspectImages reports each payload's format and dimensions. Failures
// are diagnostic only; undecodable payloads are still copied verbatim.
func inspectImages(log observability.Logger, icoData []byte, entries []ico.DirEntry) {
	for i, e := range entries {
		payload := icoData[e.Offset : uint64(e.Offset)+uint64(e.Length)]
		info, err := ico.InspectPayload(payload)
		if err != nil {
			log.Debug("image payload not decodable",
				observability.Int("image", i),
				observability.Error("err", err))
			continue
		}
		log.Debug("image payload",
			observability.Int("image", i),
			observability.String("format", info.Kind.String()),
			observability.Int("width", info.Width),
			observability.Int("height", info.Height))
	}
}
