// Command umcfpack packs a UMCF document and an optional asset directory into a
// compressed .umcfz file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/umcf"
)

const usage = `usage: umcfpack [-assets dir] [-simple] <in.umcf> <out.umcfz>

Flags:
`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("pack failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("umcfpack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	assetDir := fs.String("assets", "", "directory whose files are bundled as archive assets")
	simple := fs.Bool("simple", false, "write a plain gzip of the document, without the archive envelope")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("input and output paths are required")
	}
	in, out := fs.Arg(0), fs.Arg(1)

	if *simple && *assetDir != "" {
		return errors.New("-simple cannot bundle assets")
	}
	if format, err := umcf.FormatFromPath(out); err != nil {
		return err
	} else if format != umcf.FormatCompressed {
		return fmt.Errorf("%w: output must use the %s extension", umcf.ErrUnsupportedFormat, umcf.FormatCompressed.Extension())
	}

	codec := umcf.NewCodec(umcf.WithCreatedBy("umcfpack"))
	pkg, err := codec.Read(in)
	if err != nil {
		return err
	}

	assets := pkg.Assets
	if *simple {
		assets = nil
	}
	if *assetDir != "" {
		dirAssets, err := umcf.LoadAssetDir(*assetDir)
		if err != nil {
			return err
		}
		if assets == nil {
			assets = make(map[string][]byte, len(dirAssets))
		}
		for id, data := range dirAssets {
			assets[id] = data
		}
	}
	annotated := umcf.AnnotateMimeTypes(pkg.Document, assets)

	if err := codec.Write(pkg.Document, out, umcf.FormatCompressed, assets); err != nil {
		return err
	}

	layout := "simple"
	if len(assets) > 0 {
		layout = "archive"
	}
	fmt.Fprintf(stdout, "packed %q into %s (%s, %d assets, %d mime types set)\n",
		pkg.Document.Title, out, layout, len(assets), annotated)
	return nil
}
