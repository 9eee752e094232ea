// Command importer imports a UMCF curriculum file or URL into the configured store,
// optionally attaching reference documents and exporting a progress workbook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/curriculum"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/docproc"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/platform/config"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/report"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/umcf"
)

const usage = `usage: importer [flags] <path|url>

Imports a .umcf or .umcfz curriculum into the store selected by LEARN_STORE_DRIVER.

Flags:
`

type options struct {
	source      string
	replace     bool
	reportPath  string
	topic       string
	docs        []string
	showContext bool
}

type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	var docs stringList

	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.BoolVar(&opts.replace, "replace", false, "delete curricula imported from the same source first")
	fs.StringVar(&opts.reportPath, "report", "", "write a progress workbook (.xlsx) to this path")
	fs.StringVar(&opts.topic, "topic", "", "topic (source id or title) that -doc files attach to; default first topic")
	fs.Var(&docs, "doc", "reference document (pdf, txt, md, json transcript) to process and attach; repeatable")
	fs.BoolVar(&opts.showContext, "context", false, "print the assembled context for the selected topic")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("exactly one curriculum path or URL is required")
	}
	opts.source = fs.Arg(0)
	opts.docs = docs
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stderr))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer) error {
	deps, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	path := opts.source
	if isURL(path) {
		path, err = download(ctx, http.DefaultClient, opts.source, cfg.Import.MaxFileBytes, os.TempDir())
		if err != nil {
			return err
		}
		defer os.Remove(path)
	}

	codec := umcf.NewCodec(
		umcf.WithMaxFileBytes(cfg.Import.MaxFileBytes),
		umcf.WithMaxDecompressedBytes(cfg.Import.MaxDecompressedBytes),
	)
	importer := curriculum.NewImporter(deps.store,
		curriculum.WithCodec(codec),
		curriculum.WithImportEvents(deps.events),
		curriculum.WithAssetDir(cfg.Import.AssetDir),
	)

	c, err := importer.ImportFile(ctx, path, opts.replace)
	if err != nil {
		return fmt.Errorf("import %s: %w", opts.source, err)
	}
	fmt.Fprintf(stdout, "imported %q (%s): %d topics\n", c.Name, c.ID, len(c.Topics))

	if len(opts.docs) == 0 && opts.reportPath == "" && !opts.showContext {
		return nil
	}

	engine := curriculum.NewEngine(curriculum.EngineConfig{
		Store:    deps.store,
		Embedder: deps.embedder,
		Events:   deps.events,
	})
	if err := engine.Activate(ctx, c.ID); err != nil {
		return err
	}

	topic, err := pickTopic(engine.Topics(), opts.topic)
	if err != nil {
		return err
	}

	if len(opts.docs) > 0 {
		proc := docproc.NewProcessor(docproc.Config{
			Embedder:         deps.embedder,
			Generator:        deps.generator,
			MaxChunkChars:    cfg.Docs.MaxChunkChars,
			SummaryMaxChars:  cfg.Docs.SummaryMaxChars,
			EmbedConcurrency: cfg.Docs.EmbedConcurrency,
		})
		for _, p := range opts.docs {
			doc, err := proc.ProcessFile(ctx, p)
			if err != nil {
				return fmt.Errorf("process %s: %w", p, err)
			}
			if err := engine.AttachDocument(ctx, topic.ID, doc); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "attached %q to %q: %d chunks\n", doc.Title, topic.Title, len(doc.Chunks))
		}
	}

	if opts.showContext {
		text, err := engine.ContextForTopic(ctx, topic.ID, cfg.Context.TokenBudget)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, text)
	}

	if opts.reportPath != "" {
		active, _ := engine.Active()
		if err := writeReport(opts.reportPath, active); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote progress report %s\n", opts.reportPath)
	}
	return nil
}

// pickTopic matches want against source ids first, then titles.
func pickTopic(topics []*curriculum.Topic, want string) (*curriculum.Topic, error) {
	if len(topics) == 0 {
		return nil, errors.New("curriculum has no topics")
	}
	if want == "" {
		return topics[0], nil
	}
	for _, t := range topics {
		if t.SourceID == want {
			return t, nil
		}
	}
	for _, t := range topics {
		if strings.EqualFold(t.Title, want) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", curriculum.ErrTopicNotFound, want)
}

func writeReport(path string, c *curriculum.Curriculum) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return report.WriteProgressWorkbook(f, c)
}
