// Command docctl runs the ingestion pipeline in-process against local storage
// and an in-memory index. It is meant for trying engines and batches of files
// without starting the server.
package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/abiiranathan/goflag"
	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"

	"docvault/internal/app"
	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/service"
)

type options struct {
	StorageRoot string
	Verbose     bool

	File      string
	Directory string
	Tags      string
	Folder    string
	Engine    string
}

var (
	okColor   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failColor = color.New(color.FgRed, color.Bold).SprintFunc()
	dimColor  = color.New(color.FgHiBlack).SprintFunc()
	nameColor = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func main() {
	cfg := config.Load()
	opts := &options{StorageRoot: cfg.Storage.LocalRoot}

	ctx := goflag.NewContext()
	ctx.AddFlag(goflag.FlagString, "storage", "s", &opts.StorageRoot, "Directory for stored originals and thumbnails", false)
	ctx.AddFlag(goflag.FlagBool, "verbose", "v", &opts.Verbose, "Print pipeline logs to stderr", false)

	ctx.AddSubCommand("engines", "List registered OCR engines and whether they can run", func() {
		run(cfg, opts, listEngines)
	})

	ctx.AddSubCommand("ingest", "Ingest one file (or ZIP archive), wait for OCR and print the text", func() {
		run(cfg, opts, ingestFile)
	}).AddFlag(goflag.FlagFilePath, "file", "f", &opts.File, "The file to ingest", true).
		AddFlag(goflag.FlagString, "tags", "t", &opts.Tags, "Comma separated tag names", false).
		AddFlag(goflag.FlagString, "folder", "d", &opts.Folder, "Destination folder path", false).
		AddFlag(goflag.FlagString, "engine", "e", &opts.Engine, "OCR engine (default from OCR_DEFAULT_ENGINE)", false)

	ctx.AddSubCommand("folders", "Ingest a directory tree and print the resulting folders", func() {
		run(cfg, opts, ingestTree)
	}).AddFlag(goflag.FlagDirPath, "directory", "d", &opts.Directory, "The directory to ingest", true).
		AddFlag(goflag.FlagString, "engine", "e", &opts.Engine, "OCR engine (default from OCR_DEFAULT_ENGINE)", false)

	subcmd, err := ctx.Parse(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, failColor("error:"), err)
		os.Exit(2)
	}
	if subcmd == nil {
		ctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}
	subcmd.Handler()
}

type command func(ctx context.Context, a *app.App, opts *options) error

// run builds an in-memory pipeline, runs cmd and exits non-zero on failure.
func run(cfg *config.AppConfig, opts *options, cmd command) {
	cfg.IndexBackend = app.IndexMemory
	cfg.Storage.Type = config.StorageLocal
	cfg.Storage.LocalRoot = opts.StorageRoot

	var logOut io.Writer = io.Discard
	if opts.Verbose {
		logOut = os.Stderr
	}
	log := logging.New(logOut, cfg.Location(), "docctl")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, failColor("error:"), err)
		os.Exit(1)
	}
	if err := cmd(ctx, a, opts); err != nil {
		fmt.Fprintln(os.Stderr, failColor("error:"), err)
		os.Exit(1)
	}
}

func listEngines(ctx context.Context, a *app.App, _ *options) error {
	def := a.Settings.Get().DefaultOCREngine
	for _, e := range a.System.Engines(ctx) {
		status := okColor("available")
		if !e.Available {
			status = failColor("unavailable")
		}
		marker := " "
		if e.ID == def {
			marker = "*"
		}
		fmt.Printf("%s %-10s %-12s %s\n", marker, nameColor(e.ID), status, dimColor(e.Version))
	}
	return nil
}

func ingestFile(ctx context.Context, a *app.App, opts *options) error {
	res, err := ingestPath(ctx, a, opts.File, opts.Tags, opts.Folder, opts.Engine)
	if err != nil {
		return err
	}
	// Close drains the pool, so every OCR run has reached a terminal state.
	if err := a.Close(ctx); err != nil {
		return err
	}

	for _, d := range res.Documents {
		doc, err := a.Documents.Get(ctx, d.ID)
		if err != nil {
			return err
		}
		printDocument(doc)
	}
	return nil
}

func ingestTree(ctx context.Context, a *app.App, opts *options) error {
	root := opts.Directory
	var failed int
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		folder := "/"
		if rel != "." {
			folder = "/" + filepath.ToSlash(rel)
		}

		res, err := ingestPath(ctx, a, p, "", folder, opts.Engine)
		if err != nil {
			failed++
			fmt.Printf("%s %s %s\n", failColor("skip"), p, dimColor(err.Error()))
			return nil
		}
		fmt.Printf("%s %s -> %s (%d)\n", okColor("ok"), p, model.NormalizeFolderPath(folder), res.Total)
		return nil
	})
	if err != nil {
		return err
	}
	if err := a.Close(ctx); err != nil {
		return err
	}

	folders, err := a.Documents.Folders(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(folderTree(folders))

	info, err := a.Documents.StorageInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d documents, %d bytes, %d skipped\n", info.TotalDocuments, info.TotalSize, failed)
	for _, status := range []model.OCRStatus{model.OCRStatusCompleted, model.OCRStatusFailed} {
		fmt.Printf("  %-10s %d\n", status, info.ByStatus[status])
	}
	return nil
}

func ingestPath(ctx context.Context, a *app.App, p, tags, folder, engine string) (*service.IngestResult, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return a.Documents.Ingest(ctx, service.IngestRequest{
		File:       f,
		Size:       st.Size(),
		Filename:   filepath.Base(p),
		Tags:       tags,
		FolderPath: folder,
		OCREngine:  engine,
	})
}

func printDocument(doc *model.Document) {
	status := okColor(string(doc.OCRStatus))
	if doc.OCRStatus != model.OCRStatusCompleted {
		status = failColor(string(doc.OCRStatus))
	}
	fmt.Printf("%s %s %s\n", nameColor(doc.Filename), status, dimColor(doc.ID))
	if doc.OCREngine != "" {
		fmt.Printf("  engine: %s %s\n", doc.OCREngine, doc.OCREngineVersion)
	}
	if msg, ok := doc.Metadata["error"].(string); ok {
		fmt.Printf("  error:  %s\n", msg)
	}
	if text := strings.TrimSpace(doc.OCRText); text != "" {
		fmt.Println()
		fmt.Println(text)
		fmt.Println()
	}
}
