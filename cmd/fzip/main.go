// Command fzip builds femtozip models from sample documents and compresses
// and decompresses files with them.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log debug output",
	}
	parallelismFlag = &cli.IntFlag{
		Name:  "parallelism",
		Usage: "number of files processed concurrently",
		Value: 4,
	}

	strategyFlag = &cli.StringFlag{
		Name:  "strategy",
		Usage: "encoding strategy: frequency, huffman or optimal",
		Value: "optimal",
	}
	dictionaryFlag = &cli.StringFlag{
		Name:  "dict",
		Usage: "dictionary file",
	}
	modelFlag = &cli.StringFlag{
		Name:  "model",
		Usage: "model file",
	}
	suffixFlag = &cli.StringFlag{
		Name:  "suffix",
		Usage: "suffix of compressed files",
		Value: ".fz",
	}
	maxDocumentsFlag = &cli.IntFlag{
		Name:  "max-documents",
		Usage: "maximum number of documents used for training (0 = all)",
	}
)

func newApp(stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "fzip",
		Usage:     "compress small documents with a trained model",
		Writer:    stderr,
		ErrWriter: stderr,
		Flags:     []cli.Flag{configFlag, verboseFlag, parallelismFlag},
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "train a model on sample documents",
				ArgsUsage: "DOCUMENT...",
				Flags:     []cli.Flag{dictionaryFlag, modelFlag, strategyFlag, maxDocumentsFlag},
				Action:    func(ctx *cli.Context) error { return runBuild(ctx, stderr) },
			},
			{
				Name:      "compress",
				Usage:     "compress files, adding the suffix",
				ArgsUsage: "FILE...",
				Flags:     []cli.Flag{modelFlag, suffixFlag},
				Action:    func(ctx *cli.Context) error { return runCompress(ctx, stderr) },
			},
			{
				Name:      "decompress",
				Usage:     "decompress files, removing the suffix",
				ArgsUsage: "FILE...",
				Flags:     []cli.Flag{modelFlag, suffixFlag},
				Action:    func(ctx *cli.Context) error { return runDecompress(ctx, stderr) },
			},
		},
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := newApp(os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
