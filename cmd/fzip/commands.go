package main

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"github.com/egonelbre/femtozip/fz"
)

// fileList is a fz.DocumentList backed by files that are read on demand.
type fileList []string

func (l fileList) Len() int { return len(l) }

func (l fileList) Get(i int) ([]byte, error) {
	data, err := os.ReadFile(l[i])
	return data, errors.Wrapf(err, "reading %s", l[i])
}

// inputFiles returns the sorted, deduplicated file arguments.
func inputFiles(ctx *cli.Context) ([]string, error) {
	files := slices.Clone(ctx.Args().Slice())
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func runBuild(ctx *cli.Context, stderr io.Writer) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := newLogger(stderr, cfg.Verbose)

	if cfg.Model == "" {
		return errors.New("missing --model output path")
	}
	files, err := inputFiles(ctx)
	if err != nil {
		return err
	}

	var dictionary []byte
	if cfg.Dictionary != "" {
		dictionary, err = os.ReadFile(cfg.Dictionary)
		if err != nil {
			return errors.Wrap(err, "reading dictionary")
		}
	}

	m, err := fz.Build(dictionary, fileList(files), fz.Options{
		Strategy:          cfg.Strategy,
		Logger:            log,
		MaxModelDocuments: cfg.MaxDocuments,
	})
	if err != nil {
		return errors.Wrap(err, "building model")
	}
	if err := m.SaveFile(cfg.Model); err != nil {
		return errors.Wrapf(err, "saving model %s", cfg.Model)
	}
	log.Info("Saved model", "path", cfg.Model, "strategy", m.Strategy(), "documents", len(files))
	return nil
}

func runCompress(ctx *cli.Context, stderr io.Writer) error {
	return transform(ctx, stderr, "Compressed", func(m *fz.Model, suffix, path string) (string, []byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, errors.Wrapf(err, "reading %s", path)
		}
		out, err := m.Compress(data)
		if err != nil {
			return "", nil, errors.Wrapf(err, "compressing %s", path)
		}
		return path + suffix, out, nil
	})
}

func runDecompress(ctx *cli.Context, stderr io.Writer) error {
	return transform(ctx, stderr, "Decompressed", func(m *fz.Model, suffix, path string) (string, []byte, error) {
		target, ok := strings.CutSuffix(path, suffix)
		if !ok || target == "" {
			return "", nil, errors.Errorf("%s does not have suffix %s", path, suffix)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, errors.Wrapf(err, "reading %s", path)
		}
		out, err := m.Decompress(data)
		if err != nil {
			return "", nil, errors.Wrapf(err, "decompressing %s", path)
		}
		return target, out, nil
	})
}

type transformFunc func(m *fz.Model, suffix, path string) (target string, out []byte, err error)

// transform applies fn to every input file with the configured
// parallelism and writes the results.
func transform(ctx *cli.Context, stderr io.Writer, verb string, fn transformFunc) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := newLogger(stderr, cfg.Verbose)

	if cfg.Model == "" {
		return errors.New("missing --model")
	}
	files, err := inputFiles(ctx)
	if err != nil {
		return err
	}
	m, err := fz.LoadFile(cfg.Model)
	if err != nil {
		return errors.Wrapf(err, "loading model %s", cfg.Model)
	}

	var written atomic.Int64
	err = forEach(ctx.Context, cfg.Parallelism, files, func(path string) error {
		target, out, err := fn(m, cfg.Suffix, path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, out, 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", target)
		}
		written.Add(int64(len(out)))
		log.Debug(verb, "file", path, "output", target, "size", len(out))
		return nil
	})
	if err != nil {
		return err
	}
	log.Info(verb+" files", "files", len(files), "bytes", written.Load(), slog.String("model", cfg.Model))
	return nil
}

// forEach calls fn for every path, at most limit at a time, and returns the
// first error.
func forEach(ctx context.Context, limit int, paths []string, fn func(path string) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, path := range paths {
		path := path
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(path) })
	}
	return g.Wait()
}
