package fz

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"github.com/egonelbre/femtozip/model"
)

// Strategy names accepted by Options.
const (
	StrategyFrequency = "frequency"
	StrategyHuffman   = "huffman"
	StrategyOptimal   = "optimal"
)

// Options configures model building.
type Options struct {
	// Strategy is one of StrategyFrequency, StrategyHuffman or
	// StrategyOptimal. Empty means StrategyOptimal.
	Strategy string
	// Logger receives build statistics. Defaults to slog.Default().
	Logger *slog.Logger
	// MaxModelDocuments limits how many documents are used for training.
	// Zero means all of them.
	MaxModelDocuments int
}

func (opts Options) logger() *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.Default()
}

// DocumentList is a sample of documents. Get may be called concurrently.
type DocumentList interface {
	Len() int
	Get(i int) ([]byte, error)
}

// Documents is an in-memory DocumentList.
type Documents [][]byte

func (d Documents) Len() int { return len(d) }

func (d Documents) Get(i int) ([]byte, error) { return d[i], nil }

// interleaved selects every other document of docs, starting at the first
// when even is set and at the second otherwise.
type interleaved struct {
	docs DocumentList
	even bool
}

func (l interleaved) Len() int {
	if l.even {
		return (l.docs.Len() + 1) / 2
	}
	return l.docs.Len() / 2
}

func (l interleaved) Get(i int) ([]byte, error) {
	if l.even {
		return l.docs.Get(2 * i)
	}
	return l.docs.Get(2*i + 1)
}

type prefix struct {
	docs DocumentList
	n    int
}

func (l prefix) Len() int                  { return min(l.n, l.docs.Len()) }
func (l prefix) Get(i int) ([]byte, error) { return l.docs.Get(i) }

// Build trains a model on docs using dictionary as the shared dictionary.
func Build(dictionary []byte, docs DocumentList, opts Options) (*Model, error) {
	switch opts.Strategy {
	case "", StrategyOptimal:
		return BuildOptimal(dictionary, docs, opts)
	}
	strategy, err := model.ParseStrategy(opts.Strategy)
	if err != nil {
		return nil, fmt.Errorf("fz: %w", err)
	}
	if opts.MaxModelDocuments > 0 {
		docs = prefix{docs: docs, n: opts.MaxModelDocuments}
	}

	log := opts.logger()
	start := time.Now()
	encoding, err := train(context.Background(), strategy, dictionary, docs)
	if err != nil {
		return nil, err
	}
	log.Info("Built compression model", "strategy", strategy, "documents", docs.Len(),
		"dictionary", len(dictionary), "elapsed", time.Since(start))
	return newModel(dictionary, encoding), nil
}

// BuildOptimal trains every strategy on the odd-indexed documents, measures
// the compressed size of the even-indexed documents and retrains the
// smallest one on all documents. Ties go to the frequency strategy.
func BuildOptimal(dictionary []byte, docs DocumentList, opts Options) (*Model, error) {
	if opts.MaxModelDocuments > 0 {
		docs = prefix{docs: docs, n: opts.MaxModelDocuments}
	}
	log := opts.logger()
	start := time.Now()

	candidates := []model.Strategy{model.Frequency, model.Huffman}
	sizes := make([]int, len(candidates))

	training := interleaved{docs: docs, even: false}
	measuring := interleaved{docs: docs, even: true}

	g, ctx := errgroup.WithContext(context.Background())
	for i, strategy := range candidates {
		i, strategy := i, strategy
		g.Go(func() error {
			encoding, err := train(ctx, strategy, dictionary, training)
			if err != nil {
				return err
			}
			sizes[i], err = measure(ctx, newModel(dictionary, encoding), measuring)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i, size := range sizes {
		log.Debug("Measured candidate model", "strategy", candidates[i], "size", size,
			"documents", measuring.Len())
		if size < sizes[best] {
			best = i
		}
	}

	encoding, err := train(context.Background(), candidates[best], dictionary, docs)
	if err != nil {
		return nil, err
	}
	log.Info("Built compression model", "strategy", candidates[best], "documents", docs.Len(),
		"dictionary", len(dictionary), "elapsed", time.Since(start))
	return newModel(dictionary, encoding), nil
}

func train(ctx context.Context, strategy model.Strategy, dictionary []byte, docs DocumentList) (*model.TripleNibble, error) {
	encoding, err := model.New(strategy)
	if err != nil {
		return nil, err
	}
	if err := encoding.BeginModelConstruction(dictionary); err != nil {
		return nil, err
	}
	for i := 0; i < docs.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := docs.Get(i)
		if err != nil {
			return nil, fmt.Errorf("fz: document %d: %w", i, err)
		}
		if err := encoding.AddDocumentToModel(doc); err != nil {
			return nil, fmt.Errorf("fz: document %d: %w", i, err)
		}
	}
	if err := encoding.EndModelConstruction(); err != nil {
		return nil, err
	}
	return encoding, nil
}

// measure returns the total compressed size of docs.
func measure(ctx context.Context, m *Model, docs DocumentList) (int, error) {
	total := 0
	for i := 0; i < docs.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		doc, err := docs.Get(i)
		if err != nil {
			return 0, fmt.Errorf("fz: document %d: %w", i, err)
		}
		out, err := m.Compress(doc)
		if err != nil {
			return 0, err
		}
		total += len(out)
	}
	return total, nil
}
