package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"flowkit/internal/schema"
)

var ErrUnsupportedInput = errors.New("unsupported vector store input")

// DefaultK is the number of documents a retriever returns when search options omit k.
const DefaultK = 4

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]schema.Document, error)
}

// Searcher is implemented by every vector store backend.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int, filter map[string]any) ([]schema.Document, error)
}

// SearchOptions are the retriever defaults taken from a component's search kwargs.
type SearchOptions struct {
	K              int            `mapstructure:"k" json:"k"`
	Filter         map[string]any `mapstructure:"filter" json:"filter,omitempty"`
	ScoreThreshold *float64       `mapstructure:"score_threshold" json:"score_threshold,omitempty"`
}

func (o SearchOptions) limit() int {
	if o.K <= 0 {
		return DefaultK
	}
	return o.K
}

// ToDocuments converts component inputs into documents. Converters are
// converted once each in order; documents pass through unchanged. Any other
// item fails the whole call with ErrUnsupportedInput instead of being
// appended as is.
func ToDocuments(inputs []any) ([]schema.Document, error) {
	docs := make([]schema.Document, 0, len(inputs))
	for i, in := range inputs {
		switch v := in.(type) {
		case schema.DocumentConverter:
			docs = append(docs, v.ToDocument())
		case schema.Document:
			docs = append(docs, v)
		case *schema.Document:
			docs = append(docs, *v)
		default:
			return nil, fmt.Errorf("%w: item %d has type %T", ErrUnsupportedInput, i, in)
		}
	}
	return docs, nil
}

// Texts returns the page contents and metadata of docs as parallel slices.
func Texts(docs []schema.Document) ([]string, []map[string]any) {
	texts := make([]string, len(docs))
	metas := make([]map[string]any, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
		metas[i] = d.Metadata
		if metas[i] == nil {
			metas[i] = map[string]any{}
		}
	}
	return texts, metas
}

type StoreRetriever struct {
	store Searcher
	opts  SearchOptions
	log   *QueryLogger
}

func NewRetriever(store Searcher, opts SearchOptions) *StoreRetriever {
	return &StoreRetriever{store: store, opts: opts}
}

// WithQueryLogger attaches a query log to the retriever.
func (r *StoreRetriever) WithQueryLogger(l *QueryLogger) *StoreRetriever {
	r.log = l
	return r
}

func (r *StoreRetriever) Options() SearchOptions {
	return r.opts
}

func (r *StoreRetriever) Store() Searcher {
	return r.store
}

func (r *StoreRetriever) Retrieve(ctx context.Context, query string) ([]schema.Document, error) {
	done := r.log.start(ctx, query)
	docs, err := r.store.SimilaritySearch(ctx, query, r.opts.limit(), r.opts.Filter)
	if err != nil {
		return nil, err
	}
	if r.opts.ScoreThreshold != nil {
		docs = filterByScore(docs, *r.opts.ScoreThreshold)
	}
	done(len(docs))
	return docs, nil
}

// ScoreKey is the metadata key backends use to report similarity.
const ScoreKey = "similarity"

func filterByScore(docs []schema.Document, threshold float64) []schema.Document {
	kept := docs[:0]
	for _, d := range docs {
		score, ok := d.Metadata[ScoreKey].(float64)
		if ok && score < threshold {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}
