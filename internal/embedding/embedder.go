package embedding

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"ragindex/internal/domain"
)

// Mode tells a provider whether it is embedding stored documents or a search
// query. Providers that do not distinguish the two ignore it.
type Mode int

const (
	ModeDocument Mode = iota
	ModeQuery
)

func (m Mode) String() string {
	if m == ModeQuery {
		return "query"
	}
	return "document"
}

// DefaultBatchSize is the number of texts sent per provider request.
const DefaultBatchSize = 100

// Provider is a backend that turns a batch of texts into vectors.
type Provider interface {
	Model() string
	EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
}

// fallbackProvider is implemented by providers that produce stand-in vectors
// rather than real semantic embeddings.
type fallbackProvider interface {
	Fallback() bool
}

// Options configures a Client.
type Options struct {
	Dimension int
	BatchSize int
	// Timeout bounds a whole EmbedDocuments or EmbedQuery call. Zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client batches calls to a Provider and validates what comes back.
type Client struct {
	provider  Provider
	dimension int
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
}

func NewClient(p Provider, opts Options) (*Client, error) {
	if p == nil {
		return nil, errors.New("embedding provider is nil")
	}
	if opts.Dimension <= 0 {
		return nil, domain.Validationf("embedding dimension must be positive, got %d", opts.Dimension)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		provider:  p,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}, nil
}

// Model returns the provider's model identifier.
func (c *Client) Model() string { return c.provider.Model() }

// Dimension returns the length of every produced vector.
func (c *Client) Dimension() int { return c.dimension }

// Fallback reports whether vectors come from a stand-in provider.
func (c *Client) Fallback() bool {
	fp, ok := c.provider.(fallbackProvider)
	return ok && fp.Fallback()
}

// EmbedDocuments embeds texts in document mode, one vector per input in the
// same order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if c.Fallback() {
		c.logger.Warn("no embedding credential configured, using fallback vectors",
			slog.String("model", c.Model()), slog.Int("texts", len(texts)))
	}

	batches := (len(texts) + c.batchSize - 1) / c.batchSize
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := min(i+c.batchSize, len(texts))
		vecs, err := c.call(ctx, texts[i:end], ModeDocument)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("embedded batch",
			slog.Int("batch", i/c.batchSize+1), slog.Int("batches", batches), slog.Int("size", end-i))
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single search query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	vecs, err := c.call(ctx, []string{text}, ModeQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) call(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	vecs, err := c.provider.EmbedBatch(ctx, texts, mode)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.Providerf(ctxErr, "%s embedding of %d texts aborted", mode, len(texts))
		}
		if errors.Is(err, domain.ErrProvider) {
			return nil, err
		}
		return nil, domain.Providerf(err, "%s embedding of %d texts failed", mode, len(texts))
	}
	if len(vecs) != len(texts) {
		return nil, domain.Providerf(nil, "provider returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != c.dimension {
			return nil, domain.Providerf(nil, "vector %d has dimension %d, want %d", i, len(v), c.dimension)
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, domain.Providerf(nil, "vector %d contains a non-finite value", i)
			}
		}
	}
	return vecs, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
