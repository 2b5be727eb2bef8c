package rankdex

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Embedder turns texts into vectors. Implement it to plug in a custom
// embedding provider instead of the built-in OpenAI-compatible one.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs     []string
	password  string
	keyPrefix string

	embedder   Embedder
	apiKey     string
	baseURL    string
	model      string
	dimensions int

	stages       []Stage
	queryTimeout time.Duration
	maxBatchSize int

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key namespace for documents, indexes and
// stage caches. Default: "rankdex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets a custom text embedding provider. Required for
// vector and embedding stages unless WithEmbeddingAPI is used.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithEmbeddingAPI configures the built-in OpenAI-compatible embedding
// provider.
func WithEmbeddingAPI(apiKey, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.model = model
		c.dimensions = dimensions
	})
}

// WithEmbeddingBaseURL overrides the embedding API endpoint. Use for
// OpenAI-compatible providers.
func WithEmbeddingBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithStages sets the pipeline stage chain. Defaults to
// DefaultStages when the embedding dimensionality is known.
func WithStages(stages ...Stage) Option {
	return optionFunc(func(c *clientConfig) {
		c.stages = stages
	})
}

// WithQueryTimeout bounds one Retrieve call end to end. Default: 10s.
func WithQueryTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryTimeout = d
	})
}

// WithMaxBatchSize sets the maximum number of documents per ingest
// batch. Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
