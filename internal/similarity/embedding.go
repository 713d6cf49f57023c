// internal/similarity/embedding.go
//
// Embedding-backed Gateway implementation.
// Scores a (guess, secret) pair as the cosine similarity of their word
// embeddings, fetched from an OpenAI-compatible embeddings endpoint.
//
// Notes:
//   - Vectors are cached in memory with a TTL; words repeat heavily
//     within a session so most lookups never hit the network.
//   - Transient HTTP failures (timeouts, 429, 5xx) are retried a few
//     times; after that the error degrades to ErrProviderUnavailable.

package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTTL     = 24 * time.Hour
	maxAttempts    = 3
)

// EmbeddingClient fetches word embeddings over HTTP and scores pairs by
// cosine similarity. Safe for concurrent use.
type EmbeddingClient struct {
	apiKey  string
	baseURL string
	model   string
	httpc   *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	vec []float64
	at  time.Time
}

// Option configures an EmbeddingClient.
type Option func(*EmbeddingClient)

// WithBaseURL points the client at a non-default (e.g. proxy) endpoint.
func WithBaseURL(u string) Option { return func(c *EmbeddingClient) { c.baseURL = u } }

// WithModel overrides the embedding model name.
func WithModel(m string) Option { return func(c *EmbeddingClient) { c.model = m } }

// WithCacheTTL overrides how long cached vectors stay valid.
func WithCacheTTL(d time.Duration) Option { return func(c *EmbeddingClient) { c.ttl = d } }

// NewEmbeddingClient constructs a Gateway backed by an embeddings API.
func NewEmbeddingClient(apiKey string, opts ...Option) *EmbeddingClient {
	c := &EmbeddingClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string]cacheEntry),
		ttl:     defaultTTL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Score embeds both words and returns their cosine similarity.
func (c *EmbeddingClient) Score(ctx context.Context, guess, secret string) (float64, error) {
	gv, err := c.embed(ctx, Normalize(guess))
	if err != nil {
		return 0, err
	}
	sv, err := c.embed(ctx, Normalize(secret))
	if err != nil {
		return 0, err
	}
	return cosine(gv, sv), nil
}

func (c *EmbeddingClient) cached(word string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[word]
	if !ok || time.Since(e.at) > c.ttl {
		return nil, false
	}
	return e.vec, true
}

func (c *EmbeddingClient) store(word string, vec []float64) {
	c.mu.Lock()
	c.cache[word] = cacheEntry{vec: vec, at: time.Now()}
	c.mu.Unlock()
}

// embed returns the embedding vector for a word, consulting the cache
// first and retrying transient provider failures.
func (c *EmbeddingClient) embed(ctx context.Context, word string) ([]float64, error) {
	if vec, ok := c.cached(word); ok {
		return vec, nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		vec, err := c.fetch(ctx, word)
		if err == nil {
			c.store(word, vec)
			return vec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvider, ctx.Err())
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("embedding fetch failed")
	}
	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

type embeddingReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingRes struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *EmbeddingClient) fetch(ctx context.Context, word string) ([]float64, error) {
	body, err := json.Marshal(embeddingReq{Model: c.model, Input: word})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProvider, res.StatusCode)
	}
	var out embeddingRes
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrProvider)
	}
	return out.Data[0].Embedding, nil
}

// cosine returns the cosine similarity of two vectors, clamped to [0, 1].
func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
