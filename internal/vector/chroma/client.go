package chroma

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	chhttp "github.com/amikos-tech/chroma-go/pkg/commons/http"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/rs/zerolog/log"
	"github.com/thebtf/chroma-backfill/internal/vector"
)

const (
	defaultHost     = "127.0.0.1"
	defaultPort     = 8000
	defaultTenant   = "default_tenant"
	defaultDatabase = "default_database"
	defaultTimeout  = 30 * time.Second
)

// ErrUnreachable indicates the Chroma server could not be contacted.
var ErrUnreachable = errors.New("chroma: server unreachable")

// APIError is returned when Chroma answers with an error status.
type APIError struct {
	Op     string
	Body   string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chroma: %s: HTTP %d: %s", e.Op, e.Status, e.Body)
}

// Embedder computes embeddings for documents before they are added.
// github.com/tmc/langchaingo/embeddings.Embedder satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds Chroma client configuration.
type Config struct {
	Embedder Embedder      // Optional; nil uses the all-MiniLM-L6-v2 ONNX default
	Host     string        // Server host (default: 127.0.0.1)
	Tenant   string        // Tenant (default: default_tenant)
	Database string        // Database (default: default_database)
	APIKey   string        // Sent as a bearer token when set
	Port     int           // Server port (default: 8000)
	Timeout  time.Duration // Per-request timeout (default: 30s)
	SSL      bool          // Use https
}

// Client talks to a Chroma server through the chroma-go v2 client.
type Client struct {
	api      chromago.Client
	embedder Embedder
	baseURL  string
}

// NewClient creates a Chroma client. It does not contact the server.
func NewClient(cfg Config) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = defaultTenant
	}
	database := cfg.Database
	if database == "" {
		database = defaultDatabase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))

	opts := []chromago.ClientOption{
		chromago.WithBaseURL(baseURL),
		chromago.WithDatabaseAndTenant(database, tenant),
		chromago.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.APIKey != "" {
		opts = append(opts, chromago.WithAuth(
			chromago.NewTokenAuthCredentialsProvider(cfg.APIKey, chromago.AuthorizationTokenHeader)))
	}

	api, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("chroma: create client: %w", err)
	}

	return &Client{api: api, embedder: cfg.Embedder, baseURL: baseURL}, nil
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections and the collections' embedding functions.
func (c *Client) Close() error {
	return c.api.Close()
}

// Heartbeat checks that the server is alive.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.wrapError(ctx, "heartbeat", c.api.Heartbeat(ctx))
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	version, err := c.api.GetVersion(ctx)
	if err != nil {
		return "", c.wrapError(ctx, "version", err)
	}
	return version, nil
}

// GetOrCreateCollection returns the named collection, creating it if needed.
// Without a configured Embedder the collection embeds with chroma-go's
// default all-MiniLM-L6-v2 function, downloading the model on first use.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (*Collection, error) {
	var opts []chromago.CreateCollectionOption
	if c.embedder != nil {
		opts = append(opts, chromago.WithEmbeddingFunctionCreate(embeddingFunction{embedder: c.embedder}))
	}

	coll, err := c.api.GetOrCreateCollection(ctx, name, opts...)
	if err != nil {
		return nil, c.wrapError(ctx, "get or create collection", err)
	}
	if coll.ID() == "" {
		return nil, fmt.Errorf("chroma: collection %q returned without id", name)
	}

	log.Debug().Str("collection", name).Str("id", coll.ID()).Msg("Collection ready")

	return &Collection{coll: coll, client: c}, nil
}

// wrapError maps chroma-go failures onto ErrUnreachable and *APIError.
// A ChromaError without a status code means no HTTP response arrived.
func (c *Client) wrapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("chroma: %s: %w", op, ctxErr)
	}

	var chErr *chhttp.ChromaError
	if errors.As(err, &chErr) {
		if chErr.ErrorCode == 0 {
			return fmt.Errorf("%w: %s: %s: %s", ErrUnreachable, c.baseURL, op, chErr.Message)
		}
		return &APIError{Op: op, Status: chErr.ErrorCode, Body: chErr.Message}
	}
	return fmt.Errorf("chroma: %s: %w", op, err)
}

// Collection is a handle to one Chroma collection.
type Collection struct {
	coll   chromago.Collection
	client *Client
}

var _ vector.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.coll.Name()
}

// ID returns the server-assigned collection id.
func (c *Collection) ID() string {
	return c.coll.ID()
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	n, err := c.coll.Count(ctx)
	if err != nil {
		return 0, c.client.wrapError(ctx, "count", err)
	}
	return int64(n), nil
}

// GetIDs returns a page of document ids. chroma-go requires one include,
// so metadatas are requested and discarded.
func (c *Collection) GetIDs(ctx context.Context, limit, offset int) ([]string, error) {
	res, err := c.coll.Get(ctx,
		chromago.WithLimitGet(limit),
		chromago.WithOffsetGet(offset),
		chromago.WithIncludeGet(chromago.IncludeMetadatas),
	)
	if err != nil {
		return nil, c.client.wrapError(ctx, "get", err)
	}

	docIDs := res.GetIDs()
	ids := make([]string, len(docIDs))
	for i, id := range docIDs {
		ids[i] = string(id)
	}
	return ids, nil
}

// Add writes documents in one request. Embeddings are computed by the
// collection's embedding function before the request is sent.
func (c *Collection) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]chromago.DocumentID, len(docs))
	texts := make([]string, len(docs))
	metadatas := make([]chromago.DocumentMetadata, len(docs))
	for i, doc := range docs {
		meta, err := chromago.NewDocumentMetadataFromMap(doc.Metadata)
		if err != nil {
			return fmt.Errorf("chroma: add: metadata for %s: %w", doc.ID, err)
		}
		ids[i] = chromago.DocumentID(doc.ID)
		texts[i] = doc.Content
		metadatas[i] = meta
	}

	err := c.coll.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithMetadatas(metadatas...),
	)
	return c.client.wrapError(ctx, "add", err)
}

// embeddingFunction adapts an Embedder to chroma-go.
type embeddingFunction struct {
	embedder Embedder
}

func (f embeddingFunction) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	vectors, err := f.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vectors))
	}

	out := make([]embeddings.Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = embeddings.NewEmbeddingFromFloat32(v)
	}
	return out, nil
}

func (f embeddingFunction) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	out, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
