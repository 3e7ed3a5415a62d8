// Package surreal provides a SurrealDB-backed vector store with
// auto-reconnect support.
package surreal

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"askvid/internal/vectorstore"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
	// Dimension is the embedding dimension for the HNSW index.
	Dimension int
}

// Store implements vectorstore.Store on SurrealDB. Transcript chunks
// live in one table, partitioned by video ID, with an HNSW cosine
// index over the embeddings.
type Store struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore connects to SurrealDB with an auto-reconnecting WebSocket
// and initializes the chunk schema.
func NewStore(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	var sdkLogger logger.Logger
	if log != nil {
		sdkLogger = logger.New(log.Handler())
	} else {
		sdkLogger = logger.New(slog.Default().Handler())
	}

	// surrealcbor handles SurrealDB custom CBOR tags
	codec := surrealcbor.New()

	// gorillaws requires the base URL without the /rpc suffix (it adds
	// /rpc internally)
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	if cfg.AuthLevel == "database" {
		_, err = db.SignIn(ctx, surrealdb.Auth{
			Namespace: cfg.Namespace,
			Database:  cfg.Database,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
	} else {
		_, err = db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	s := &Store{conn: conn, db: db, cfg: cfg, logger: sdkLogger}
	if err := s.initSchema(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	sdkLogger.Info("SurrealDB store ready")
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	dim := s.cfg.Dimension
	if dim <= 0 {
		dim = 1536
	}
	_, err := surrealdb.Query[any](ctx, s.db, fmt.Sprintf(schemaSQL, dim), nil)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Upsert writes items keyed by their deterministic IDs, so re-indexing
// a video overwrites its chunks in place.
func (s *Store) Upsert(ctx context.Context, namespace string, items []vectorstore.Item) error {
	if namespace == "" {
		return fmt.Errorf("namespace required")
	}

	for _, item := range items {
		_, err := surrealdb.Query[any](ctx, s.db, `
			UPSERT type::record("chunk", $id) SET
				video_id = $video_id,
				text = $text,
				metadata = $metadata,
				embedding = $embedding
		`, map[string]any{
			"id":        item.ID,
			"video_id":  namespace,
			"text":      item.Text,
			"metadata":  item.Metadata,
			"embedding": item.Vector,
		})
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", item.ID, err)
		}
	}
	return nil
}

// queryRow is the wire shape of a similarity query hit.
type queryRow struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Query runs a KNN search over the video's chunks. HNSW with ef=40 for
// better recall.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, k int) ([]vectorstore.Result, error) {
	if k <= 0 {
		k = 4
	}

	exists, err := s.NamespaceExists(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("namespace %q does not exist", namespace)
	}

	sql := fmt.Sprintf(`
		SELECT text, metadata, vector::similarity::cosine(embedding, $vec) AS score
		FROM chunk
		WHERE video_id = $video_id AND embedding <|%d,40|> $vec
		ORDER BY score DESC
	`, k)

	results, err := surrealdb.Query[[]queryRow](ctx, s.db, sql, map[string]any{
		"video_id": namespace,
		"vec":      vector,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []vectorstore.Result{}, nil
	}

	rows := (*results)[0].Result
	out := make([]vectorstore.Result, 0, len(rows))
	for _, row := range rows {
		score := (row.Score + 1) / 2 // cosine [-1,1] -> [0,1]
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		out = append(out, vectorstore.Result{
			Text:     row.Text,
			Metadata: row.Metadata,
			Score:    score,
		})
	}
	return out, nil
}

type countRow struct {
	Count int `json:"count"`
}

// NamespaceExists reports whether any chunk of the video exists.
func (s *Store) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	count, err := s.Count(ctx, namespace)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of stored chunks for a video.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	results, err := surrealdb.Query[[]countRow](ctx, s.db, `
		SELECT count() AS count FROM chunk WHERE video_id = $video_id GROUP ALL
	`, map[string]any{"video_id": namespace})
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// Close closes the SurrealDB connection.
func (s *Store) Close(ctx context.Context) error {
	s.logger.Info("closing SurrealDB connection")
	return s.conn.Close(ctx)
}

// WipeData deletes all chunks. Use for testing only.
func (s *Store) WipeData(ctx context.Context) error {
	s.logger.Warn("wiping all chunk data")
	_, err := surrealdb.Query[any](ctx, s.db, "DELETE chunk", nil)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
