// Package pgvector は vectorstore.Store の PostgreSQL + pgvector 実装を提供する
//
// セマンティクスはインメモリ実装（infra/memvector）と同一で、コサイン距離演算子
// <=> による近傍検索を行う。コレクションは collection 列で区別する
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/jinford/repochat/internal/core/vectorstore"
)

// DefaultDimension はスキーマ作成時のデフォルトベクトル次元
const DefaultDimension = 1536

// Store は vectorstore.Store の PostgreSQL 実装
type Store struct {
	pool      *pgxpool.Pool
	dimension int

	mu          sync.Mutex
	collections map[string]*Collection
	schemaReady bool
}

// NewStore は新しい Store を作成する。dimension が 0 以下の場合は
// DefaultDimension を使用する
func NewStore(pool *pgxpool.Pool, dimension int) *Store {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Store{
		pool:        pool,
		dimension:   dimension,
		collections: make(map[string]*Collection),
	}
}

// ensureSchema は拡張とテーブルを作成する（プロセスごとに 1 回だけ実行）
func (s *Store) ensureSchema(ctx context.Context) error {
	if s.schemaReady {
		return nil
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS collections (
			name       text PRIMARY KEY,
			repo_id    text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS records (
			collection text NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
			record_id  text NOT NULL,
			embedding  vector(%d) NOT NULL,
			document   text NOT NULL,
			metadata   jsonb NOT NULL,
			PRIMARY KEY (collection, record_id)
		)`, s.dimension),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("スキーマの作成に失敗: %w", err)
		}
	}

	s.schemaReady = true
	return nil
}

// GetOrCreate はコレクションを冪等に取得する
func (s *Store) GetOrCreate(ctx context.Context, repoID string) (vectorstore.Collection, error) {
	name := vectorstore.CollectionName(repoID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO collections (name, repo_id) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, repoID,
	)
	if err != nil {
		return nil, fmt.Errorf("コレクションの作成に失敗: %w", err)
	}

	c := &Collection{pool: s.pool, name: name}
	s.collections[name] = c
	return c, nil
}

// Delete はコレクションと全レコードを削除する（冪等）
func (s *Store) Delete(ctx context.Context, repoID string) error {
	name := vectorstore.CollectionName(repoID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM collections WHERE name = $1`, name); err != nil {
		return fmt.Errorf("コレクションの削除に失敗: %w", err)
	}

	delete(s.collections, name)
	return nil
}

// Collection は vectorstore.Collection の PostgreSQL 実装
type Collection struct {
	pool *pgxpool.Pool
	name string
}

// InsertBatch はレコードを一括追加する
func (c *Collection) InsertBatch(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []vectorstore.Metadata) error {
	if len(ids) != len(embeddings) || len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("%w: ids=%d embeddings=%d documents=%d metadatas=%d",
			vectorstore.ErrLengthMismatch, len(ids), len(embeddings), len(documents), len(metadatas))
	}
	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range ids {
		metadata, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("メタデータのシリアライズに失敗: %w", err)
		}
		batch.Queue(
			`INSERT INTO records (collection, record_id, embedding, document, metadata) VALUES ($1, $2, $3, $4, $5)`,
			c.name, ids[i], pgv.NewVector(embeddings[i]), documents[i], metadata,
		)
	}

	results := c.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range ids {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("レコードの挿入に失敗: %w", err)
		}
	}
	return nil
}

// Query はコサイン距離の昇順で上位 k 件を返す
func (c *Collection) Query(ctx context.Context, embedding []float32, k int) ([]vectorstore.QueryResult, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT document, metadata, embedding <=> $1 AS distance
		 FROM records
		 WHERE collection = $2
		 ORDER BY distance ASC
		 LIMIT $3`,
		pgv.NewVector(embedding), c.name, k,
	)
	if err != nil {
		return nil, fmt.Errorf("近傍検索に失敗: %w", err)
	}
	defer rows.Close()

	results := make([]vectorstore.QueryResult, 0, k)
	for rows.Next() {
		var (
			document string
			metadata []byte
			distance float64
		)
		if err := rows.Scan(&document, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("検索結果の読み取りに失敗: %w", err)
		}

		var meta vectorstore.Metadata
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return nil, fmt.Errorf("メタデータのデシリアライズに失敗: %w", err)
		}

		results = append(results, vectorstore.QueryResult{
			Content:  document,
			Metadata: meta,
			Distance: distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("検索結果の走査に失敗: %w", err)
	}
	return results, nil
}

// Count は格納済みレコード数を返す
func (c *Collection) Count(ctx context.Context) (int, error) {
	var count int
	err := c.pool.QueryRow(ctx, `SELECT count(*) FROM records WHERE collection = $1`, c.name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("レコード数の取得に失敗: %w", err)
	}
	return count, nil
}

// インターフェース実装の確認
var (
	_ vectorstore.Store      = (*Store)(nil)
	_ vectorstore.Collection = (*Collection)(nil)
)
