// Package memvector は vectorstore.Store のインメモリ実装を提供する
//
// コレクションはリポジトリ単位（高々数百〜数千レコード）に閉じるため、
// 近似近傍構造は持たず全件走査のコサイン距離計算で十分という設計判断に基づく
package memvector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/jinford/repochat/internal/core/vectorstore"
)

// Store は vectorstore.Store のインメモリ実装
type Store struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewStore は新しい Store を作成する
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*Collection),
	}
}

// GetOrCreate はコレクションを冪等に取得する
func (s *Store) GetOrCreate(ctx context.Context, repoID string) (vectorstore.Collection, error) {
	name := vectorstore.CollectionName(repoID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	c := &Collection{name: name}
	s.collections[name] = c
	return c, nil
}

// Delete はコレクションを削除する。存在しない場合も何もせず成功する
func (s *Store) Delete(ctx context.Context, repoID string) error {
	name := vectorstore.CollectionName(repoID)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, name)
	return nil
}

// record はコレクション内の 1 レコード
type record struct {
	id        string
	embedding []float32
	document  string
	metadata  vectorstore.Metadata
}

// Collection は vectorstore.Collection のインメモリ実装
type Collection struct {
	mu      sync.RWMutex
	name    string
	records []record
}

// InsertBatch はレコードを一括追加する（追記のみ、upsert なし）
func (c *Collection) InsertBatch(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []vectorstore.Metadata) error {
	if len(ids) != len(embeddings) || len(ids) != len(documents) || len(ids) != len(metadatas) {
		return fmt.Errorf("%w: ids=%d embeddings=%d documents=%d metadatas=%d",
			vectorstore.ErrLengthMismatch, len(ids), len(embeddings), len(documents), len(metadatas))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range ids {
		c.records = append(c.records, record{
			id:        ids[i],
			embedding: embeddings[i],
			document:  documents[i],
			metadata:  metadatas[i],
		})
	}
	return nil
}

// Query は全レコードに対するコサイン距離を計算し、距離昇順の上位 k 件を返す
func (c *Collection) Query(ctx context.Context, embedding []float32, k int) ([]vectorstore.QueryResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make([]vectorstore.QueryResult, 0, len(c.records))
	for _, r := range c.records {
		results = append(results, vectorstore.QueryResult{
			Content:  r.document,
			Metadata: r.metadata,
			Distance: 1 - CosineSimilarity(embedding, r.embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count は格納済みレコード数を返す
func (c *Collection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

// CosineSimilarity は 2 つのベクトルのコサイン類似度を計算する
// 長さ 0 のベクトル・長さ不一致・ゼロベクトルに対しては 0 を返し、決して panic しない
// （距離に変換すると 1 = 無関係 相当になる）
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// インターフェース実装の確認
var (
	_ vectorstore.Store      = (*Store)(nil)
	_ vectorstore.Collection = (*Collection)(nil)
)
