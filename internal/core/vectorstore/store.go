// Package vectorstore はリポジトリ単位のベクトルコレクションの契約を定義する
//
// 実装はインメモリ（infra/memvector）と PostgreSQL + pgvector（infra/pgvector）の
// 2 種類があり、どちらも同一のセマンティクスを提供する。呼び出し側は Store の
// 差し替えを意識しない
package vectorstore

import (
	"context"
	"errors"
	"regexp"
)

// ErrLengthMismatch は InsertBatch の引数列の長さが一致しない場合のエラー
var ErrLengthMismatch = errors.New("ids/embeddings/documents/metadatas の長さが一致しません")

// Metadata はレコードに付随するチャンク由来のメタデータを表す
type Metadata struct {
	Path      string `json:"path"`
	Language  string `json:"language"`
	Extension string `json:"extension"`
	ChunkType string `json:"chunkType"`
	Name      string `json:"name"`
}

// QueryResult は近傍検索の結果 1 件を表す
// Distance はコサイン距離（1 - コサイン類似度）で、0 が最も近く最大 2
type QueryResult struct {
	Content  string
	Metadata Metadata
	Distance float64
}

// Collection はひとつのリポジトリに属するベクトルレコードの集合を表す
type Collection interface {
	// InsertBatch はレコードを一括追加する。追記のみで、ID による upsert や
	// 重複排除は行わない。引数列の長さはすべて一致していなければならない
	InsertBatch(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []Metadata) error

	// Query はコサイン距離の昇順で上位 k 件を返す。空のコレクションに対しては
	// 空のスライスを返し、エラーにはしない
	Query(ctx context.Context, embedding []float32, k int) ([]QueryResult, error)

	// Count は格納済みレコード数を返す
	Count(ctx context.Context) (int, error)
}

// Store はリポジトリ識別子から Collection への対応を所有する
// プロセス起動時に 1 度構築し、Ingestion と Retriever に注入して使う
type Store interface {
	// GetOrCreate は冪等にコレクションを取得する。初回はコレクションを作成し、
	// 以降はプロセス存続期間キャッシュされたハンドルを返す
	GetOrCreate(ctx context.Context, repoID string) (Collection, error)

	// Delete はコレクションとキャッシュエントリを削除する
	// 存在しない場合もエラーにしない（冪等）
	Delete(ctx context.Context, repoID string) error
}

var collectionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// CollectionName はリポジトリ識別子（owner/repo）からコレクション名を生成する
// 形式は repo_<owner>_<repo> で、英数字以外はすべて _ に置換される
func CollectionName(repoID string) string {
	return "repo_" + collectionNameSanitizer.ReplaceAllString(repoID, "_")
}
