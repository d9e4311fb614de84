package ask

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/repochat/internal/core/embedding"
	"github.com/jinford/repochat/internal/core/vectorstore"
)

// DefaultTopK は取得するチャンク数のデフォルト値
const DefaultTopK = 5

// Retriever は質問に意味的に近いチャンクをベクトル検索で取得する
type Retriever struct {
	store  vectorstore.Store
	client embedding.Client
	logger *slog.Logger
}

// NewRetriever は新しい Retriever を作成する
func NewRetriever(store vectorstore.Store, client embedding.Client, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:  store,
		client: client,
		logger: logger,
	}
}

// Retrieve は質問文をベクトル化し、距離の近い順に最大 topK 件のチャンクを返す
// コレクションが空の場合は空スライスを返す（エラーにはしない）
func (r *Retriever) Retrieve(ctx context.Context, repoID, query string, topK int) ([]vectorstore.QueryResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.client.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("クエリのベクトル化に失敗: %w", err)
	}

	collection, err := r.store.GetOrCreate(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("コレクションの取得に失敗: %w", err)
	}

	results, err := collection.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("ベクトル検索に失敗: %w", err)
	}

	r.logger.Debug("ベクトル検索が完了",
		"repoID", repoID,
		"topK", topK,
		"hits", len(results),
	)

	return results, nil
}
