package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/repochat/internal/core/ask"
	"github.com/jinford/repochat/internal/core/chunk"
	"github.com/jinford/repochat/internal/core/embedding"
	"github.com/jinford/repochat/internal/core/ingest"
	"github.com/jinford/repochat/internal/core/vectorstore"
	"github.com/jinford/repochat/internal/infra/git"
	"github.com/jinford/repochat/internal/infra/memvector"
	"github.com/jinford/repochat/internal/infra/openai"
	"github.com/jinford/repochat/internal/infra/pgvector"
	"github.com/jinford/repochat/internal/platform/database"
	"github.com/jinford/repochat/pkg/config"
)

// Container はアプリケーションの依存関係を組み立てて保持します
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Store  vectorstore.Store
	Ingest *ingest.Service
	Ask    *ask.Service

	pool *pgxpool.Pool // postgres バックエンド使用時のみ
}

// New は設定に従って全コンポーネントを初期化します
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Container, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY が設定されていません")
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	// ベクトルストア（バックエンドは設定で切り替え）
	switch cfg.Vector.Backend {
	case config.VectorBackendPostgres:
		pool, err := database.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("データベース接続に失敗: %w", err)
		}
		c.pool = pool

		c.Store = pgvector.NewStore(pool, cfg.OpenAI.EmbeddingDimension)
	default:
		c.Store = memvector.NewStore()
	}

	// OpenAI クライアント
	embedClient := openai.NewEmbedder(cfg.OpenAI.APIKey,
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)
	generator, err := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("OpenAI クライアントの初期化に失敗: %w", err)
	}

	// Git プロバイダ
	gitOpts := []git.ClientOption{}
	if cfg.Git.SSHKeyPath != "" {
		gitOpts = append(gitOpts, git.WithSSHKey(cfg.Git.SSHKeyPath, cfg.Git.SSHPassword))
	}
	provider := git.NewProvider(
		git.NewClient(gitOpts...),
		cfg.Git.CloneDir,
		git.WithRemoteBase(cfg.Git.RemoteBase),
		git.WithProviderLogger(logger),
	)

	// インデックス処理
	batchEmbedder := embedding.NewBatchEmbedder(embedClient,
		embedding.WithDelay(time.Duration(cfg.Ingest.EmbedDelayMS)*time.Millisecond),
		embedding.WithLogger(logger),
	)
	c.Ingest = ingest.NewService(
		provider,
		chunk.NewRegistry(),
		batchEmbedder,
		c.Store,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithMaxTokens(cfg.Ingest.MaxTokens),
		ingest.WithServiceLogger(logger),
	)

	// 質問応答
	counter, err := ask.NewTokenCounter()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("トークンカウンタの初期化に失敗: %w", err)
	}
	c.Ask = ask.NewService(
		ask.NewRetriever(c.Store, embedClient, logger),
		generator,
		counter,
		ask.WithContextTokenLimit(cfg.Ask.ContextTokenLimit),
		ask.WithDefaultTopK(cfg.Ask.TopK),
		ask.WithServiceLogger(logger),
	)

	return c, nil
}

// Close は保持しているリソースを解放します
func (c *Container) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
