package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/repochat/internal/core/chunk"
	"github.com/jinford/repochat/internal/core/embedding"
	"github.com/jinford/repochat/internal/core/vectorstore"
)

// DefaultBatchSize は 1 バッチで処理するファイル数
const DefaultBatchSize = 20

// ErrNoChunks は対象ファイルはあったがチャンクを 1 件も登録できなかったことを表す
var ErrNoChunks = errors.New("チャンクを 1 件も登録できませんでした")

// NoSupportedFilesMessage はインデックス対象のファイルが無かったときの補足メッセージ
const NoSupportedFilesMessage = "インデックス対象のファイルが見つかりませんでした"

// Service はリポジトリのインデックス処理を統括する
// 同一リポジトリへの同時インデックスはリポジトリ単位のロックで直列化する
type Service struct {
	provider SourceProvider
	chunker  *chunk.Registry
	embedder *embedding.BatchEmbedder
	store    vectorstore.Store
	logger   *slog.Logger

	batchSize int
	maxTokens int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type ServiceOption func(*Service)

// WithBatchSize は 1 バッチのファイル数を上書きする
func WithBatchSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxTokens はチャンクの最大トークン数を上書きする
func WithMaxTokens(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(
	provider SourceProvider,
	chunker *chunk.Registry,
	embedder *embedding.BatchEmbedder,
	store vectorstore.Store,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		provider:  provider,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		maxTokens: chunk.DefaultMaxTokens,
		locks:     make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// lockFor はリポジトリ単位のロックを返す
func (s *Service) lockFor(repoID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[repoID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[repoID] = lock
	}
	return lock
}

// Ingest はリポジトリをインデックスする
//
// 既存のコレクションは破棄してから作り直すため、再実行は常に冪等になる
// ファイル単位の取得失敗はスキップして継続し、結果の SkippedFiles に計上する
func (s *Service) Ingest(ctx context.Context, rawURL string) (*Result, error) {
	repoID, err := s.provider.ResolveRepoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("リポジトリ URL の解析に失敗: %w", err)
	}

	runID := uuid.New()
	logger := s.logger.With("runID", runID.String(), "repoID", repoID)

	// 同一リポジトリの先行処理が終わるまでは idle のまま待機する
	logger.Debug("インデックス要求を受け付け", "state", StateIdle)
	lock := s.lockFor(repoID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	logger.Info("インデックス処理を開始", "state", StateListing)

	files, err := s.provider.ListFiles(ctx, repoID)
	if err != nil {
		logger.Error("ファイル一覧の取得に失敗", "state", StateFailed, "error", err)
		return nil, &ListingError{RepoID: repoID, Cause: err}
	}

	files = filterFiles(files)
	if len(files) == 0 {
		// 対象ファイルなしは正常終了として扱い、既存のコレクションには触れない
		logger.Info("インデックス対象のファイルなし", "state", StateIndexed)
		return &Result{
			RunID:    runID,
			RepoID:   repoID,
			Duration: time.Since(start),
			Message:  NoSupportedFilesMessage,
		}, nil
	}

	logger.Info("対象ファイルを確定", "files", len(files))

	// 旧データを残さないよう、コレクションは削除してから作り直す
	if err := s.store.Delete(ctx, repoID); err != nil {
		logger.Error("既存コレクションの削除に失敗", "state", StateFailed, "error", err)
		return nil, &IndexError{RepoID: repoID, Cause: err}
	}
	collection, err := s.store.GetOrCreate(ctx, repoID)
	if err != nil {
		logger.Error("コレクションの作成に失敗", "state", StateFailed, "error", err)
		return nil, &IndexError{RepoID: repoID, Cause: err}
	}

	var (
		fileCount  int
		chunkCount int
		skipped    int
		offset     int
	)

	for batchStart := 0; batchStart < len(files); batchStart += s.batchSize {
		batchEnd := min(batchStart+s.batchSize, len(files))
		batch := files[batchStart:batchEnd]

		logger.Debug("バッチのファイルを取得",
			"state", StateFetching,
			"batchStart", batchStart,
			"batchSize", len(batch),
		)

		type fetchedFile struct {
			file    SourceFile
			content string
		}
		fetched := make([]fetchedFile, 0, len(batch))
		for _, f := range batch {
			content, err := s.provider.FileContent(ctx, f)
			if err != nil {
				logger.Warn("ファイルの取得に失敗したためスキップ", "path", f.Path, "error", err)
				skipped++
				continue
			}
			fetched = append(fetched, fetchedFile{file: f, content: content})
		}
		if len(fetched) == 0 {
			continue
		}

		logger.Debug("バッチをチャンク化", "state", StateChunking, "files", len(fetched))

		var chunks []chunk.Chunk
		for _, f := range fetched {
			fileChunks := s.chunker.Chunk(f.content, f.file.Path, s.maxTokens)
			chunks = append(chunks, fileChunks...)
			fileCount++
		}

		if len(chunks) == 0 {
			continue
		}

		logger.Debug("バッチをベクトル化", "state", StateEmbedding, "chunks", len(chunks))

		embedded, err := s.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			logger.Error("ベクトル化が中断された", "state", StateFailed, "error", err)
			return nil, fmt.Errorf("ベクトル化に失敗: %w", err)
		}
		if len(embedded) == 0 {
			continue
		}

		ids := make([]string, len(embedded))
		embeddings := make([][]float32, len(embedded))
		documents := make([]string, len(embedded))
		metadatas := make([]vectorstore.Metadata, len(embedded))
		for i, e := range embedded {
			ids[i] = fmt.Sprintf("chunk_%d", offset)
			offset++
			embeddings[i] = e.Embedding
			documents[i] = e.Chunk.Content
			metadatas[i] = vectorstore.Metadata{
				Path:      e.Chunk.Metadata.Path,
				Language:  string(e.Chunk.Metadata.Language),
				Extension: e.Chunk.Metadata.Extension,
				ChunkType: e.Chunk.Metadata.ChunkType,
				Name:      e.Chunk.Metadata.Name,
			}
		}

		if err := collection.InsertBatch(ctx, ids, embeddings, documents, metadatas); err != nil {
			logger.Error("チャンクの登録に失敗", "state", StateFailed, "error", err)
			return nil, &IndexError{RepoID: repoID, Cause: err}
		}
		chunkCount += len(embedded)
	}

	if chunkCount == 0 {
		logger.Error("登録できたチャンクなし", "state", StateFailed)
		return nil, &IndexError{RepoID: repoID, Cause: ErrNoChunks}
	}

	duration := time.Since(start)
	logger.Info("インデックス処理が完了",
		"state", StateIndexed,
		"files", fileCount,
		"chunks", chunkCount,
		"skipped", skipped,
		"duration", duration,
	)

	return &Result{
		RunID:        runID,
		RepoID:       repoID,
		FileCount:    fileCount,
		ChunkCount:   chunkCount,
		SkippedFiles: skipped,
		Duration:     duration,
	}, nil
}

// Purge はリポジトリのコレクションを削除する。存在しない場合も成功する
func (s *Service) Purge(ctx context.Context, rawURL string) (string, error) {
	repoID, err := s.provider.ResolveRepoID(rawURL)
	if err != nil {
		return "", fmt.Errorf("リポジトリ URL の解析に失敗: %w", err)
	}

	lock := s.lockFor(repoID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, repoID); err != nil {
		return "", fmt.Errorf("コレクションの削除に失敗: %w", err)
	}

	s.logger.Info("コレクションを削除", "repoID", repoID)
	return repoID, nil
}

// Stats はリポジトリの登録済みチャンク数を返す
func (s *Service) Stats(ctx context.Context, rawURL string) (string, int, error) {
	repoID, err := s.provider.ResolveRepoID(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("リポジトリ URL の解析に失敗: %w", err)
	}

	collection, err := s.store.GetOrCreate(ctx, repoID)
	if err != nil {
		return "", 0, fmt.Errorf("コレクションの取得に失敗: %w", err)
	}

	count, err := collection.Count(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("チャンク数の取得に失敗: %w", err)
	}

	return repoID, count, nil
}
