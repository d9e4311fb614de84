package ask

import (
	"context"
	"fmt"
	"log/slog"
)

// NoRelevantCodeAnswer は該当チャンクが 1 件もなかったときの回答
const NoRelevantCodeAnswer = "このリポジトリから質問に関連するコードが見つかりませんでした。質問の言い換えや、対象リポジトリの再インデックスを試してください。"

// Generator は回答生成モデルとの通信インターフェース
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerationError は回答生成の失敗を表す。上流のエラーメッセージを保持する
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("回答の生成に失敗: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Service は質問応答のビジネスロジックを提供する
type Service struct {
	retriever   *Retriever
	generator   Generator
	counter     TokenCounter
	tokenLimit  int
	defaultTopK int
	logger      *slog.Logger
}

type ServiceOption func(*Service)

// WithContextTokenLimit はコンテキストのトークン上限を上書きする
func WithContextTokenLimit(limit int) ServiceOption {
	return func(s *Service) {
		s.tokenLimit = limit
	}
}

// WithDefaultTopK は Params.TopK 未指定時に使うチャンク数を上書きする
func WithDefaultTopK(topK int) ServiceOption {
	return func(s *Service) {
		if topK > 0 {
			s.defaultTopK = topK
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
	retriever *Retriever,
	generator Generator,
	counter TokenCounter,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		retriever:   retriever,
		generator:   generator,
		counter:     counter,
		tokenLimit:  DefaultContextTokenLimit,
		defaultTopK: DefaultTopK,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Ask は質問に対してRAGベースで回答を生成する
func (s *Service) Ask(ctx context.Context, params Params) (*Result, error) {
	if params.Question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if params.RepoID == "" {
		return nil, fmt.Errorf("repoID is required")
	}

	topK := params.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	s.logger.Info("ベクトル検索を実行",
		"repoID", params.RepoID,
		"question", params.Question,
		"topK", topK,
	)

	results, err := s.retriever.Retrieve(ctx, params.RepoID, params.Question, topK)
	if err != nil {
		return nil, fmt.Errorf("チャンクの取得に失敗: %w", err)
	}

	// 該当チャンクなしは正常系として扱い、LLM は呼ばない
	if len(results) == 0 {
		s.logger.Info("関連チャンクが見つからなかった", "repoID", params.RepoID)
		return &Result{Answer: NoRelevantCodeAnswer}, nil
	}

	trimmed := TrimToTokenLimit(results, s.counter, s.tokenLimit)
	if len(trimmed) < len(results) {
		s.logger.Debug("トークン上限によりコンテキストを切り詰め",
			"retrieved", len(results),
			"kept", len(trimmed),
		)
	}

	userPrompt := BuildUserPrompt(BuildContext(trimmed), params.Question)

	s.logger.Info("LLMで回答を生成", "chunks", len(trimmed))
	answer, err := s.generator.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}

	sources := make([]SourceReference, 0, len(trimmed))
	for _, r := range trimmed {
		sources = append(sources, SourceReference{
			FilePath: r.Metadata.Path,
			Section:  r.Metadata.Name,
			Distance: r.Distance,
		})
	}

	s.logger.Info("質問応答が完了",
		"answerLength", len(answer),
		"sources", len(sources),
	)

	return &Result{
		Answer:  answer,
		Sources: sources,
	}, nil
}
