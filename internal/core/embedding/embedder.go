package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinford/repochat/internal/core/chunk"
)

// DefaultInterCallDelay は Embedding API 呼び出し間の固定ディレイ
// 上流のレート制限を尊重するため、並列化せず逐次 + 固定間隔で呼び出す
const DefaultInterCallDelay = 100 * time.Millisecond

// Client は Embedding 推論サービスとの通信インターフェース
type Client interface {
	// Embed はテキストを固定次元のベクトルに変換する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingError は Embedding 生成の失敗を表す。上流のエラーメッセージを保持する
type EmbeddingError struct {
	Cause error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding の生成に失敗: %v", e.Cause)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// EmbeddedChunk はベクトル化済みのチャンクを表す
type EmbeddedChunk struct {
	Chunk     chunk.Chunk
	Embedding []float32
}

// BuildEmbeddingText は Embedding 対象のテキストを組み立てる
// パスとセクション名をヘッダとして含めることで、ファイル名・宣言名ベースの
// クエリに対する検索精度を上げる
func BuildEmbeddingText(c chunk.Chunk) string {
	return fmt.Sprintf("File: %s\nSection: %s\n\n%s", c.Metadata.Path, c.Metadata.Name, c.Content)
}

// paceState はバッチ処理のペーシング状態を表す
// 「同時に 1 リクエストのみ、呼び出し間に固定ディレイ」という契約を
// 明示的な状態遷移（pending → inFlight → delay → pending）として実装する
type paceState int

const (
	statePending paceState = iota
	stateInFlight
	stateDelay
)

// BatchEmbedder はチャンク列を逐次ベクトル化する
type BatchEmbedder struct {
	client Client
	delay  time.Duration
	logger *slog.Logger

	// sleep はテストから差し替え可能なディレイ実装
	sleep func(ctx context.Context, d time.Duration) error
}

// BatchEmbedderOption は BatchEmbedder のオプション設定
type BatchEmbedderOption func(*BatchEmbedder)

// WithDelay は呼び出し間ディレイを上書きする
func WithDelay(d time.Duration) BatchEmbedderOption {
	return func(b *BatchEmbedder) {
		b.delay = d
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) BatchEmbedderOption {
	return func(b *BatchEmbedder) {
		b.logger = logger
	}
}

// withSleep はディレイ実装を差し替える（テスト用）
func withSleep(sleep func(ctx context.Context, d time.Duration) error) BatchEmbedderOption {
	return func(b *BatchEmbedder) {
		b.sleep = sleep
	}
}

// NewBatchEmbedder は新しい BatchEmbedder を作成する
func NewBatchEmbedder(client Client, opts ...BatchEmbedderOption) *BatchEmbedder {
	b := &BatchEmbedder{
		client: client,
		delay:  DefaultInterCallDelay,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EmbedBatch はチャンク列を逐次ベクトル化し、成功したものだけを返す
//
//   - 呼び出しは並列化せず、各呼び出しの間に固定ディレイを挟む（最終要素の後は挟まない）
//   - チャンク単位の失敗はログに記録してスキップし、バッチ全体は中断しない
//     このため戻り値の件数は入力より少なくなり得る（呼び出し側は件数保存を仮定しないこと）
//   - エラーを返すのはコンテキストのキャンセル時のみ
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, chunks []chunk.Chunk) ([]EmbeddedChunk, error) {
	embedded := make([]EmbeddedChunk, 0, len(chunks))

	state := statePending
	index := 0

	for index < len(chunks) {
		select {
		case <-ctx.Done():
			return embedded, ctx.Err()
		default:
		}

		switch state {
		case statePending:
			state = stateInFlight

		case stateInFlight:
			c := chunks[index]
			vector, err := b.client.Embed(ctx, BuildEmbeddingText(c))
			if err != nil {
				b.logger.Warn("チャンクの embedding 生成に失敗したためスキップ",
					"path", c.Metadata.Path,
					"section", c.Metadata.Name,
					"error", err,
				)
			} else {
				embedded = append(embedded, EmbeddedChunk{Chunk: c, Embedding: vector})
			}

			index++
			if index < len(chunks) {
				state = stateDelay
			}

		case stateDelay:
			if err := b.sleep(ctx, b.delay); err != nil {
				return embedded, err
			}
			state = statePending
		}
	}

	return embedded, nil
}

// sleepContext はコンテキストのキャンセルを尊重して待機する
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
