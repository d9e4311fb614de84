package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State はインデックス処理の進行状態を表す
type State string

const (
	StateIdle      State = "idle"
	StateListing   State = "listing"
	StateFetching  State = "fetching"
	StateChunking  State = "chunking"
	StateEmbedding State = "embedding"
	StateIndexed   State = "indexed"
	StateFailed    State = "failed"
)

// SourceFile は取得対象のソースファイルを表す
// Ref はプロバイダ固有の取得ハンドル（git プロバイダではローカルの絶対パス）
type SourceFile struct {
	Path string
	Ref  string
}

// Result はインデックス処理の結果を表す
type Result struct {
	RunID        uuid.UUID     // この実行の識別子
	RepoID       string        // owner/repo 形式のリポジトリ識別子
	FileCount    int           // チャンク化の対象になったファイル数
	ChunkCount   int           // 登録したチャンク数
	SkippedFiles int           // 取得に失敗してスキップしたファイル数
	Duration     time.Duration // 処理時間
	Message      string        // 対象ファイルなしなど、補足メッセージ
}

// ListingError はファイル一覧の取得失敗を表す
type ListingError struct {
	RepoID string
	Cause  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("リポジトリ %s のファイル一覧取得に失敗: %v", e.RepoID, e.Cause)
}

func (e *ListingError) Unwrap() error {
	return e.Cause
}

// IndexError はベクトルインデックスへの書き込み失敗を表す
type IndexError struct {
	RepoID string
	Cause  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("リポジトリ %s のインデックス書き込みに失敗: %v", e.RepoID, e.Cause)
}

func (e *IndexError) Unwrap() error {
	return e.Cause
}
