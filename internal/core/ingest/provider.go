package ingest

import "context"

// SourceProvider はリポジトリからソースファイルを取得するインターフェース
// 取得元（git クローン、ローカルディレクトリなど）ごとに実装を差し替える
type SourceProvider interface {
	// ResolveRepoID はリポジトリの URL または owner/repo 形式の文字列を
	// 正規化された owner/repo 形式の識別子に変換する
	ResolveRepoID(rawURL string) (string, error)

	// ListFiles はリポジトリ内の全ファイルを列挙する
	// .gitignore で無視されるファイルは含まれない
	ListFiles(ctx context.Context, repoID string) ([]SourceFile, error)

	// FileContent はファイルの内容をテキストとして取得する
	FileContent(ctx context.Context, file SourceFile) (string, error)
}
