package ask

// Params は質問応答のパラメータを表す
type Params struct {
	RepoID   string // 対象リポジトリ（owner/repo 形式）
	Question string // ユーザーの質問文
	TopK     int    // 取得するチャンク数の上限（デフォルト: 5）
}

// Result は質問応答の結果を表す
type Result struct {
	Answer  string            // LLMによる回答
	Sources []SourceReference // 参照したソース情報
}

// SourceReference は回答の根拠となったソース参照を表す
type SourceReference struct {
	FilePath string  // ファイルパス
	Section  string  // セクション名（関数・クラス名など）
	Distance float64 // コサイン距離（小さいほど近い）
}
