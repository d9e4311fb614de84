package chunk

import (
	"strings"
)

const (
	// DefaultMaxTokens はチャンクの目標上限トークン数のデフォルト値
	DefaultMaxTokens = 400

	// ChunkTypeCode はコードチャンクの種別識別子
	ChunkTypeCode = "code"
)

// 名前が特定できなかった場合のフォールバック名
const (
	UnnamedSection  = "Unnamed section"
	UnnamedFunction = "Unnamed function"
	UnnamedClass    = "Unnamed class"
	UnnamedType     = "Unnamed type"
)

// Metadata はチャンクに付随するメタデータを表す
type Metadata struct {
	Path      string   // ファイルパス
	Language  Language // 検出された言語
	Extension string   // ファイル拡張子
	ChunkType string   // チャンク種別（常に "code"）
	Name      string   // セクション名（宣言名またはフォールバック名）
}

// Chunk はひとつのソースファイルから切り出された名前付きのテキスト断片を表す
// Content にはファイル先頭の preamble（import 等）が複製して前置される
type Chunk struct {
	Content  string
	Metadata Metadata
}

// Section は言語別ストラテジが返す中間表現（パス情報を持たないチャンク）
type Section struct {
	Name    string
	Kind    string // "function" / "class" / "type" / ""（不明）
	Content string
}

// Strategy は言語ごとのチャンク分割ストラテジを表す
// 分割に失敗してもエラーは返さず、必ず何らかのセクション列を返す
type Strategy interface {
	Split(content string, maxTokens int) []Section
}

// Registry は言語タグからチャンク分割ストラテジへのマッピングを保持する
// 未知の言語には常にフォールバックストラテジが適用される
type Registry struct {
	strategies map[Language]Strategy
	fallback   Strategy
}

// NewRegistry はサポート言語をすべて登録した Registry を作成する
func NewRegistry() *Registry {
	return &Registry{
		strategies: map[Language]Strategy{
			LanguageJavaScript: newJavaScriptChunker(),
			LanguageTypeScript: newJavaScriptChunker(),
			LanguagePython:     newPythonChunker(),
			LanguageJava:       newJavaChunker(),
			LanguageGo:         newGoChunker(),
			LanguageC:          newCChunker(),
			LanguageCPP:        newCChunker(),
			LanguageRust:       newRustChunker(),
		},
		fallback: newSizeChunker(),
	}
}

// Register はストラテジを追加登録する（呼び出し側を変更せずに言語を拡張できる）
func (r *Registry) Register(lang Language, strategy Strategy) {
	r.strategies[lang] = strategy
}

// Chunk はファイル内容を言語に応じたストラテジで分割し、メタデータ付きチャンク列を返す
// maxTokens が 0 以下の場合は DefaultMaxTokens を使用する
// 構造的な分割ができないファイルはサイズベースのフォールバックに退避し、エラーは返さない
func (r *Registry) Chunk(content, filePath string, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	lang := DetectLanguage(filePath, content)

	strategy, ok := r.strategies[lang]
	if !ok {
		strategy = r.fallback
	}

	sections := strategy.Split(content, maxTokens)

	chunks := make([]Chunk, 0, len(sections))
	for _, section := range sections {
		if strings.TrimSpace(section.Content) == "" {
			continue
		}
		name := section.Name
		if name == "" {
			name = fallbackName(section.Kind)
		}
		chunks = append(chunks, Chunk{
			Content: section.Content,
			Metadata: Metadata{
				Path:      filePath,
				Language:  lang,
				Extension: fileExtension(filePath),
				ChunkType: ChunkTypeCode,
				Name:      name,
			},
		})
	}
	return chunks
}

// EstimateTokens は空白区切りの単語数によるトークン数の近似値を返す
// 真のトークナイザではないが、チャンクサイズの比較基準としてパイプライン全体で
// この近似を共有しているため、実装を置き換えてはならない
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// fallbackName は構文要素の種別に応じたフォールバック名を返す
func fallbackName(kind string) string {
	switch kind {
	case "function":
		return UnnamedFunction
	case "class":
		return UnnamedClass
	case "type":
		return UnnamedType
	default:
		return UnnamedSection
	}
}

// fileExtension はパスから拡張子（ドット付き、小文字）を抽出する
func fileExtension(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	slash := strings.LastIndex(path, "/")
	if idx < slash {
		return ""
	}
	return strings.ToLower(path[idx:])
}
