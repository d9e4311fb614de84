package chunk

import (
	"path/filepath"

	"github.com/go-enry/go-enry/v2"
)

// Language はサポートされるプログラミング言語のタグを表す
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageGo         Language = "go"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageRust       Language = "rust"
	LanguageUnknown    Language = "unknown"
)

// extensionLanguages は拡張子から言語タグへのマッピング
var extensionLanguages = map[string]Language{
	".js":   LanguageJavaScript,
	".jsx":  LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".cjs":  LanguageJavaScript,
	".ts":   LanguageTypeScript,
	".tsx":  LanguageTypeScript,
	".py":   LanguagePython,
	".java": LanguageJava,
	".go":   LanguageGo,
	".c":    LanguageC,
	".h":    LanguageC,
	".cpp":  LanguageCPP,
	".cc":   LanguageCPP,
	".cxx":  LanguageCPP,
	".hpp":  LanguageCPP,
	".hh":   LanguageCPP,
	".rs":   LanguageRust,
}

// enryLanguages は go-enry の言語名から言語タグへのマッピング
var enryLanguages = map[string]Language{
	"JavaScript": LanguageJavaScript,
	"TypeScript": LanguageTypeScript,
	"Python":     LanguagePython,
	"Java":       LanguageJava,
	"Go":         LanguageGo,
	"C":          LanguageC,
	"C++":        LanguageCPP,
	"Rust":       LanguageRust,
}

// DetectLanguage はファイルパスと内容から言語タグを判定する
// 拡張子マッピングを優先し、拡張子で判定できない場合のみ go-enry による
// 内容ベースの判定を試みる。どちらでも判定できなければ LanguageUnknown を返す
func DetectLanguage(path string, content string) Language {
	if lang, ok := extensionLanguages[fileExtension(path)]; ok {
		return lang
	}

	filename := filepath.Base(path)
	detected := enry.GetLanguage(filename, []byte(content))
	if lang, ok := enryLanguages[detected]; ok {
		return lang
	}

	return LanguageUnknown
}

// SupportedExtensions はインデックス対象とするソース拡張子の許可リストを返す
func SupportedExtensions() map[string]bool {
	supported := make(map[string]bool, len(extensionLanguages)+8)
	for ext := range extensionLanguages {
		supported[ext] = true
	}
	// 構造的チャンク化の対象外だがフォールバックでインデックスする拡張子
	for _, ext := range []string{".rb", ".php", ".swift", ".kt", ".scala", ".cs", ".md", ".sh"} {
		supported[ext] = true
	}
	return supported
}
