package chunk

import (
	"regexp"
	"strings"
)

// declaration は宣言行のマッチ結果を表す
type declaration struct {
	Name string
	Kind string // "function" / "class" / "type"
}

// declMatcher は行（トリム済み）が新しい宣言の開始かどうかを判定する
type declMatcher func(trimmed string) (declaration, bool)

// braceChunker は波括弧の深さを追跡して top-level 境界でチャンクを区切る共通エンジン
// JS/TS・Java・Go・C/C++・Rust はこのエンジンに言語別のパターンを与えて構成される
type braceChunker struct {
	// isPreamble は行が preamble（import/package/include/use 等）かどうかを判定する
	isPreamble func(trimmed string) bool
	// matchTopLevel は深さ 0 で評価される宣言パターン
	matchTopLevel declMatcher
	// matchNested は深さ 1 で評価される宣言パターン（Java のメソッド）。nil 可
	matchNested declMatcher
	// closeEndsChunk が真の場合、宣言開始時の深さまで戻る閉じ括弧でチャンクを終了する（Java・Go）
	closeEndsChunk bool
	// preambleBlocks が真の場合、`import (` 形式の複数行ブロックを preamble に含める（Go）
	preambleBlocks bool
}

var _ Strategy = (*braceChunker)(nil)

// Split はファイル内容を preamble と本体に分け、本体を top-level 境界で分割する
// 方針:
//   - 深さ 0 で宣言パターンに一致した行で現在の蓄積をフラッシュし、新しいチャンクを開始する
//   - 蓄積が maxTokens を超え、かつ深さが 0 に戻っている場合もフラッシュする
//     （宣言の途中ではトークン数だけを理由に分割しない）
//   - 各チャンクの Content には preamble が複製して前置される
func (c *braceChunker) Split(content string, maxTokens int) []Section {
	lines := strings.Split(content, "\n")

	preamble, bodyStart := c.extractPreamble(lines)

	var sections []Section
	var current []string
	var decl declaration
	declDepth := 0 // 現在のチャンクの宣言が開始した深さ
	depth := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, "\n")
		if strings.TrimSpace(body) != "" {
			sections = append(sections, Section{
				Name:    decl.Name,
				Kind:    decl.Kind,
				Content: preamble + body,
			})
		}
		current = nil
	}

	for i := bodyStart; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if depth == 0 {
			if d, ok := c.matchTopLevel(trimmed); ok {
				flush()
				decl = d
				declDepth = 0
			}
		} else if depth == 1 && c.matchNested != nil {
			if d, ok := c.matchNested(trimmed); ok {
				flush()
				decl = d
				declDepth = 1
			}
		}

		current = append(current, line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			// 対応しない閉じ括弧はヒューリスティックの限界として深さ 0 に戻す
			depth = 0
		}

		// Java: 宣言開始時の深さまで戻る閉じ括弧でチャンクを終了する
		if c.closeEndsChunk && decl.Kind != "" && strings.Contains(line, "}") && depth <= declDepth {
			flush()
			decl = declaration{}
			continue
		}

		// 安全な top-level 境界でのみサイズ超過フラッシュを行う
		if depth == 0 && EstimateTokens(preamble+strings.Join(current, "\n")) > maxTokens {
			flush()
			// サイズ分割の続きは同じ宣言名を引き継ぐ
		}
	}

	flush()
	return sections
}

// extractPreamble はファイル先頭の import/package 等の連続領域を切り出す
// 空行と行コメントは preamble の一部として扱う。戻り値は preamble 文字列
// （末尾改行付き、空の場合は ""）と本体の開始行インデックス
func (c *braceChunker) extractPreamble(lines []string) (string, int) {
	lastStatement := -1
	inBlock := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inBlock {
			lastStatement = i
			if strings.HasPrefix(trimmed, ")") || strings.HasSuffix(trimmed, ")") {
				inBlock = false
			}
			continue
		}

		if trimmed == "" || isLineComment(trimmed) {
			// 空行・コメントは preamble 領域の一部として読み飛ばす
			continue
		}

		if c.isPreamble(trimmed) {
			lastStatement = i
			if c.preambleBlocks && strings.HasSuffix(trimmed, "(") {
				inBlock = true
			}
			continue
		}

		break
	}

	if lastStatement < 0 {
		return "", 0
	}
	// preamble は最後の import 系ステートメントまで（末尾のコメント・空行は本体へ）
	end := lastStatement + 1
	return strings.Join(lines[:end], "\n") + "\n", end
}

// isLineComment は行コメント（および簡易的なブロックコメント行）を判定する
func isLineComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasPrefix(trimmed, "#!")
}

// regexMatcher は正規表現とキャプチャからの名前抽出で declMatcher を構成する
func regexMatcher(re *regexp.Regexp, kind string) declMatcher {
	return func(trimmed string) (declaration, bool) {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			return declaration{}, false
		}
		name := ""
		for _, group := range m[1:] {
			if group != "" {
				name = group
				break
			}
		}
		return declaration{Name: name, Kind: kind}, true
	}
}

// anyMatcher は複数の declMatcher を順に試す
func anyMatcher(matchers ...declMatcher) declMatcher {
	return func(trimmed string) (declaration, bool) {
		for _, m := range matchers {
			if d, ok := m(trimmed); ok {
				return d, true
			}
		}
		return declaration{}, false
	}
}

var (
	jsFunctionPattern = regexp.MustCompile(`^(?:export\s+(?:default\s+)?)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)?\s*\(`)
	jsClassPattern    = regexp.MustCompile(`^(?:export\s+(?:default\s+)?)?class\s+([A-Za-z_$][\w$]*)`)
	jsConstPattern    = regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?(?:\([^)]*\)\s*=>|[A-Za-z_$][\w$]*\s*=>|function\b|\{)`)
	jsPreamblePattern = regexp.MustCompile(`^(?:import\b|export\s+.*\bfrom\s|(?:const|let|var)\s+.*=\s*require\s*\()`)
)

// newJavaScriptChunker は JavaScript/TypeScript 用のチャンカーを作成する
func newJavaScriptChunker() *braceChunker {
	return &braceChunker{
		isPreamble: func(trimmed string) bool {
			return jsPreamblePattern.MatchString(trimmed)
		},
		matchTopLevel: anyMatcher(
			regexMatcher(jsFunctionPattern, "function"),
			regexMatcher(jsClassPattern, "class"),
			regexMatcher(jsConstPattern, "function"),
		),
	}
}

var (
	javaTypePattern   = regexp.MustCompile(`^(?:(?:public|protected|private|abstract|final|static|sealed)\s+)*(?:class|interface|enum|record)\s+([A-Za-z_$][\w$]*)`)
	javaMethodPattern = regexp.MustCompile(`^(?:(?:public|protected|private)\s+)(?:(?:static|final|abstract|synchronized|native)\s+)*[\w<>\[\],.\s]*?([A-Za-z_$][\w$]*)\s*\(`)
	javaPreamble      = regexp.MustCompile(`^(?:package\s|import\s)`)
)

// newJavaChunker は Java 用のチャンカーを作成する
// 型宣言は深さ 0、メソッド宣言は深さ 1 で検出し、対応する閉じ括弧でチャンクを終了する
func newJavaChunker() *braceChunker {
	return &braceChunker{
		isPreamble: func(trimmed string) bool {
			return javaPreamble.MatchString(trimmed)
		},
		matchTopLevel: regexMatcher(javaTypePattern, "class"),
		matchNested: func(trimmed string) (declaration, bool) {
			if strings.Contains(trimmed, ";") {
				// フィールド宣言や abstract メソッドはチャンク境界にしない
				return declaration{}, false
			}
			return regexMatcher(javaMethodPattern, "function")(trimmed)
		},
		closeEndsChunk: true,
	}
}

var (
	goFuncPattern   = regexp.MustCompile(`^func\s+(?:\([^)]+\)\s+)?([A-Za-z_]\w*)`)
	goStructPattern = regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+struct\b`)
	goPreamble      = regexp.MustCompile(`^(?:package\s|import\b)`)
)

// newGoChunker は Go 用のチャンカーを作成する
// 深さ 0 に戻る閉じ括弧でチャンクを終了するため、宣言の後続の top-level
// ステートメント（const/var ブロック等）は前の宣言に吸収されず独立したセクションになる
func newGoChunker() *braceChunker {
	return &braceChunker{
		isPreamble: func(trimmed string) bool {
			return goPreamble.MatchString(trimmed)
		},
		matchTopLevel: anyMatcher(
			regexMatcher(goFuncPattern, "function"),
			regexMatcher(goStructPattern, "type"),
		),
		closeEndsChunk: true,
		preambleBlocks: true,
	}
}

var (
	cTypePattern     = regexp.MustCompile(`^(?:typedef\s+)?(?:class|struct|enum|union)\b\s*([A-Za-z_]\w*)?`)
	cFunctionPattern = regexp.MustCompile(`^(?:[A-Za-z_][\w:<>*&]*[\s*&]+)+([A-Za-z_]\w*)\s*\(`)
	cPreamble        = regexp.MustCompile(`^#\s*(?:include|define|pragma)\b`)
)

// newCChunker は C/C++ 用のチャンカーを作成する
// 「戻り値型 関数名(」かつ末尾セミコロンなしの行を関数開始とみなす
func newCChunker() *braceChunker {
	return &braceChunker{
		isPreamble: func(trimmed string) bool {
			return cPreamble.MatchString(trimmed)
		},
		matchTopLevel: func(trimmed string) (declaration, bool) {
			if d, ok := regexMatcher(cTypePattern, "type")(trimmed); ok {
				return d, true
			}
			// プロトタイプ宣言（末尾 ;）は境界にしない
			if strings.HasSuffix(trimmed, ";") {
				return declaration{}, false
			}
			return regexMatcher(cFunctionPattern, "function")(trimmed)
		},
	}
}

var (
	rustFnPattern   = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+([A-Za-z_]\w*)`)
	rustTypePattern = regexp.MustCompile(`^(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait|mod|type|union)\s+([A-Za-z_]\w*)`)
	rustImplPattern = regexp.MustCompile(`^impl\b(?:<[^>]*>)?\s*([A-Za-z_][\w]*)?`)
	rustPreamble    = regexp.MustCompile(`^(?:use\s|extern\s+crate\s)`)
)

// newRustChunker は Rust 用のチャンカーを作成する
func newRustChunker() *braceChunker {
	return &braceChunker{
		isPreamble: func(trimmed string) bool {
			return rustPreamble.MatchString(trimmed)
		},
		matchTopLevel: anyMatcher(
			regexMatcher(rustFnPattern, "function"),
			regexMatcher(rustTypePattern, "type"),
			regexMatcher(rustImplPattern, "type"),
		),
	}
}
