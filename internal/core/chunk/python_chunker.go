package chunk

import (
	"regexp"
	"strings"
)

var (
	pythonDeclPattern     = regexp.MustCompile(`^(?:async\s+)?(def|class)\s+([A-Za-z_]\w*)`)
	pythonPreamblePattern = regexp.MustCompile(`^(?:import\s|from\s+\S+\s+import\b)`)
)

// pythonChunker はインデント深さの追跡で top-level 境界を判定する Python 用チャンカー
// 波括弧を持たない言語のため braceChunker とはアルゴリズムを分けている
type pythonChunker struct{}

var _ Strategy = (*pythonChunker)(nil)

func newPythonChunker() *pythonChunker {
	return &pythonChunker{}
}

// Split は top-level（インデント 0）の def/class 行を境界としてチャンクを区切る
// def/class ブロックの終端は、次にインデント 0 の行が現れた時点で検出する
func (c *pythonChunker) Split(content string, maxTokens int) []Section {
	lines := strings.Split(content, "\n")

	preamble, bodyStart := c.extractPreamble(lines)

	var sections []Section
	var current []string
	var decl declaration

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
		topLevel := trimmed != "" && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t")

		if topLevel {
			if m := pythonDeclPattern.FindStringSubmatch(trimmed); m != nil {
				flush()
				kind := "function"
				if m[1] == "class" {
					kind = "class"
				}
				decl = declaration{Name: m[2], Kind: kind}
			} else if decl.Name != "" && !strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "@") {
				// インデント 0 の通常ステートメントは直前の def/class ブロックの終端
				flush()
				decl = declaration{}
			}
		}

		current = append(current, line)

		// サイズ超過のフラッシュは top-level 行の処理後にのみ行う
		if topLevel && EstimateTokens(preamble+strings.Join(current, "\n")) > maxTokens {
			flush()
		}
	}

	flush()
	return sections
}

// extractPreamble は先頭の import/from 行の連続領域を切り出す
func (c *pythonChunker) extractPreamble(lines []string) (string, int) {
	lastStatement := -1

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if pythonPreamblePattern.MatchString(trimmed) {
			lastStatement = i
			continue
		}
		break
	}

	if lastStatement < 0 {
		return "", 0
	}
	end := lastStatement + 1
	return strings.Join(lines[:end], "\n") + "\n", end
}
