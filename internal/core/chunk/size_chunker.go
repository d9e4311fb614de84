package chunk

import (
	"fmt"
	"strings"
)

// sizeChunker は構造を考慮せず、トークン数の累積のみでファイルを分割する
// フォールバックストラテジ。チャンク名は "Chunk 1", "Chunk 2", ... と連番になる
type sizeChunker struct{}

var _ Strategy = (*sizeChunker)(nil)

func newSizeChunker() *sizeChunker {
	return &sizeChunker{}
}

// Split は行を蓄積し、トークン数が maxTokens を超えた時点でフラッシュする
func (c *sizeChunker) Split(content string, maxTokens int) []Section {
	lines := strings.Split(content, "\n")

	var sections []Section
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, "\n")
		if strings.TrimSpace(body) != "" {
			sections = append(sections, Section{
				Name:    fmt.Sprintf("Chunk %d", len(sections)+1),
				Content: body,
			})
		}
		current = nil
	}

	for _, line := range lines {
		current = append(current, line)
		if EstimateTokens(strings.Join(current, "\n")) > maxTokens {
			flush()
		}
	}

	flush()
	return sections
}
