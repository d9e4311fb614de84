package ask

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/repochat/internal/core/vectorstore"
)

// DefaultContextTokenLimit はコンテキスト全体のトークン上限
// モデルのコンテキストウィンドウに質問・システムプロンプト・回答の余地を残す
const DefaultContextTokenLimit = 6000

// systemPrompt は回答生成時に常に使う固定のシステムプロンプト
const systemPrompt = `あなたはリポジトリのコードベースに精通した技術アシスタントです。
与えられたコードのコンテキストだけを根拠に、ユーザーの質問へ正確かつ簡潔に回答してください。
コンテキストに根拠がない内容は推測せず、分からない場合はその旨を伝えてください。
回答ではファイルパスやセクション名を引用して根拠を示してください。`

// BuildContext は取得したチャンクを回答生成用のコンテキスト文字列に組み立てる
// 各チャンクはファイルパスとセクション名のヘッダ付きで、距離の近い順に並ぶ
func BuildContext(results []vectorstore.QueryResult) string {
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("\n\n--- FILE: %s ---\n--- SECTION: %s ---\n%s\n",
			r.Metadata.Path, r.Metadata.Name, r.Content))
	}
	return sb.String()
}

// BuildUserPrompt はコンテキストと質問からユーザープロンプトを組み立てる
func BuildUserPrompt(context, question string) string {
	var sb strings.Builder
	sb.WriteString("以下はリポジトリから取得したコードのコンテキストです。\n")
	sb.WriteString(context)
	sb.WriteString("\n\n# 質問\n")
	sb.WriteString(question)
	return sb.String()
}

// TokenCounter はテキストのトークン数を数える
type TokenCounter interface {
	Count(text string) int
}

// tiktokenCounter は tiktoken を利用した TokenCounter 実装
type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は cl100k_base エンコーディングの TokenCounter を作成する
func NewTokenCounter() (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tiktoken エンコーディングの読み込みに失敗: %w", err)
	}
	return &tiktokenCounter{encoding: enc}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// TrimToTokenLimit はトークン上限に収まる範囲でチャンクを先頭から採用する
// 距離の近い順に並んでいる前提なので、溢れた場合は関連度の低い末尾が落ちる
// 1 件も収まらない場合でも先頭の 1 件は必ず残す
func TrimToTokenLimit(results []vectorstore.QueryResult, counter TokenCounter, limit int) []vectorstore.QueryResult {
	if len(results) == 0 || counter == nil || limit <= 0 {
		return results
	}

	total := 0
	kept := make([]vectorstore.QueryResult, 0, len(results))
	for _, r := range results {
		tokens := counter.Count(r.Content)
		if len(kept) > 0 && total+tokens > limit {
			break
		}
		kept = append(kept, r)
		total += tokens
	}
	return kept
}
