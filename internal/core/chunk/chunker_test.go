package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunk_JavaScriptSingleFunction は import 付き JS ファイルが
// preamble を前置した 1 チャンクになることをテストします
func TestChunk_JavaScriptSingleFunction(t *testing.T) {
	content := `import fs from "fs";
import path from "path";
import util from "util";

function foo(a, b) {
  const c = a + b;
  return c;
}`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "src/foo.js", DefaultMaxTokens)

	require.Len(t, chunks, 1)
	assert.Equal(t, "foo", chunks[0].Metadata.Name)
	assert.Equal(t, LanguageJavaScript, chunks[0].Metadata.Language)
	assert.Equal(t, ChunkTypeCode, chunks[0].Metadata.ChunkType)
	assert.Equal(t, ".js", chunks[0].Metadata.Extension)
	assert.Equal(t, "src/foo.js", chunks[0].Metadata.Path)

	// preamble（3 行の import）がチャンク先頭に複製される
	assert.True(t, strings.HasPrefix(chunks[0].Content, "import fs from \"fs\";\nimport path from \"path\";\nimport util from \"util\";\n"))
	assert.Contains(t, chunks[0].Content, "function foo(a, b)")
}

// TestChunk_JavaScriptMultipleDeclarations は宣言ごとにチャンクが分かれることをテストします
func TestChunk_JavaScriptMultipleDeclarations(t *testing.T) {
	content := `import a from "a";

function first() {
  return 1;
}

const second = () => {
  return 2;
};

class Third {
  method() {}
}`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "app.ts", DefaultMaxTokens)

	require.Len(t, chunks, 3)
	assert.Equal(t, "first", chunks[0].Metadata.Name)
	assert.Equal(t, "second", chunks[1].Metadata.Name)
	assert.Equal(t, "Third", chunks[2].Metadata.Name)

	// すべてのチャンクに preamble が複製される
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c.Content, "import a from \"a\";\n"))
	}
}

// TestChunk_GoFile は Go の関数と struct が境界として検出されることをテストします
func TestChunk_GoFile(t *testing.T) {
	content := `package main

import (
	"fmt"
	"strings"
)

type Server struct {
	Addr string
}

func NewServer(addr string) *Server {
	return &Server{Addr: addr}
}

func (s *Server) Run() error {
	fmt.Println(strings.ToUpper(s.Addr))
	return nil
}`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "server.go", DefaultMaxTokens)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Server", chunks[0].Metadata.Name)
	assert.Equal(t, "NewServer", chunks[1].Metadata.Name)
	assert.Equal(t, "Run", chunks[2].Metadata.Name)

	// import ブロック全体が preamble として各チャンクに前置される
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c.Content, "package main\n"))
		assert.Contains(t, c.Content, "\"strings\"")
	}
}

// TestChunk_GoDeclarationEndsAtClosingBrace は深さ 0 の閉じ括弧でチャンクが
// 終了し、後続の top-level ステートメントが前の宣言に吸収されないことをテストします
func TestChunk_GoDeclarationEndsAtClosingBrace(t *testing.T) {
	content := `package main

type A struct {
	X int
}

var trailing = 1

func f() {}`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "a.go", DefaultMaxTokens)

	require.Len(t, chunks, 3)

	// struct チャンクは閉じ括弧で終わり、後続の var を含まない
	assert.Equal(t, "A", chunks[0].Metadata.Name)
	assert.NotContains(t, chunks[0].Content, "var trailing")
	assert.True(t, strings.HasSuffix(chunks[0].Content, "}"))

	// 宣言の外の top-level ステートメントは独立したセクションになる
	assert.Equal(t, UnnamedSection, chunks[1].Metadata.Name)
	assert.Contains(t, chunks[1].Content, "var trailing = 1")

	assert.Equal(t, "f", chunks[2].Metadata.Name)
}

// TestChunk_Python はインデント追跡によるチャンク分割をテストします
func TestChunk_Python(t *testing.T) {
	content := `import os
from typing import List

def first(x):
    if x:
        return 1
    return 0

class Handler:
    def handle(self):
        pass

VALUE = 42`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "handler.py", DefaultMaxTokens)

	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, "first", chunks[0].Metadata.Name)
	assert.Equal(t, "Handler", chunks[1].Metadata.Name)
	// 末尾の top-level ステートメントはデフォルト名のチャンクになる
	assert.Equal(t, UnnamedSection, chunks[2].Metadata.Name)

	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c.Content, "import os\nfrom typing import List\n"))
	}
}

// TestChunk_Java はクラス/メソッドの検出と閉じ括弧によるチャンク終了をテストします
func TestChunk_Java(t *testing.T) {
	content := `package com.example;

import java.util.List;

public class Greeter {
    private String name;

    public String greet(List<String> args) {
        return "hello " + name;
    }

    public void reset() {
        name = null;
    }
}`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "Greeter.java", DefaultMaxTokens)

	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, "Greeter", chunks[0].Metadata.Name)

	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		names = append(names, c.Metadata.Name)
		assert.True(t, strings.HasPrefix(c.Content, "package com.example;\n"))
	}
	assert.Contains(t, names, "greet")
	assert.Contains(t, names, "reset")
}

// TestChunk_Rust は fn/struct/impl の検出をテストします
func TestChunk_Rust(t *testing.T) {
	content := `use std::io;

pub struct Config {
    path: String,
}

impl Config {
    pub fn new(path: String) -> Self {
        Config { path }
    }
}

pub fn run(cfg: &Config) -> io::Result<()> {
    Ok(())
}`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "lib.rs", DefaultMaxTokens)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Config", chunks[0].Metadata.Name)
	assert.Equal(t, "Config", chunks[1].Metadata.Name)
	assert.Equal(t, "run", chunks[2].Metadata.Name)
}

// TestChunk_C は関数定義の検出とプロトタイプ宣言の除外をテストします
func TestChunk_C(t *testing.T) {
	content := `#include <stdio.h>
#define MAX 10

int helper(int x);

int helper(int x) {
    return x * 2;
}

struct point {
    int x;
    int y;
};`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "main.c", DefaultMaxTokens)

	require.GreaterOrEqual(t, len(chunks), 2)

	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		names = append(names, c.Metadata.Name)
		assert.True(t, strings.HasPrefix(c.Content, "#include <stdio.h>\n#define MAX 10\n"))
	}
	assert.Contains(t, names, "helper")
	assert.Contains(t, names, "point")
}

// TestChunk_FallbackBySize は未知の拡張子がサイズベース分割に退避することをテストします
func TestChunk_FallbackBySize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("alpha beta gamma delta epsilon zeta\n")
	}

	registry := NewRegistry()
	chunks := registry.Chunk(sb.String(), "data.xyzdsl", 60)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "Chunk 1", chunks[0].Metadata.Name)
	assert.Equal(t, "Chunk 2", chunks[1].Metadata.Name)
	assert.Equal(t, LanguageUnknown, chunks[0].Metadata.Language)
}

// TestChunk_EmptyFile は空ファイルからチャンクが生成されないことをテストします
func TestChunk_EmptyFile(t *testing.T) {
	registry := NewRegistry()

	assert.Empty(t, registry.Chunk("", "empty.go", DefaultMaxTokens))
	assert.Empty(t, registry.Chunk("\n\n\n", "blank.py", DefaultMaxTokens))
}

// TestChunk_Coverage は全チャンクの本体（preamble を除く）を連結すると
// 元のファイル本体が行単位で復元できることをテストします
func TestChunk_Coverage(t *testing.T) {
	content := `import x from "x";

function a() {
  return 1;
}

function b() {
  return 2;
}

const tail = 3;`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "cov.js", DefaultMaxTokens)
	require.NotEmpty(t, chunks)

	preamble := "import x from \"x\";\n"
	var reconstructed strings.Builder
	for _, c := range chunks {
		body := strings.TrimPrefix(c.Content, preamble)
		reconstructed.WriteString(body)
		reconstructed.WriteString("\n")
	}

	// 元ファイルの本体行がひとつも欠落していないこと
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "import ") {
			continue
		}
		assert.Contains(t, reconstructed.String(), line)
	}
}

// TestChunk_TokenBound はサイズ超過時に top-level 境界でフラッシュされることをテストします
func TestChunk_TokenBound(t *testing.T) {
	// 1 関数あたり約 10 トークンの小さな関数を多数並べる
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("function f")
		sb.WriteString(strings.Repeat("x", i+1))
		sb.WriteString("() {\n  return 1 + 2 + 3;\n}\n")
	}

	maxTokens := 30
	registry := NewRegistry()
	chunks := registry.Chunk(sb.String(), "many.js", maxTokens)
	require.Greater(t, len(chunks), 1)

	// 宣言単位で分割されるため、単一宣言を超える塊は生じない
	for _, c := range chunks {
		lines := strings.Count(c.Content, "function f")
		assert.Equal(t, 1, lines, "チャンクは単一の宣言のみを含むこと")
	}
}

// TestChunk_OversizedDeclarationNotSplit は単一の巨大な宣言が
// 本体の途中で分断されないことをテストします
func TestChunk_OversizedDeclarationNotSplit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("function huge() {\n")
	for i := 0; i < 100; i++ {
		sb.WriteString("  const value = alpha + beta + gamma + delta;\n")
	}
	sb.WriteString("}\n")

	registry := NewRegistry()
	chunks := registry.Chunk(sb.String(), "huge.js", 50)

	require.Len(t, chunks, 1)
	assert.Equal(t, "huge", chunks[0].Metadata.Name)
	assert.Greater(t, EstimateTokens(chunks[0].Content), 50)
}

// TestChunk_UnnamedDeclarations はフォールバック名の付与をテストします
func TestChunk_UnnamedDeclarations(t *testing.T) {
	content := `const x = 1;
const y = 2;
doSomething(x, y);`

	registry := NewRegistry()
	chunks := registry.Chunk(content, "script.js", DefaultMaxTokens)

	require.Len(t, chunks, 1)
	assert.Equal(t, UnnamedSection, chunks[0].Metadata.Name)
}

// TestEstimateTokens は空白区切りの近似トークンカウントをテストします
func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "空文字列", text: "", want: 0},
		{name: "単語 3 つ", text: "foo bar baz", want: 3},
		{name: "改行とタブ区切り", text: "a\nb\tc d", want: 4},
		{name: "連続する空白", text: "  x   y  ", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

// TestDetectLanguage は拡張子ベースの言語判定をテストします
func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{path: "a/b/main.go", want: LanguageGo},
		{path: "src/app.tsx", want: LanguageTypeScript},
		{path: "script.py", want: LanguagePython},
		{path: "Main.java", want: LanguageJava},
		{path: "lib.rs", want: LanguageRust},
		{path: "kernel.cpp", want: LanguageCPP},
		{path: "unknown.zzz", want: LanguageUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.path, ""))
		})
	}
}
