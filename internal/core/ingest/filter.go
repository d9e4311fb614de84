package ingest

import (
	"path/filepath"
	"strings"

	"github.com/jinford/repochat/internal/core/chunk"
)

// noiseDirs はインデックス対象から常に除外するディレクトリ名
// 生成物や依存パッケージなど、検索ノイズになるものを挙げている
var noiseDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"dist":         {},
	"build":        {},
	".next":        {},
	"venv":         {},
	".venv":        {},
	"__pycache__":  {},
	"vendor":       {},
	"target":       {},
}

// supportedExtensions はインデックス対象の拡張子の集合
var supportedExtensions = chunk.SupportedExtensions()

// shouldIndex はファイルがインデックス対象かどうかを判定する
// ノイズディレクトリ配下、または対象外の拡張子のファイルは除外する
func shouldIndex(path string) bool {
	normalized := filepath.ToSlash(path)
	for _, part := range strings.Split(normalized, "/") {
		if _, ok := noiseDirs[part]; ok {
			return false
		}
	}

	ext := strings.ToLower(filepath.Ext(normalized))
	return supportedExtensions[ext]
}

// filterFiles はインデックス対象のファイルだけを残す
func filterFiles(files []SourceFile) []SourceFile {
	kept := make([]SourceFile, 0, len(files))
	for _, f := range files {
		if shouldIndex(f.Path) {
			kept = append(kept, f)
		}
	}
	return kept
}
