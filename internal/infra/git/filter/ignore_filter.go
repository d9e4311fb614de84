package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFilter は .gitignore と .repochatignore のパターンマッチングを提供します
type IgnoreFilter struct {
	patterns *gitignore.GitIgnore
}

// NewIgnoreFilter は新しいIgnoreFilterを作成します
// repoPath 配下の .gitignore と .repochatignore を読み込みます
func NewIgnoreFilter(repoPath string) (*IgnoreFilter, error) {
	var patterns []string

	for _, name := range []string{".gitignore", ".repochatignore"} {
		path := filepath.Join(repoPath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		filePatterns, err := readIgnoreFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		patterns = append(patterns, filePatterns...)
	}

	patterns = append(patterns, defaultIgnorePatterns...)

	return &IgnoreFilter{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// ShouldIgnore はパスが除外対象かどうかを判定します
func (f *IgnoreFilter) ShouldIgnore(path string) bool {
	if f.patterns == nil {
		return false
	}
	return f.patterns.MatchesPath(path)
}

// readIgnoreFile は ignore ファイルを読み込んでパターンのスライスを返します
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		// 空行とコメント行をスキップ
		if line == "" || line[0] == '#' {
			continue
		}
		patterns = append(patterns, line)
	}

	return patterns, nil
}

// defaultIgnorePatterns はデフォルトの除外パターン
// 生成物・依存パッケージ・バイナリなど、インデックスしても意味のないもの
var defaultIgnorePatterns = []string{
	// Git関連
	".git",
	".gitignore",
	".gitattributes",
	".gitmodules",

	// 依存関係・ビルド成果物
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"out",
	"bin",
	"obj",
	".next",
	".nuxt",

	// 仮想環境・キャッシュ
	"venv",
	".venv",
	"__pycache__",
	"*.pyc",
	".pytest_cache",
	".cache",

	// IDE/エディタ関連
	".vscode",
	".idea",
	".DS_Store",
	"*.swp",
	"*~",

	// ログ・一時ファイル
	"*.log",
	"logs",
	"*.tmp",
	"tmp",

	// 環境変数・機密情報
	".env",
	".env.local",
	"*.pem",
	"*.key",

	// バイナリ・アーカイブ
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.a",
	"*.o",
	"*.jar",
	"*.zip",
	"*.tar",
	"*.gz",

	// 画像・メディアファイル
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.ico",
	"*.svg",
	"*.mp4",
	"*.mp3",

	// フォント
	"*.ttf",
	"*.woff",
	"*.woff2",

	// データベースファイル
	"*.db",
	"*.sqlite",

	// テストカバレッジ
	"coverage",
	"*.lcov",

	// ロックファイル（巨大で検索価値が低い）
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"Cargo.lock",
	"go.sum",
}
