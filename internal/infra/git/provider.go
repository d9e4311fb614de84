package git

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	giturls "github.com/whilp/git-urls"

	"github.com/jinford/repochat/internal/core/ingest"
	"github.com/jinford/repochat/internal/infra/git/filter"
)

// DefaultRemoteBase は owner/repo 形式からリモート URL を組み立てるときのベース
const DefaultRemoteBase = "https://github.com"

// Provider は Git リポジトリ用の ingest.SourceProvider 実装
// リポジトリをローカルにクローン（2 回目以降は pull）してからファイルを列挙する
type Provider struct {
	client       *Client
	cloneBaseDir string
	remoteBase   string
	logger       *slog.Logger
}

type ProviderOption func(*Provider)

// WithRemoteBase は owner/repo 形式に対するリモートのベース URL を上書きする
func WithRemoteBase(base string) ProviderOption {
	return func(p *Provider) {
		p.remoteBase = strings.TrimSuffix(base, "/")
	}
}

// WithProviderLogger は Provider にロガーを設定する
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider は新しい Git Provider を作成する
func NewProvider(client *Client, cloneBaseDir string, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:       client,
		cloneBaseDir: cloneBaseDir,
		remoteBase:   DefaultRemoteBase,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// インターフェース実装の確認
var _ ingest.SourceProvider = (*Provider)(nil)

// ResolveRepoID はリポジトリ URL を owner/repo 形式に正規化する
// 例: git@github.com:acme/app.git -> acme/app
// 例: https://github.com/acme/app -> acme/app
// すでに owner/repo 形式の場合はそのまま返す
func (p *Provider) ResolveRepoID(rawURL string) (string, error) {
	candidate := rawURL
	if strings.Contains(rawURL, ":") || strings.Contains(rawURL, "@") {
		u, err := giturls.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("failed to parse git URL %q: %w", rawURL, err)
		}
		candidate = u.Path
	}

	candidate = strings.Trim(candidate, "/")
	candidate = strings.TrimSuffix(candidate, ".git")

	parts := strings.Split(candidate, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("owner/repo 形式に解決できません: %q", rawURL)
	}

	// ホスティングによっては owner/group/repo のような深いパスになるが、
	// 識別子としては先頭の owner と末尾のリポジトリ名を採用する
	return parts[0] + "/" + parts[len(parts)-1], nil
}

// ListFiles はリポジトリをクローン（または pull）してファイルを列挙する
// .gitignore とデフォルトの除外パターンにマッチするファイルは含まれない
func (p *Provider) ListFiles(ctx context.Context, repoID string) ([]ingest.SourceFile, error) {
	repoPath := filepath.Join(p.cloneBaseDir, filepath.FromSlash(repoID))
	remoteURL := p.remoteBase + "/" + repoID + ".git"

	p.logger.Info("リポジトリを同期", "repoID", repoID, "path", repoPath)
	if err := p.client.CloneOrPull(ctx, remoteURL, repoPath); err != nil {
		return nil, fmt.Errorf("リポジトリの同期に失敗: %w", err)
	}

	ignoreFilter, err := filter.NewIgnoreFilter(repoPath)
	if err != nil {
		return nil, fmt.Errorf("除外フィルタの作成に失敗: %w", err)
	}

	var files []ingest.SourceFile
	err = filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if rel != "." && ignoreFilter.ShouldIgnore(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignoreFilter.ShouldIgnore(rel) {
			return nil
		}

		files = append(files, ingest.SourceFile{Path: rel, Ref: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ファイルの列挙に失敗: %w", err)
	}

	p.logger.Debug("ファイル一覧を取得", "repoID", repoID, "files", len(files))
	return files, nil
}

// FileContent はローカルにクローン済みのファイルを読み込む
func (p *Provider) FileContent(_ context.Context, file ingest.SourceFile) (string, error) {
	content, err := os.ReadFile(file.Ref)
	if err != nil {
		return "", fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	return string(content), nil
}
