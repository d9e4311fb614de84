package git

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Client は Git リポジトリ操作を提供する
type Client struct {
	sshKeyPath  string
	sshPassword string
	progress    io.Writer
}

type ClientOption func(*Client)

// WithSSHKey は SSH 鍵による認証を設定する（プライベートリポジトリ用）
func WithSSHKey(keyPath, password string) ClientOption {
	return func(c *Client) {
		c.sshKeyPath = keyPath
		c.sshPassword = password
	}
}

// WithProgress はクローン時の進捗出力先を設定する
func WithProgress(w io.Writer) ClientOption {
	return func(c *Client) {
		c.progress = w
	}
}

// NewClient は新しい Client を作成する
func NewClient(opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clone は Git リポジトリをクローンする
func (c *Client) Clone(ctx context.Context, url, destDir string) error {
	auth, err := c.getSSHAuth(url)
	if err != nil {
		return fmt.Errorf("failed to setup SSH auth: %w", err)
	}

	_, err = git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
		URL:      url,
		Auth:     auth,
		Depth:    1,
		Progress: c.progress,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	return nil
}

// Pull はリモートの最新状態を取り込む
func (c *Client) Pull(ctx context.Context, url, repoPath string) error {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	auth, err := c.getSSHAuth(url)
	if err != nil {
		return fmt.Errorf("failed to setup SSH auth: %w", err)
	}

	err = worktree.PullContext(ctx, &git.PullOptions{
		Auth:     auth,
		Force:    true,
		Progress: c.progress,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to pull: %w", err)
	}

	return nil
}

// CloneOrPull はリポジトリが存在しない場合はクローン、存在する場合は pull する
func (c *Client) CloneOrPull(ctx context.Context, url, destDir string) error {
	gitDir := filepath.Join(destDir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return c.Clone(ctx, url, destDir)
	}

	return c.Pull(ctx, url, destDir)
}

// HeadHash は HEAD のコミットハッシュを返す
func (c *Client) HeadHash(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	return head.Hash().String(), nil
}

func (c *Client) getSSHAuth(url string) (*ssh.PublicKeys, error) {
	if c.sshKeyPath == "" {
		return nil, nil
	}

	if _, err := os.Stat(c.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", c.sshKeyPath, c.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}

	return auth, nil
}
