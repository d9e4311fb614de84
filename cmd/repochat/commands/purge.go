package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// PurgeAction はリポジトリのインデックスを削除するコマンドのアクション
func PurgeAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.Args().First()
	if repoURL == "" {
		return fmt.Errorf("リポジトリの URL または owner/repo を指定してください")
	}

	cont, err := newContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer cont.Close()

	repoID, err := cont.Ingest.Purge(ctx, repoURL)
	if err != nil {
		return err
	}

	fmt.Printf("インデックスを削除しました: %s\n", repoID)
	return nil
}
