package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// StatsAction はリポジトリの登録済みチャンク数を表示するコマンドのアクション
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.Args().First()
	if repoURL == "" {
		return fmt.Errorf("リポジトリの URL または owner/repo を指定してください")
	}

	cont, err := newContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer cont.Close()

	repoID, count, err := cont.Ingest.Stats(ctx, repoURL)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d チャンク\n", repoID, count)
	return nil
}
