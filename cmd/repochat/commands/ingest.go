package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// IngestAction はリポジトリをインデックスするコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.Args().First()
	if repoURL == "" {
		return fmt.Errorf("リポジトリの URL または owner/repo を指定してください")
	}

	cont, err := newContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer cont.Close()

	result, err := cont.Ingest.Ingest(ctx, repoURL)
	if err != nil {
		return err
	}

	if result.Message != "" {
		fmt.Printf("%s: %s\n", result.RepoID, result.Message)
		return nil
	}

	fmt.Printf("インデックス完了: %s\n", result.RepoID)
	fmt.Printf("  ファイル数: %d\n", result.FileCount)
	fmt.Printf("  チャンク数: %d\n", result.ChunkCount)
	if result.SkippedFiles > 0 {
		fmt.Printf("  スキップ:   %d\n", result.SkippedFiles)
	}
	fmt.Printf("  所要時間:   %s\n", result.Duration.Round(timeRound))

	return nil
}
