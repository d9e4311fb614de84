package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repochat/internal/core/ask"
)

// AskAction はリポジトリへの質問に回答するコマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	repoID := cmd.Args().First()
	question := strings.Join(cmd.Args().Tail(), " ")
	if repoID == "" || question == "" {
		return fmt.Errorf("owner/repo と質問文を指定してください")
	}

	cont, err := newContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer cont.Close()

	result, err := cont.Ask.Ask(ctx, ask.Params{
		RepoID:   repoID,
		Question: question,
		TopK:     int(cmd.Int("top-k")),
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)

	if len(result.Sources) > 0 {
		fmt.Println("\n参照したソース:")
		for _, src := range result.Sources {
			fmt.Printf("  %s (%s, distance=%.3f)\n", src.FilePath, src.Section, src.Distance)
		}
	}

	return nil
}
