package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repochat/cmd/repochat/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "repochat",
		Usage: "ソースコードリポジトリに対する RAG ベースの質問応答ツール",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "環境変数ファイルパス",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "ログレベル（debug, info, warn, error）",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "リポジトリをクローンしてベクトルインデックスを構築",
				ArgsUsage: "<repository-url | owner/repo>",
				Action:    commands.IngestAction,
			},
			{
				Name:      "ask",
				Usage:     "インデックス済みリポジトリに質問",
				ArgsUsage: "<owner/repo> <question>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "取得するチャンク数",
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:      "purge",
				Usage:     "リポジトリのインデックスを削除",
				ArgsUsage: "<owner/repo>",
				Action:    commands.PurgeAction,
			},
			{
				Name:      "stats",
				Usage:     "リポジトリの登録済みチャンク数を表示",
				ArgsUsage: "<owner/repo>",
				Action:    commands.StatsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
