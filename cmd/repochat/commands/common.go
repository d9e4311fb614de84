package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repochat/internal/platform/container"
	"github.com/jinford/repochat/internal/platform/logger"
	"github.com/jinford/repochat/pkg/config"
)

// timeRound は所要時間表示の丸め単位
const timeRound = 10 * time.Millisecond

// newContainer は設定を読み込み、依存関係を組み立てる
func newContainer(ctx context.Context, cmd *cli.Command) (*container.Container, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cmd.String("log-level"))
	appLogger := logger.New(logCfg)

	cont, err := container.New(ctx, appLogger, cfg)
	if err != nil {
		return nil, fmt.Errorf("初期化に失敗: %w", err)
	}

	return cont, nil
}
