package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/config"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	down := flag.Bool("down", false, "回滚所有迁移")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		os.Exit(1)
	}

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		os.Exit(1)
	}

	if *down {
		err = repository.MigrateDown(dbpool)
	} else {
		err = repository.MigrateUp(dbpool)
	}
	if err != nil {
		logger.Error("迁移失败", "error", err)
		os.Exit(1)
	}

	logger.Info("迁移完成", "down", *down)
}
