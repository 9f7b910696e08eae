package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/config"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/credential"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/repository"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机客户, 2: 插入随机员工, 3: 插入随机合同)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.Seed.User.Password == "" {
		logger.Error("未配置演示用户的密码")
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	hasher := credential.NewHasher(cfg.Hasher.Workers, cfg.Hasher.Cost)
	defer hasher.Close()

	seeder := seed.NewSeeder(credential.NewStore(repo, hasher), repo, cfg.Seed.User.Password, cfg.Seed.EmailDomain)

	if n <= 0 {
		slog.Error("请输入合法的记录数量")
		return
	}

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1, 2:
		role := domain.RoleClient
		if op == 2 {
			role = domain.RoleEmployee
		}
		cnt, err := seeder.SeedUsers(context.Background(), n, role)
		if err != nil {
			slog.Error("无法插入用户", slog.String("error", err.Error()))
		}
		slog.Info("插入用户成功", slog.String("role", string(role)), slog.Int("count", cnt))
	case 3:
		cnt, err := seeder.SeedContracts(context.Background(), n)
		if err != nil {
			slog.Error("无法插入合同", slog.String("error", err.Error()))
		}
		slog.Info("插入合同成功", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
	}
}
