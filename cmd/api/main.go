package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/auth"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/config"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/credential"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/handler"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/notify"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/otp"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/permission"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/repository"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/session"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/token"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
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

	/**********************************************
	 * 连接 redis，验证码保存在 redis 中
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	otpEngine := otp.NewEngine(
		otp.NewRedisStore(rdb, time.Duration(cfg.Redis.OperationExpiration)*time.Second),
		time.Duration(cfg.OTP.Expiration)*time.Second,
		otp.WithRetention(time.Duration(cfg.OTP.Retention)*time.Second),
		otp.WithMaxAttempts(cfg.OTP.MaxAttempts),
	)

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	if err := notify.DeclareQueues(ch); err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	publisher := notify.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	/**********************************************
	 * 创建各个服务
	 **********************************************/
	hasher := credential.NewHasher(cfg.Hasher.Workers, cfg.Hasher.Cost)
	defer hasher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	issuer := token.NewIssuer(cfg.JWT.Secret)
	authService := auth.NewService(
		credential.NewStore(repo, hasher),
		otpEngine,
		issuer,
		publisher,
		m,
		time.Duration(cfg.JWT.Expiration)*time.Second,
	)

	/**********************************************
	 * 确保数据库中存在初始管理员
	 **********************************************/
	if err := authService.EnsureAdmin(ctx, cfg.InitialAdmin.Email, cfg.InitialAdmin.Mobile, cfg.InitialAdmin.Password, cfg.InitialAdmin.FullName); err != nil {
		logger.Error("无法创建初始管理员", "error", err)
		return
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(
		cfg,
		authService,
		permission.NewEngine(repo, repo),
		session.NewGuard(issuer, cfg.JWT.CookieName),
		repo,
		repo,
		m,
	)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	// 等待后台的验证码投递完成后再关闭 rabbitmq 通道
	authService.Wait()
	logger.Info("服务器已成功关闭")
}
