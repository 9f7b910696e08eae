package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/config"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/notify"
	"github.com/wneessen/go-mail"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
		mail.WithTimeout(time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	mailer := notify.NewMailer(client, cfg.Email.SMTP.Username)

	/**********************************************
	 * 创建短信网关客户端
	 **********************************************/
	if cfg.SMS.GatewayURL == "" {
		logger.Error("未配置短信网关地址")
		return
	}
	smsSender := notify.NewSMSSender(
		&http.Client{Timeout: time.Duration(cfg.SMS.Timeout) * time.Second},
		cfg.SMS.GatewayURL,
		cfg.SMS.APIKey,
	)

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	if err := notify.DeclareQueues(ch); err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 每个消费者同时只处理一条未确认的消息
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置 QoS", slog.String("error", err.Error()))
		return
	}

	consumers := map[string]notify.HandleFunc{
		notify.EmailQueue: mailer.Handle,
		notify.SMSQueue:   smsSender.Handle,
	}

	// 用于关闭 goroutine 的上下文
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	for queue, handle := range consumers {
		msgs, err := ch.Consume(
			queue, // 队列
			"",    // 消费者标识，由 RabbitMQ 自动分配
			false, // 手动确认
			false, // 是否独占队列
			false, // RabbitMQ 不支持 noLocal
			false, // 等待 RabbitMQ 响应
			nil,   // 额外参数
		)
		if err != nil {
			logger.Error("无法消费消息", slog.String("queue", queue), slog.String("error", err.Error()))
			cancel()
			wg.Wait()
			return
		}

		queue, handle := queue, handle
		wg.Add(1)
		go func() {
			defer wg.Done()
			notify.Consume(ctx, logger, queue, msgs, handle)
		}()
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("等待消息...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	logger.Info("正在关闭 notifier...")
	cancel()
	wg.Wait()
	logger.Info("notifier 已成功关闭")
}
