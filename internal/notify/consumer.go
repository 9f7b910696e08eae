package notify

import (
	"context"
	"errors"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记无需重新入队的错误
func Permanent(err error) error {
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type HandleFunc func(ctx context.Context, body []byte) error

// Consume 持续处理 deliveries 中的消息，直到 ctx 被取消或通道关闭。
// 处理成功时确认消息，永久性错误直接丢弃，其余错误重新入队
func Consume(ctx context.Context, logger *slog.Logger, queue string, deliveries <-chan amqp.Delivery, handle HandleFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deliveries:
			if !ok {
				logger.Warn("消息通道已关闭", slog.String("queue", queue))
				return
			}

			if err := handle(ctx, msg.Body); err != nil {
				requeue := !IsPermanent(err) && !msg.Redelivered
				logger.Error("消息处理失败",
					slog.String("queue", queue),
					slog.Bool("requeue", requeue),
					slog.String("error", err.Error()),
				)
				_ = msg.Nack(false, requeue)
				continue
			}

			_ = msg.Ack(false)
		}
	}
}
