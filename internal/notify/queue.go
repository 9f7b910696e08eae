// Package notify 负责验证码和账户通知的投递：API 进程把消息发布到 RabbitMQ，由 notifier 进程消费后发送邮件或短信
package notify

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EmailQueue = "email_queue"
	SMSQueue   = "sms_queue"
)

// DeclareQueues 声明邮件和短信队列，发布端与消费端都需要调用
func DeclareQueues(ch *amqp.Channel) error {
	for _, name := range []string{EmailQueue, SMSQueue} {
		if _, err := ch.QueueDeclare(
			name,  // 队列名称
			true,  // 是否持久化
			false, // 是否自动删除
			false, // 是否独占
			false, // 是否不等待
			nil,   // 额外参数
		); err != nil {
			return err
		}
	}
	return nil
}
