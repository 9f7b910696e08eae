package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/auth"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

// Channel 是 *amqp.Channel 中发布消息所需的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch      Channel
	timeout time.Duration
}

func NewPublisher(ch Channel, timeout time.Duration) *Publisher {
	return &Publisher{ch: ch, timeout: timeout}
}

func (p *Publisher) SendOTP(ctx context.Context, user *domain.User, channel domain.Channel, purpose auth.Purpose, code string, ttl time.Duration) error {
	minutes := int(ttl / time.Minute)

	switch channel {
	case domain.ChannelEmail:
		mailType := domain.MailTypeRegistration
		if purpose == auth.PurposeResetPassword {
			mailType = domain.MailTypeResetPassword
		}
		return p.publish(ctx, EmailQueue, domain.MailMessage{
			Type: mailType,
			To:   user.Email,
			Data: domain.OTPMailData{
				FullName:   user.FullName,
				OTP:        code,
				Expiration: minutes,
			},
		})
	case domain.ChannelMobile:
		return p.publish(ctx, SMSQueue, domain.SMSMessage{
			To:   user.Mobile,
			Text: otpText(purpose, code, minutes),
		})
	default:
		return fmt.Errorf("unsupported channel %q", channel)
	}
}

func (p *Publisher) SendAccountReady(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, EmailQueue, domain.MailMessage{
		Type: domain.MailTypeAccountReady,
		To:   user.Email,
		Data: domain.AccountReadyMailData{
			FullName: user.FullName,
			Email:    user.Email,
		},
	})
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		"",
		queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func otpText(purpose auth.Purpose, code string, minutes int) string {
	action := "注册"
	if purpose == auth.PurposeResetPassword {
		action = "重置密码"
	}
	return fmt.Sprintf("【合同门户】您正在%s，验证码 %s，%d 分钟内有效。", action, code, minutes)
}
