package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/wneessen/go-mail"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

var mailTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

var mailSubjects = map[string]string{
	domain.MailTypeRegistration:  "合同门户 - 注册验证码",
	domain.MailTypeResetPassword: "合同门户 - 重置密码",
	domain.MailTypeAccountReady:  "合同门户 - 账户已激活",
}

// MailClient 是 *mail.Client 中发送邮件所需的部分
type MailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Mailer struct {
	client MailClient
	from   string
}

func NewMailer(client MailClient, from string) *Mailer {
	return &Mailer{client: client, from: from}
}

type mailEnvelope struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// Handle 处理 email_queue 中的一条消息
func (m *Mailer) Handle(ctx context.Context, body []byte) error {
	msg, err := m.build(body)
	if err != nil {
		return Permanent(err)
	}

	return m.client.DialAndSendWithContext(ctx, msg)
}

func (m *Mailer) build(body []byte) (*mail.Msg, error) {
	var env mailEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode mail message: %w", err)
	}

	subject, html, err := renderMail(env.Type, env.Data)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(env.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	return msg, nil
}

func renderMail(mailType string, raw json.RawMessage) (string, string, error) {
	var data any
	switch mailType {
	case domain.MailTypeRegistration, domain.MailTypeResetPassword:
		data = &domain.OTPMailData{}
	case domain.MailTypeAccountReady:
		data = &domain.AccountReadyMailData{}
	default:
		return "", "", fmt.Errorf("unsupported mail type %q", mailType)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return "", "", fmt.Errorf("decode %s data: %w", mailType, err)
	}

	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, mailType+".html", data); err != nil {
		return "", "", err
	}

	return mailSubjects[mailType], buf.String(), nil
}
