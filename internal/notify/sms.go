package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

// SMSSender 把短信转交给 HTTP 短信网关
type SMSSender struct {
	client     *http.Client
	gatewayURL string
	apiKey     string
}

func NewSMSSender(client *http.Client, gatewayURL, apiKey string) *SMSSender {
	return &SMSSender{client: client, gatewayURL: gatewayURL, apiKey: apiKey}
}

// Handle 处理 sms_queue 中的一条消息
func (s *SMSSender) Handle(ctx context.Context, body []byte) error {
	var msg domain.SMSMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return Permanent(fmt.Errorf("decode sms message: %w", err))
	}
	if msg.To == "" {
		return Permanent(fmt.Errorf("sms message without recipient"))
	}

	return s.Send(ctx, msg)
}

func (s *SMSSender) Send(ctx context.Context, msg domain.SMSMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		// 网关拒绝的消息重试也不会成功
		return Permanent(fmt.Errorf("sms gateway rejected message: %s", resp.Status))
	default:
		return fmt.Errorf("sms gateway: %s", resp.Status)
	}
}
