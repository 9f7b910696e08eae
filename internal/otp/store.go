package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

var errNotFound = errors.New("challenge not found")

type Key struct {
	SubjectID int64
	Channel   domain.Channel
}

func (k Key) String() string {
	return fmt.Sprintf("otp_%d_%s", k.SubjectID, k.Channel)
}

type Challenge struct {
	Key       Key
	Code      string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
	// Attempts 是当前验证码已经失败的校验次数，重新签发时清零
	Attempts int
}

// Store 保存每个 (subject, channel) 当前唯一的验证码
type Store interface {
	// Save 覆盖该 key 上已有的验证码，retainUntil 之后存储可以将其清除
	Save(ctx context.Context, c *Challenge, retainUntil time.Time) error
	// Load 在不存在时返回 errNotFound
	Load(ctx context.Context, key Key) (*Challenge, error)
	// MarkConsumed 仅当当前验证码的 nonce 与传入一致且尚未被使用时才标记为已使用
	MarkConsumed(ctx context.Context, key Key, nonce string) (bool, error)
	// RecordFailure 在 nonce 一致时把失败次数加一并返回新的次数，nonce 不一致时返回 0
	RecordFailure(ctx context.Context, key Key, nonce string) (int, error)
}
