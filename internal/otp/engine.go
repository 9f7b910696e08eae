package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

const (
	DefaultTTL         = 15 * time.Minute
	DefaultMaxAttempts = 5
)

var codeSpace = big.NewInt(1000000)

// GenerateCode 生成均匀分布的 6 位数字验证码
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithGenerator(gen func() (string, error)) Option {
	return func(e *Engine) {
		e.generate = gen
	}
}

// WithRetention 设置验证码过期后继续保留的时长，保留期内校验会得到 ErrOTPExpired 而不是 ErrOTPNotFound
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		e.retention = d
	}
}

// WithMaxAttempts 设置单个验证码允许失败的次数，达到后该验证码作废，只能重新签发
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

type Engine struct {
	store       Store
	ttl         time.Duration
	retention   time.Duration
	maxAttempts int
	now         func() time.Time
	generate    func() (string, error)
}

func NewEngine(store Store, ttl time.Duration, opts ...Option) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	e := &Engine{
		store:       store,
		ttl:         ttl,
		retention:   ttl,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		generate:    GenerateCode,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) TTL() time.Duration {
	return e.ttl
}

// Issue 为 (subjectID, channel) 生成新的验证码并覆盖旧的验证码
func (e *Engine) Issue(ctx context.Context, subjectID int64, channel domain.Channel) (*Challenge, error) {
	code, err := e.generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	now := e.now()
	c := &Challenge{
		Key:       Key{SubjectID: subjectID, Channel: channel},
		Code:      code,
		Nonce:     uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(e.ttl),
	}

	if err := e.store.Save(ctx, c, c.ExpiresAt.Add(e.retention)); err != nil {
		return nil, fmt.Errorf("save otp: %w", err)
	}

	return c, nil
}

// Verify 校验验证码，成功后该验证码即被使用，之后的校验都会失败。
// 失败次数达到上限后，即使验证码正确也返回 ErrOTPLocked
func (e *Engine) Verify(ctx context.Context, subjectID int64, channel domain.Channel, code string) error {
	key := Key{SubjectID: subjectID, Channel: channel}

	c, err := e.load(ctx, key)
	if err != nil {
		return err
	}
	if err := e.check(c, code); err != nil {
		if errors.Is(err, domain.ErrOTPMismatch) {
			if _, rErr := e.store.RecordFailure(ctx, key, c.Nonce); rErr != nil {
				return fmt.Errorf("record otp failure: %w", rErr)
			}
		}
		return err
	}

	ok, err := e.store.MarkConsumed(ctx, key, c.Nonce)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if ok {
		return nil
	}

	// 在读取和标记之间验证码已被使用或被重新签发
	latest, err := e.load(ctx, key)
	if err != nil {
		return err
	}
	if latest.Nonce != c.Nonce {
		return domain.ErrOTPMismatch
	}
	return domain.ErrOTPAlreadyConsumed
}

func (e *Engine) load(ctx context.Context, key Key) (*Challenge, error) {
	c, err := e.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, fmt.Errorf("load otp: %w", err)
	}
	return c, nil
}

func (e *Engine) check(c *Challenge, code string) error {
	switch {
	case !e.now().Before(c.ExpiresAt):
		return domain.ErrOTPExpired
	case c.Consumed:
		return domain.ErrOTPAlreadyConsumed
	case c.Attempts >= e.maxAttempts:
		return domain.ErrOTPLocked
	case subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1:
		return domain.ErrOTPMismatch
	}
	return nil
}
