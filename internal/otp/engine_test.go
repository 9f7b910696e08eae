package otp

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fixedCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return c, nil
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock, *MemoryStore) {
	t.Helper()

	clock := &fakeClock{now: time.Now()}
	store := NewMemoryStore(0)
	store.now = clock.Now
	t.Cleanup(store.Close)

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewEngine(store, DefaultTTL, opts...), clock, store
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestIssueSetsExpiry(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	c, err := e.Issue(context.Background(), 1, domain.ChannelEmail)
	require.NoError(t, err)

	assert.Equal(t, clock.Now(), c.IssuedAt)
	assert.Equal(t, clock.Now().Add(15*time.Minute), c.ExpiresAt)
	assert.False(t, c.Consumed)
	assert.Len(t, c.Code, 6)
}

func TestVerifyTwiceIsAlreadyConsumed(t *testing.T) {
	e, _, _ := newTestEngine(t, WithGenerator(fixedCodes("123456")))
	ctx := context.Background()

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)

	require.NoError(t, e.Verify(ctx, 1, domain.ChannelEmail, "123456"))
	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "123456"), domain.ErrOTPAlreadyConsumed)
}

func TestVerifyWindow(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{name: "at issuance", advance: 0},
		{name: "just before expiry", advance: 15*time.Minute - time.Millisecond},
		{name: "at expiry", advance: 15 * time.Minute, wantErr: domain.ErrOTPExpired},
		{name: "after expiry", advance: 20 * time.Minute, wantErr: domain.ErrOTPExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clock, _ := newTestEngine(t, WithGenerator(fixedCodes("654321")))
			ctx := context.Background()

			_, err := e.Issue(ctx, 7, domain.ChannelMobile)
			require.NoError(t, err)

			clock.Advance(tt.advance)
			err = e.Verify(ctx, 7, domain.ChannelMobile, "654321")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerifyNotFoundAndMismatch(t *testing.T) {
	e, _, _ := newTestEngine(t, WithGenerator(fixedCodes("111111")))
	ctx := context.Background()

	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "111111"), domain.ErrOTPNotFound)

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "222222"), domain.ErrOTPMismatch)
	// 错误的尝试不会使验证码失效
	assert.NoError(t, e.Verify(ctx, 1, domain.ChannelEmail, "111111"))
}

func TestChannelsAreIndependent(t *testing.T) {
	e, _, _ := newTestEngine(t, WithGenerator(fixedCodes("111111", "222222")))
	ctx := context.Background()

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)
	_, err = e.Issue(ctx, 1, domain.ChannelMobile)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "222222"), domain.ErrOTPMismatch)
	assert.NoError(t, e.Verify(ctx, 1, domain.ChannelMobile, "222222"))
	assert.NoError(t, e.Verify(ctx, 1, domain.ChannelEmail, "111111"))
}

func TestReissueInvalidatesPreviousCode(t *testing.T) {
	e, _, _ := newTestEngine(t, WithGenerator(fixedCodes("111111", "222222")))
	ctx := context.Background()

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)
	_, err = e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "111111"), domain.ErrOTPMismatch)
	assert.NoError(t, e.Verify(ctx, 1, domain.ChannelEmail, "222222"))
}

func TestExpiredChallengeEvictedAfterRetention(t *testing.T) {
	e, clock, store := newTestEngine(t, WithGenerator(fixedCodes("111111")), WithRetention(time.Minute))
	ctx := context.Background()

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)

	clock.Advance(15*time.Minute + 30*time.Second)
	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "111111"), domain.ErrOTPExpired)

	clock.Advance(time.Minute)
	store.Sweep()
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "111111"), domain.ErrOTPNotFound)
}

func TestConcurrentVerifySingleWinner(t *testing.T) {
	e, _, _ := newTestEngine(t, WithGenerator(fixedCodes("123456")))
	ctx := context.Background()

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- e.Verify(ctx, 1, domain.ChannelEmail, "123456")
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrOTPAlreadyConsumed)
	}
	assert.Equal(t, 1, wins)
}

func TestVerifyLocksAfterMaxAttempts(t *testing.T) {
	e, _, _ := newTestEngine(t, WithGenerator(fixedCodes("123456", "654321")), WithMaxAttempts(3))
	ctx := context.Background()

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "000000"), domain.ErrOTPMismatch)
	}

	// 达到上限后正确的验证码也不再被接受
	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "123456"), domain.ErrOTPLocked)
	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "000000"), domain.ErrOTPLocked)

	// 其他通道不受影响
	_, err = e.Issue(ctx, 1, domain.ChannelMobile)
	require.NoError(t, err)
	assert.NoError(t, e.Verify(ctx, 1, domain.ChannelMobile, "654321"))
}

func TestReissueResetsAttempts(t *testing.T) {
	e, _, _ := newTestEngine(t, WithGenerator(fixedCodes("123456", "222222")), WithMaxAttempts(2))
	ctx := context.Background()

	_, err := e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "000000"), domain.ErrOTPMismatch)
	}
	assert.ErrorIs(t, e.Verify(ctx, 1, domain.ChannelEmail, "123456"), domain.ErrOTPLocked)

	_, err = e.Issue(ctx, 1, domain.ChannelEmail)
	require.NoError(t, err)
	assert.NoError(t, e.Verify(ctx, 1, domain.ChannelEmail, "222222"))
}
