package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/credential"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/otp"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/token"
)

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposeResetPassword Purpose = "reset_password"
)

// Notifier 负责把验证码投递到对应的通道
type Notifier interface {
	SendOTP(ctx context.Context, user *domain.User, channel domain.Channel, purpose Purpose, code string, ttl time.Duration) error
	SendAccountReady(ctx context.Context, user *domain.User) error
}

type RegistrationRequest struct {
	Email    string
	Mobile   string
	Password string
	FullName string
	Company  string
}

type RegistrationResult struct {
	UserID int64                    `json:"userId"`
	State  domain.RegistrationState `json:"state"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

type Service struct {
	credentials *credential.Store
	otps        *otp.Engine
	issuer      *token.Issuer
	notifier    Notifier
	metrics     *metrics.Metrics
	tokenTTL    time.Duration

	background sync.WaitGroup
}

func NewService(credentials *credential.Store, otps *otp.Engine, issuer *token.Issuer, notifier Notifier, m *metrics.Metrics, tokenTTL time.Duration) *Service {
	return &Service{
		credentials: credentials,
		otps:        otps,
		issuer:      issuer,
		notifier:    notifier,
		metrics:     m,
		tokenTTL:    tokenTTL,
	}
}

// StartRegistration 创建待验证的用户，并分别向邮箱和手机发送验证码
func (s *Service) StartRegistration(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error) {
	user, err := s.credentials.CreatePendingUser(ctx, req.Email, req.Mobile, req.Password, credential.Profile{
		FullName: req.FullName,
		Company:  req.Company,
	})
	if err != nil {
		return nil, err
	}

	for _, channel := range []domain.Channel{domain.ChannelEmail, domain.ChannelMobile} {
		if err := s.issueAndSend(ctx, user, channel, PurposeRegistration); err != nil {
			return nil, err
		}
	}

	return &RegistrationResult{
		UserID: user.ID,
		State:  domain.RegistrationPending,
	}, nil
}

// VerifyRegistration 分别校验提供的邮箱和手机验证码，两个通道都验证通过后账户才会被激活。
// 任一通道的失败不会影响另一个通道的结果
func (s *Service) VerifyRegistration(ctx context.Context, userID int64, emailCode, mobileCode string) (*RegistrationResult, error) {
	user, err := s.credentials.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, err
	}
	if user.Status != domain.UserStatusPending {
		return nil, domain.ErrNotPending
	}

	codes := []struct {
		channel  domain.Channel
		code     string
		verified bool
	}{
		{domain.ChannelEmail, emailCode, user.EmailVerified},
		{domain.ChannelMobile, mobileCode, user.MobileVerified},
	}

	var errs []error
	for _, c := range codes {
		if c.code == "" || c.verified {
			continue
		}

		if err := s.otps.Verify(ctx, user.ID, c.channel, c.code); err != nil {
			s.metrics.OTPVerified(string(c.channel), outcomeOf(err))
			slog.Info("注册验证码校验失败", "user_id", user.ID, "channel", c.channel, "reason", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", c.channel, err))
			continue
		}
		s.metrics.OTPVerified(string(c.channel), "ok")

		updated, err := s.credentials.MarkChannelVerified(ctx, user.ID, c.channel)
		if err != nil {
			return nil, err
		}
		user = updated
	}

	result := &RegistrationResult{
		UserID: user.ID,
		State:  domain.RegistrationStateOf(user.EmailVerified, user.MobileVerified),
	}

	if user.IsActive() {
		slog.Info("账户已激活", "user_id", user.ID)
		if err := s.notifier.SendAccountReady(ctx, user); err != nil {
			slog.Error("无法发送账户激活通知", "user_id", user.ID, "error", err)
		}
	}

	return result, errors.Join(errs...)
}

// ResendRegistrationOTP 重新签发某个通道的注册验证码，旧验证码随之失效
func (s *Service) ResendRegistrationOTP(ctx context.Context, userID int64, channel domain.Channel) error {
	user, err := s.credentials.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status != domain.UserStatusPending {
		return domain.ErrNotPending
	}
	if (channel == domain.ChannelEmail && user.EmailVerified) || (channel == domain.ChannelMobile && user.MobileVerified) {
		return nil
	}

	return s.issueAndSend(ctx, user, channel, PurposeRegistration)
}

// Login 校验密码并签发令牌。没有失败次数限制
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.credentials.VerifyPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.metrics.Login("invalid_credentials")
			slog.Info("登录失败", "email", credential.NormalizeEmail(email))
		} else {
			s.metrics.Login("error")
		}
		return nil, err
	}

	tokenString, expiresAt, err := s.issuer.Mint(user.ID, user.Role, s.tokenTTL)
	if err != nil {
		s.metrics.Login("error")
		return nil, fmt.Errorf("mint token: %w", err)
	}
	s.metrics.Login("success")

	return &LoginResult{
		Token:     tokenString,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// ForgotPassword 无论邮箱是否注册都表现一致：查无此人时静默返回，只有数据库故障才会返回错误。
// 验证码在后台签发和投递，两条路径的响应时间都只包含一次查询
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive() {
		return nil
	}

	// 发送失败只记录日志，否则响应会暴露该邮箱已注册
	bgCtx := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.issueAndSend(bgCtx, user, domain.ChannelEmail, PurposeResetPassword); err != nil {
			slog.Error("无法发送重置密码验证码", "user_id", user.ID, "error", err)
		}
	}()

	return nil
}

// Wait 阻塞直到所有后台投递结束
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrOTPNotFound
		}
		return err
	}
	if !user.IsActive() {
		return domain.ErrOTPNotFound
	}

	if err := s.otps.Verify(ctx, user.ID, domain.ChannelEmail, code); err != nil {
		s.metrics.OTPVerified(string(domain.ChannelEmail), outcomeOf(err))
		return err
	}
	s.metrics.OTPVerified(string(domain.ChannelEmail), "ok")

	return s.credentials.UpdatePassword(ctx, user.ID, newPassword)
}

// ChangePassword 修改密码。已签发的令牌在过期前仍然有效
func (s *Service) ChangePassword(ctx context.Context, id domain.Identity, currentPassword, newPassword string) error {
	if err := s.credentials.CheckPassword(ctx, id.ID, currentPassword); err != nil {
		return err
	}
	return s.credentials.UpdatePassword(ctx, id.ID, newPassword)
}

func (s *Service) Me(ctx context.Context, id domain.Identity) (*domain.User, error) {
	return s.credentials.GetUserByID(ctx, id.ID)
}

// EnsureAdmin 确保存在初始管理员，已存在时不做任何修改
func (s *Service) EnsureAdmin(ctx context.Context, email, mobile, password, fullName string) error {
	_, err := s.credentials.CreateActiveUser(ctx, email, mobile, password, domain.RoleAdmin, credential.Profile{FullName: fullName})
	if err != nil && !errors.Is(err, domain.ErrDuplicateEmail) {
		return err
	}
	return nil
}

func (s *Service) issueAndSend(ctx context.Context, user *domain.User, channel domain.Channel, purpose Purpose) error {
	challenge, err := s.otps.Issue(ctx, user.ID, channel)
	if err != nil {
		return err
	}
	s.metrics.OTPIssued(string(channel))

	if err := s.notifier.SendOTP(ctx, user, channel, purpose, challenge.Code, s.otps.TTL()); err != nil {
		return fmt.Errorf("send %s otp: %w", channel, err)
	}

	return nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrOTPNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOTPExpired):
		return "expired"
	case errors.Is(err, domain.ErrOTPAlreadyConsumed):
		return "already_consumed"
	case errors.Is(err, domain.ErrOTPMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrOTPLocked):
		return "locked"
	default:
		return "error"
	}
}
