package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

// UserRepository 是凭据存储依赖的持久化接口
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	MarkChannelVerified(ctx context.Context, id int64, channel domain.Channel) (*domain.User, error)
}

type Profile struct {
	FullName string
	Company  string
}

// Store 是唯一写入身份信息（用户记录、密码哈希）的组件
type Store struct {
	repo   UserRepository
	hasher *Hasher

	dummyMu   sync.Mutex
	dummyHash string
}

func NewStore(repo UserRepository, hasher *Hasher) *Store {
	return &Store{
		repo:   repo,
		hasher: hasher,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreatePendingUser 为每次注册创建一条新的待验证记录，已有的待验证记录保持不变。
// 邮箱只在激活时才被占用，同一邮箱的多条待验证记录中先完成两个通道验证的一条胜出
func (s *Store) CreatePendingUser(ctx context.Context, email, mobile, password string, profile Profile) (*domain.User, error) {
	email = NormalizeEmail(email)

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		Mobile:       mobile,
		PasswordHash: hash,
		FullName:     profile.FullName,
		Company:      profile.Company,
		Role:         domain.RoleClient,
		Status:       domain.UserStatusPending,
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// VerifyPassword 校验邮箱和密码。邮箱不存在、账户未激活和密码错误对调用方来说都是 ErrInvalidCredentials
func (s *Store) VerifyPassword(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}

		// 对不存在的邮箱也做一次同等开销的比较
		dummy, dErr := s.dummy(ctx)
		if dErr != nil {
			return nil, dErr
		}
		if _, err := s.hasher.Compare(ctx, dummy, password); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive() {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// CheckPassword 校验已登录用户的当前密码
func (s *Store) CheckPassword(ctx context.Context, userID int64, password string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	return nil
}

// CreateActiveUser 直接创建一个已激活的用户，用于初始管理员和演示数据
func (s *Store) CreateActiveUser(ctx context.Context, email, mobile, password string, role domain.Role, profile Profile) (*domain.User, error) {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:          NormalizeEmail(email),
		Mobile:         mobile,
		PasswordHash:   hash,
		FullName:       profile.FullName,
		Company:        profile.Company,
		Role:           role,
		Status:         domain.UserStatusActive,
		EmailVerified:  true,
		MobileVerified: true,
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hash
	return s.repo.UpsertUser(ctx, user)
}

func (s *Store) MarkChannelVerified(ctx context.Context, userID int64, channel domain.Channel) (*domain.User, error) {
	return s.repo.MarkChannelVerified(ctx, userID, channel)
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
}

func (s *Store) dummy(ctx context.Context) (string, error) {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash != "" {
		return s.dummyHash, nil
	}

	hash, err := s.hasher.Hash(ctx, "contract-portal-dummy-password")
	if err != nil {
		return "", err
	}
	s.dummyHash = hash
	return hash, nil
}
